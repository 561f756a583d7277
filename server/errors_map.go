package server

import (
	"errors"

	"github.com/ohx-cloud/authd/clientregistry"
)

// mapClientRegistryError translates a clientregistry error into the wire
// error code SPEC_FULL.md §7 names for it.
func mapClientRegistryError(err error) *apiError {
	switch {
	case errors.Is(err, clientregistry.ErrUnknownClient):
		return errClientIDUnknown
	case errors.Is(err, clientregistry.ErrScopesNotAllowed):
		return errScopesInvalid
	case errors.Is(err, clientregistry.ErrMissingSecret), errors.Is(err, clientregistry.ErrWrongSecret):
		return errUnauthorized
	default:
		return errInternal
	}
}
