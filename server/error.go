package server

import (
	"encoding/json"
	"net/http"
)

// apiError is the wire shape of every JSON error body this server writes:
// {"error": "<code>"}, per SPEC_FULL.md §7.
type apiError struct {
	status int
	Code   string `json:"error"`
}

func (e *apiError) Error() string { return e.Code }

func newAPIError(status int, code string) *apiError {
	return &apiError{status: status, Code: code}
}

// The machine-readable error codes enumerated in SPEC_FULL.md §7. Clients
// depend on these exact strings for flow-control decisions; do not rename.
var (
	errAlreadyUsed            = newAPIError(http.StatusBadRequest, "already_used")
	errExpiredToken           = newAPIError(http.StatusBadRequest, "expired_token")
	errAuthorizationPending   = newAPIError(http.StatusBadRequest, "authorization_pending")
	errAccessDenied           = newAPIError(http.StatusBadRequest, "access_denied")
	errInvalidResponseType    = newAPIError(http.StatusBadRequest, "invalid response_type")
	errClientIDUnknown        = newAPIError(http.StatusBadRequest, "client_id unknown")
	errScopesInvalid          = newAPIError(http.StatusBadRequest, "Requested scopes are invalid")
	errBadRequest             = newAPIError(http.StatusBadRequest, "bad_request")
	errRefreshTokenNotValid   = newAPIError(http.StatusBadRequest, "Access Token not valid. It may have been revoked!")
	errUnauthorized           = newAPIError(http.StatusUnauthorized, "unauthorized")
	errTokenExpired           = newAPIError(http.StatusUnauthorized, "expired_token")
	errInsufficientScope      = func(scope string) *apiError {
		return newAPIError(http.StatusUnauthorized, "insufficient_scope: missing "+scope)
	}
	errRateLimited   = newAPIError(http.StatusTooManyRequests, "rate_limited")
	errNotFound      = newAPIError(http.StatusNotFound, "not_found")
	errInternal      = newAPIError(http.StatusInternalServerError, "internal_error")
)

// writeError renders err as the compact JSON error body SPEC_FULL.md §7
// requires. Non-apiError values are never shown to the client; they are
// mapped to a generic 500 so the server never leaks internal state (store
// errors, in particular, must never surface stored-token material).
func writeError(w http.ResponseWriter, err error) {
	aerr, ok := err.(*apiError)
	if !ok {
		aerr = errInternal
	}
	if aerr == errTokenExpired {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(aerr.status)
	_ = json.NewEncoder(w).Encode(aerr)
}
