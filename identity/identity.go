// Package identity defines the contract this server needs from the external
// end-user identity provider: session authentication at /grant_scopes,
// profile lookup at /userinfo, and the user-removal queue consulted by the
// sweep endpoint. This package specifies the contract only; the real
// identity provider is an out-of-scope external collaborator (SPEC_FULL.md
// §1).
package identity

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotFound is returned by Profile when userID does not exist.
var ErrNotFound = errors.New("identity: user not found")

// Profile is the subset of user profile metadata returned by /userinfo.
type Profile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// QueuedRemoval is one entry in the external identity provider's
// user-removal queue.
type QueuedRemoval struct {
	UserID       string
	QueuedRemove time.Time
}

// Provider is the external identity provider collaborator contract.
type Provider interface {
	// AuthenticateSession returns the user id of the session carried by r,
	// or ok=false if the request carries no valid session. Consulted by
	// /grant_scopes.
	AuthenticateSession(r *http.Request) (userID string, ok bool, err error)

	// Profile returns the profile of userID, for /userinfo.
	Profile(ctx context.Context, userID string) (Profile, error)

	// QueuedRemovals lists users whose removal has been queued, for the
	// /check_for_users sweep.
	QueuedRemovals(ctx context.Context) ([]QueuedRemoval, error)

	// DeleteUser removes userID and its queue marker. Called by the sweep
	// once QueuedRemove is at least one hour in the past.
	DeleteUser(ctx context.Context, userID string) error
}
