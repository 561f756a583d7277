// Package pendingintent implements the pending-intent store: a short-TTL
// key-value store keyed by an intent code, holding either the signed
// access/refresh token pair or the access_denied sentinel, enforcing
// single-grant idempotence via atomic put-if-absent.
package pendingintent

import (
	"context"
	"errors"
	"time"
)

// DeniedValue is the sentinel value a denied grant stores.
const DeniedValue = "access_denied"

// TTL is the lifetime of every pending-intent record: slightly greater than
// the intent-token's own 5-minute expiry.
const TTL = 6 * time.Minute

// ErrAlreadyUsed is returned by PutIfAbsent when a record already exists
// under code; the grant endpoint maps this to the "already_used" wire error.
var ErrAlreadyUsed = errors.New("pendingintent: already used")

// ErrNotFound is returned by Get when no record exists under code (either it
// was never created, was already consumed, or its TTL expired).
var ErrNotFound = errors.New("pendingintent: not found")

// Store is the contract every backend (memory, redis) implements.
type Store interface {
	// PutIfAbsent creates a record under code with the given TTL. It fails
	// with ErrAlreadyUsed if a record already exists under code.
	PutIfAbsent(ctx context.Context, code, value string, ttl time.Duration) error
	// Get returns the record under code, or ErrNotFound.
	Get(ctx context.Context, code string) (string, error)
	// Delete removes the record under code. It does not fail if the record
	// is already absent.
	Delete(ctx context.Context, code string) error
	// Keys lists every code currently held, for the debug listing endpoint.
	Keys(ctx context.Context) ([]string, error)
}
