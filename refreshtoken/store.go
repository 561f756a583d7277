// Package refreshtoken implements the refresh-token registry: a durable map
// from SHA-256(refresh token) to the record describing who it was issued to
// and under what scopes. Presence in the registry is the sole redeemability
// check; /revoke deletes the record.
package refreshtoken

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/ohx-cloud/authd/token"
)

// ErrNotFound is returned by Get when no record exists under hash.
var ErrNotFound = errors.New("refreshtoken: not found")

// Record is the durable value stored per refresh token.
type Record struct {
	UserID    string   `json:"uid"`
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes"`
	IssuedAt  int64    `json:"issued_at"`
	Token     string   `json:"token"`
}

// ScopeSet reconstructs the record's scopes as a token.ScopeSet.
func (r Record) ScopeSet() token.ScopeSet {
	return token.NewScopeSet(r.Scopes...)
}

// Hash computes the registry key for a refresh-token string: the same
// base64url SHA-256 scheme used for intent-token codes.
func Hash(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Store is the contract every backend (memory, postgres) implements.
type Store interface {
	Put(ctx context.Context, hash string, record Record) error
	Get(ctx context.Context, hash string) (Record, error)
	Delete(ctx context.Context, hash string) error
}

// NewRecord builds the Record stored when /grant_scopes mints a refresh
// token with offline_access in scope.
func NewRecord(userID, clientID string, scopes token.ScopeSet, refreshToken string, now time.Time) Record {
	return Record{
		UserID:   userID,
		ClientID: clientID,
		Scopes:   scopes.Slice(),
		IssuedAt: now.Unix(),
		Token:    refreshToken,
	}
}
