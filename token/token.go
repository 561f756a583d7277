// Package token defines the signed and unsigned token shapes exchanged by
// the authorization server: a JOSE-style header, a set of registered JWT
// claims, and the private claims this server adds (scope, client_id, uid).
package token

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Audience is the fixed "aud" claim value every token minted or accepted by
// this server must carry.
const Audience = "OHX"

const (
	AlgorithmNone  = "none"
	AlgorithmRS256 = "RS256"
)

// Scope sentinel understood by the grant and token endpoints.
const ScopeOfflineAccess = "offline_access"

const (
	AccessTokenLifetime  = time.Hour
	RefreshTokenLifetime = 10 * 365 * 24 * time.Hour
	IntentTokenLifetime  = 5 * time.Minute
)

// Header is the JOSE header carried by both unsigned intent tokens and
// signed access/refresh tokens.
type Header struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

// Claims holds the registered JWT claims plus this server's private claims.
// Scope is serialized as a single space-joined string, never a JSON array.
type Claims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Expiry    int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ID        string `json:"jti,omitempty"`

	Scope    ScopeSet `json:"scope,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	UserID   string   `json:"uid,omitempty"`
}

// Token is the full unsigned representation of a token: header plus claims.
// Wrapped as-is (JSON-encoded) by the intent-token codec before it ever
// leaves the server; signed via a Credential once a header.Algorithm of
// RS256 has been set.
type Token struct {
	Header Header `json:"header"`
	Claims Claims `json:"claims"`
}

var (
	ErrExpired      = errors.New("token: expired")
	ErrNotYetValid  = errors.New("token: not yet valid")
	ErrMissingClaim = errors.New("token: missing required registered claim")
	ErrWrongAudience = errors.New("token: unexpected audience")
)

// NewIntentToken builds the unsigned token minted at /authorize: alg=none,
// no user_id yet, a 5-minute expiry.
func NewIntentToken(issuer, keyID, clientID string, scope ScopeSet, now time.Time) Token {
	return Token{
		Header: Header{Algorithm: AlgorithmNone, KeyID: keyID},
		Claims: Claims{
			Issuer:    issuer,
			Subject:   issuer,
			Audience:  Audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			Expiry:    now.Add(IntentTokenLifetime).Unix(),
			ID:        uuid.NewString(),
			ClientID:  clientID,
			Scope:     scope,
		},
	}
}

// CheckExpiry validates exp/nbf against now, independent of signature
// verification (used right after unwrapping an intent token, and by the
// server's bearer-token authentication after Credential.Verify, which itself
// checks claim presence and audience only).
func (c Claims) CheckExpiry(now time.Time) error {
	if c.Expiry != 0 && now.Unix() > c.Expiry {
		return ErrExpired
	}
	if c.NotBefore != 0 && now.Unix() < c.NotBefore {
		return ErrNotYetValid
	}
	return nil
}

// RequirePresent enforces the strict registered-claim presence rule from the
// credential store's verify operation: iss, sub, aud, exp, nbf, iat, jti must
// all be set, and aud must equal Audience.
func (c Claims) RequirePresent() error {
	if c.Issuer == "" || c.Subject == "" || c.Audience == "" || c.Expiry == 0 || c.NotBefore == 0 || c.IssuedAt == 0 || c.ID == "" {
		return ErrMissingClaim
	}
	if c.Audience != Audience {
		return ErrWrongAudience
	}
	return nil
}

// Fresh returns a copy of t with a new jti and iat, used whenever a token is
// cloned into a new signed token (access token split off from a refresh
// token, or a refresh-token-grant renewal).
func (t Token) Fresh(now time.Time) Token {
	out := t
	out.Claims.ID = uuid.NewString()
	out.Claims.IssuedAt = now.Unix()
	return out
}

// WithExpiry returns a copy of t with exp set to now+d and nbf set to now.
func (t Token) WithExpiry(now time.Time, d time.Duration) Token {
	out := t
	out.Claims.NotBefore = now.Unix()
	out.Claims.Expiry = now.Add(d).Unix()
	return out
}

// WithScope returns a copy of t with its scope set replaced.
func (t Token) WithScope(s ScopeSet) Token {
	out := t
	out.Claims.Scope = s
	return out
}
