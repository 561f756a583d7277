package server

import (
	"time"

	"github.com/ohx-cloud/authd/clientregistry"
	"github.com/ohx-cloud/authd/credential"
	"github.com/ohx-cloud/authd/identity"
	"github.com/ohx-cloud/authd/intenttoken"
	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/pkg/log"
	"github.com/ohx-cloud/authd/ratelimit"
	"github.com/ohx-cloud/authd/refreshtoken"
)

// SystemCredentialIndex and UserCredentialIndex are the conventional
// privileged credential indices SPEC_FULL.md §6 names: the first credential
// in the ordered list authorizes system callers (revoke, check_for_users,
// list_intermediate_tokens); the second authorizes first-party user callers.
const (
	SystemCredentialIndex = 0
	UserCredentialIndex   = 1
)

// Config holds everything a Server needs to serve the authorize/grant/token
// protocol. Every field is constructed once at startup and treated as
// read-only thereafter (SPEC_FULL.md §5, Global state).
type Config struct {
	// Issuer is this server's public base URL, used to build the endpoint
	// URLs of the OpenID discovery document. Minted tokens carry the system
	// credential's IssuerEmail as iss/sub instead.
	Issuer string
	// GrantPageURL is the user-facing page /authorize redirects the code
	// flow to; the echoed descriptor is appended as a query string.
	GrantPageURL string

	Credentials    credential.List
	Clients        *clientregistry.Registry
	IntentCodec    *intenttoken.Codec
	PendingIntents pendingintent.Store
	RefreshTokens  refreshtoken.Store
	Identity       identity.Provider
	RateLimiter    *ratelimit.Limiter
	Logger         log.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
