package server

import (
	"net/http"
	"strings"

	"github.com/ohx-cloud/authd/token"
)

// corsMiddleware reflects the requesting origin, matching spec.md §6's CORS
// contract exactly: gorilla/handlers.CORS's defaults are narrower (they do
// not reflect-all-origins together with credentials), so this is bespoke.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "origin, authorization, content-type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited gates h behind the shared per-client-IP limiter (SPEC_FULL.md
// §5); it is consulted before any stateful work, so it wraps the handler at
// the outermost layer among the protocol endpoints.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.RateLimiter.Allow(clientIP(r)) {
			writeError(w, errRateLimited)
			return
		}
		h(w, r)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// authContext is what the credential verification step exposes to handlers:
// which credential matched (its index gates privileged endpoints) and the
// claims the caller's token carried.
type authContext struct {
	CredentialsIndex int
	UserID           string
	ClientID         string
	Scopes           token.ScopeSet
}

// bearerToken extracts the caller's token from the Authorization header or,
// failing that, the ?auth= query parameter (SPEC_FULL.md §6).
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(h, prefix) {
			return strings.TrimPrefix(h, prefix), true
		}
		return "", false
	}
	if auth := r.URL.Query().Get("auth"); auth != "" {
		return auth, true
	}
	return "", false
}

// authenticate verifies the caller's bearer token against every credential in
// order and builds the authContext handlers consult for privilege checks.
func (s *Server) authenticate(r *http.Request) (authContext, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return authContext{}, errUnauthorized
	}
	idx, t, err := s.cfg.Credentials.VerifyAny(raw)
	if err != nil {
		return authContext{}, errUnauthorized
	}
	if err := t.Claims.CheckExpiry(s.cfg.now()); err != nil {
		return authContext{}, errTokenExpired
	}
	return authContext{
		CredentialsIndex: idx,
		UserID:           t.Claims.UserID,
		ClientID:         t.Claims.ClientID,
		Scopes:           t.Claims.Scope,
	}, nil
}

// requirePrivileged authenticates the caller and requires it matched the
// credential at wantIndex (system=0, user=1 by SPEC_FULL.md §6 convention).
func (s *Server) requirePrivileged(r *http.Request, wantIndex int) (authContext, error) {
	ctx, err := s.authenticate(r)
	if err != nil {
		return authContext{}, err
	}
	if ctx.CredentialsIndex != wantIndex {
		return authContext{}, errUnauthorized
	}
	return ctx, nil
}

// requireScope authenticates the caller and requires scope to be present.
func (s *Server) requireScope(r *http.Request, scope string) (authContext, error) {
	ctx, err := s.authenticate(r)
	if err != nil {
		return authContext{}, err
	}
	if !ctx.Scopes.Has(scope) {
		return authContext{}, errInsufficientScope(scope)
	}
	return ctx, nil
}
