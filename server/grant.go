package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/refreshtoken"
	"github.com/ohx-cloud/authd/token"
)

type grantRequest struct {
	Unsigned string   `json:"unsigned"`
	Code     string   `json:"code"`
	Scopes   []string `json:"scopes"`
}

// handleGrantScopes implements Component H: the authenticated end user
// confirms or narrows the requested scopes, and the server signs the access
// (and, for offline_access, refresh) token and stores it under code.
func (s *Server) handleGrantScopes(w http.ResponseWriter, r *http.Request) {
	userID, ok, err := s.cfg.Identity.AuthenticateSession(r)
	if err != nil {
		s.cfg.Logger.Errorf("grant_scopes: identity provider: %v", err)
		writeError(w, errInternal)
		return
	}
	if !ok {
		writeError(w, errUnauthorized)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest)
		return
	}

	if _, err := s.cfg.PendingIntents.Get(r.Context(), req.Code); err == nil {
		writeError(w, errAlreadyUsed)
		return
	} else if !errors.Is(err, pendingintent.ErrNotFound) {
		s.cfg.Logger.Errorf("grant_scopes: pending-intent lookup: %v", err)
		writeError(w, errInternal)
		return
	}

	intent, err := s.cfg.IntentCodec.Unwrap(req.Unsigned)
	if err != nil {
		writeError(w, errExpiredToken)
		return
	}
	now := s.cfg.now()
	if err := intent.Claims.CheckExpiry(now); err != nil {
		writeError(w, errExpiredToken)
		return
	}

	intent.Header.Algorithm = token.AlgorithmRS256
	intent.Claims.UserID = userID
	granted := intent.Claims.Scope.Intersect(token.NewScopeSet(req.Scopes...))

	signer := s.cfg.Credentials[SystemCredentialIndex]

	var value string
	if granted.Has(token.ScopeOfflineAccess) {
		access := intent.WithScope(granted.Without(token.ScopeOfflineAccess)).
			WithExpiry(now, token.AccessTokenLifetime).Fresh(now)
		signedAccess, err := signer.Sign(access)
		if err != nil {
			s.cfg.Logger.Errorf("grant_scopes: signing access token: %v", err)
			writeError(w, errInternal)
			return
		}
		refresh := intent.WithScope(granted).
			WithExpiry(now, token.RefreshTokenLifetime).Fresh(now)
		signedRefresh, err := signer.Sign(refresh)
		if err != nil {
			s.cfg.Logger.Errorf("grant_scopes: signing refresh token: %v", err)
			writeError(w, errInternal)
			return
		}

		// Recorded here, not at /token: SPEC_FULL.md §9 prefers the refresh
		// token exist in the registry from the moment it is minted, so a
		// token handed to the user-facing page is redeemable even if the
		// client never completes the /token exchange.
		record := refreshtoken.NewRecord(userID, intent.Claims.ClientID, granted, signedRefresh, now)
		if err := s.cfg.RefreshTokens.Put(r.Context(), refreshtoken.Hash(signedRefresh), record); err != nil {
			s.cfg.Logger.Errorf("grant_scopes: storing refresh token record: %v", err)
			writeError(w, errInternal)
			return
		}

		value = signedAccess + " " + signedRefresh
	} else {
		access := intent.WithScope(granted).WithExpiry(now, token.AccessTokenLifetime).Fresh(now)
		signedAccess, err := signer.Sign(access)
		if err != nil {
			s.cfg.Logger.Errorf("grant_scopes: signing access token: %v", err)
			writeError(w, errInternal)
			return
		}
		value = signedAccess
	}

	if err := s.cfg.PendingIntents.PutIfAbsent(r.Context(), req.Code, value, pendingintent.TTL); err != nil {
		if errors.Is(err, pendingintent.ErrAlreadyUsed) {
			writeError(w, errAlreadyUsed)
			return
		}
		s.cfg.Logger.Errorf("grant_scopes: storing pending intent: %v", err)
		writeError(w, errInternal)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(req.Code))
}
