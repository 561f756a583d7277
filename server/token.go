package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/refreshtoken"
	"github.com/ohx-cloud/authd/token"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// handleToken implements Component I: it exchanges an authorize-flow code,
// a device-flow code, or a refresh token for a signed access token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, errBadRequest)
		return
	}
	switch r.FormValue("grant_type") {
	case "authorization_code":
		s.exchangeCode(w, r, r.FormValue("code"), errExpiredToken)
	case "device_code", "urn:ietf:params:oauth:grant-type:device_code":
		s.exchangeCode(w, r, r.FormValue("device_code"), errAuthorizationPending)
	case "refresh_token":
		s.exchangeRefreshToken(w, r)
	default:
		writeError(w, errBadRequest)
	}
}

// exchangeCode handles both authorization_code and device_code grants; they
// differ only in which form field carries the code and which error a missing
// pending-intent entry maps to.
func (s *Server) exchangeCode(w http.ResponseWriter, r *http.Request, code string, missingErr *apiError) {
	if code == "" {
		writeError(w, errBadRequest)
		return
	}
	ctx := r.Context()
	value, err := s.cfg.PendingIntents.Get(ctx, code)
	if errors.Is(err, pendingintent.ErrNotFound) {
		writeError(w, missingErr)
		return
	}
	if err != nil {
		s.cfg.Logger.Errorf("token: pending-intent lookup: %v", err)
		writeError(w, errInternal)
		return
	}
	if value == pendingintent.DeniedValue {
		_ = s.cfg.PendingIntents.Delete(ctx, code)
		writeError(w, errAccessDenied)
		return
	}

	parts := strings.Fields(value)
	accessRaw := parts[0]
	_, accessToken, err := s.cfg.Credentials.VerifyAny(accessRaw)
	if err != nil {
		s.cfg.Logger.Errorf("token: verifying stored access token: %v", err)
		writeError(w, errInternal)
		return
	}

	resp := tokenResponse{
		AccessToken: accessRaw,
		TokenType:   "bearer",
		ExpiresIn:   int(token.AccessTokenLifetime.Seconds()),
		Scope:       accessToken.Claims.Scope.String(),
	}

	if len(parts) > 1 {
		refreshRaw := parts[1]
		_, refreshToken, err := s.cfg.Credentials.VerifyAny(refreshRaw)
		if err != nil {
			s.cfg.Logger.Errorf("token: verifying stored refresh token: %v", err)
			writeError(w, errInternal)
			return
		}
		resp.RefreshToken = refreshRaw
		resp.Scope = refreshToken.Claims.Scope.String()
		// The refresh-token record was already written by /grant_scopes at
		// mint time (SPEC_FULL.md §9); nothing to store here.
	}

	_ = s.cfg.PendingIntents.Delete(ctx, code)
	writeJSON(w, resp)
}

func (s *Server) exchangeRefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshRaw := r.FormValue("refresh_token")
	if refreshRaw == "" {
		writeError(w, errBadRequest)
		return
	}
	ctx := r.Context()
	record, err := s.cfg.RefreshTokens.Get(ctx, refreshtoken.Hash(refreshRaw))
	if errors.Is(err, refreshtoken.ErrNotFound) {
		writeError(w, errRefreshTokenNotValid)
		return
	}
	if err != nil {
		s.cfg.Logger.Errorf("token: refresh-token lookup: %v", err)
		writeError(w, errInternal)
		return
	}

	now := s.cfg.now()
	scopes := record.ScopeSet()
	issuer := s.cfg.Credentials[SystemCredentialIndex].IssuerEmail
	access := token.Token{
		Header: token.Header{Algorithm: token.AlgorithmRS256},
		Claims: token.Claims{
			Issuer:    issuer,
			Subject:   issuer,
			Audience:  token.Audience,
			ClientID:  record.ClientID,
			UserID:    record.UserID,
			Scope:     scopes.Without(token.ScopeOfflineAccess),
		},
	}.WithExpiry(now, token.AccessTokenLifetime).Fresh(now)

	signed, err := s.cfg.Credentials[SystemCredentialIndex].Sign(access)
	if err != nil {
		s.cfg.Logger.Errorf("token: signing refreshed access token: %v", err)
		writeError(w, errInternal)
		return
	}

	writeJSON(w, tokenResponse{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int(token.AccessTokenLifetime.Seconds()),
		RefreshToken: refreshRaw,
		Scope:        scopes.String(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
