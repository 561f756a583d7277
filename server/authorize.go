package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ohx-cloud/authd/intenttoken"
	"github.com/ohx-cloud/authd/token"
)

const deviceFlowInterval = 2 // seconds between /token polls, SPEC_FULL.md §4.F

// handleAuthorize implements Component G: it mints the intent token and
// either redirects the user to the grant page (code flow) or hands the
// client a device-flow descriptor directly.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, errBadRequest)
		return
	}
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")
	clientName := r.FormValue("client_name")
	redirectURI := r.FormValue("redirect_uri")
	responseType := r.FormValue("response_type")
	state := r.FormValue("state")
	requested := token.NewScopeSet(splitScope(r.FormValue("scope"))...)

	if _, err := s.cfg.Clients.Authenticate(clientID, clientSecret, requested); err != nil {
		writeError(w, mapClientRegistryError(err))
		return
	}

	now := s.cfg.now()
	issuer := s.cfg.Credentials[SystemCredentialIndex].IssuerEmail
	intent := token.NewIntentToken(issuer, s.systemKeyID(), clientID, requested, now)

	wrapped, err := s.cfg.IntentCodec.Wrap(intent)
	if err != nil {
		s.cfg.Logger.Errorf("authorize: wrapping intent token: %v", err)
		writeError(w, errInternal)
		return
	}
	code := intenttoken.Code(wrapped)

	switch responseType {
	case "code":
		q := url.Values{}
		q.Set("client_id", clientID)
		if clientSecret != "" {
			q.Set("client_secret", clientSecret)
		}
		if clientName != "" {
			q.Set("client_name", clientName)
		}
		if redirectURI != "" {
			q.Set("redirect_uri", redirectURI)
		}
		q.Set("response_type", responseType)
		q.Set("scope", requested.String())
		if state != "" {
			q.Set("state", state)
		}
		q.Set("code", code)
		q.Set("unsigned", wrapped)

		http.Redirect(w, r, s.cfg.GrantPageURL+"?"+q.Encode(), http.StatusSeeOther)
	case "device":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"device_code":      code,
			"user_code":        "",
			"verification_uri": s.cfg.GrantPageURL,
			"interval":         deviceFlowInterval,
			"expires_in":       int(token.IntentTokenLifetime.Seconds()) + 60,
			// Not part of spec.md §4.F's wire shape, but the grant page needs
			// the wrapped intent token to call /grant_scopes regardless of
			// which flow produced the code, so it rides along here the same
			// way it rides in the code flow's redirect query.
			"unsigned": wrapped,
		})
	default:
		writeError(w, errInvalidResponseType)
	}
}

func (s *Server) systemKeyID() string {
	if len(s.cfg.Credentials) == 0 {
		return ""
	}
	return s.cfg.Credentials[SystemCredentialIndex].KeyID
}

func splitScope(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
