package server

import (
	"errors"
	"net/http"

	"github.com/ohx-cloud/authd/identity"
)

// handleUserInfo implements Component J's profile half: a caller whose
// access token carries the "profile" scope can look up any user's profile
// (by ?user_id=) or, lacking one, its own.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx, err := s.requireScope(r, "profile")
	if err != nil {
		writeError(w, err)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = ctx.UserID
	}
	if userID == "" {
		writeError(w, errBadRequest)
		return
	}
	profile, err := s.cfg.Identity.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, errNotFound)
			return
		}
		s.cfg.Logger.Errorf("userinfo: identity provider: %v", err)
		writeError(w, errInternal)
		return
	}
	writeJSON(w, profile)
}
