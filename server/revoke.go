package server

import (
	"net/http"

	"github.com/ohx-cloud/authd/refreshtoken"
)

// handleRevoke implements Component J's revoke half: a privileged (system
// credential) caller deletes a refresh-token record by its hash. Missing
// keys are silently ignored, making revoke idempotent.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requirePrivileged(r, SystemCredentialIndex); err != nil {
		writeError(w, err)
		return
	}
	tok := r.URL.Query().Get("token")
	if tok == "" {
		writeError(w, errBadRequest)
		return
	}
	if err := s.cfg.RefreshTokens.Delete(r.Context(), refreshtoken.Hash(tok)); err != nil {
		s.cfg.Logger.Errorf("revoke: deleting refresh token record: %v", err)
		writeError(w, errInternal)
		return
	}
	w.WriteHeader(http.StatusOK)
}
