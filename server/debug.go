package server

import (
	"context"
	"net/http"
	"time"
)

// removalGracePeriod is how long after a user is queued for removal the
// sweep will actually delete it (SPEC_FULL.md §4.L).
const removalGracePeriod = time.Hour

// handleCheckForUsers implements Component L's HTTP-triggered half: a
// privileged caller asks for an immediate sweep.
func (s *Server) handleCheckForUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requirePrivileged(r, SystemCredentialIndex); err != nil {
		writeError(w, err)
		return
	}
	if err := s.SweepRemovedUsers(r.Context()); err != nil {
		writeError(w, errInternal)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SweepRemovedUsers implements Component L itself: it sweeps the external
// identity provider's removal queue, deleting every user whose queued_remove
// timestamp is at least removalGracePeriod in the past. Per-user failures
// are logged and do not abort the sweep. Called both from
// handleCheckForUsers (on demand) and from the ticker cmd/authd/serve.go
// runs alongside the HTTP listeners (SPEC_FULL.md's AMBIENT STACK).
func (s *Server) SweepRemovedUsers(ctx context.Context) error {
	queued, err := s.cfg.Identity.QueuedRemovals(ctx)
	if err != nil {
		s.cfg.Logger.Errorf("check_for_users: listing queued removals: %v", err)
		return err
	}
	cutoff := s.cfg.now().Add(-removalGracePeriod)
	for _, q := range queued {
		if q.QueuedRemove.After(cutoff) {
			continue
		}
		if err := s.cfg.Identity.DeleteUser(ctx, q.UserID); err != nil {
			s.cfg.Logger.Warnf("check_for_users: deleting user %s: %v", q.UserID, err)
		}
	}
	return nil
}

// handleListIntermediateTokens is the supplemented debug endpoint listing
// every code currently held in the Pending-Intent Store, for operational
// visibility into in-flight authorize/grant activity.
func (s *Server) handleListIntermediateTokens(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requirePrivileged(r, SystemCredentialIndex); err != nil {
		writeError(w, err)
		return
	}
	keys, err := s.cfg.PendingIntents.Keys(r.Context())
	if err != nil {
		s.cfg.Logger.Errorf("list_intermediate_tokens: listing keys: %v", err)
		writeError(w, errInternal)
		return
	}
	writeJSON(w, keys)
}
