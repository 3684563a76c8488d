package api

import (
	"net/http"
)

// handleStatus returns the bridge snapshot: connection state, confirmed
// subscriptions, event and command counters, and the last error.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

// handleResubscribe discards the platform subscriber and builds a fresh
// one. The rebuild happens asynchronously; poll /status to follow it.
func (s *Server) handleResubscribe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	s.logger.Info("resubscribe requested",
		"subject", claims.Subject,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	s.bridge.ForceRebuild()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "rebuilding",
	})
}
