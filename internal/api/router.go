package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/greenhome-proxy/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (token in query, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(requirePermission(auth.PermStatusRead)).Get("/status", s.handleStatus)
			r.With(requirePermission(auth.PermStatusRead)).Get("/metrics", s.handleMetrics)
			r.With(requirePermission(auth.PermCommandsRead)).Get("/commands", s.handleListCommands)
			r.With(requirePermission(auth.PermSystemAdmin)).Post("/resubscribe", s.handleResubscribe)
		})
	})

	return r
}

// handleHealth reports liveness. The status is degraded while the
// platform broker is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.bridge.Status().Connected
	status := "ok"
	if !connected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"version":          s.version,
		"bridge_connected": connected,
	})
}
