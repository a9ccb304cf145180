package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{ref}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/control", s.handleControlDevice)
				})
			})

			r.Get("/remotes", s.handleListRemotes)

			r.Get("/stats", s.handleStats)

			r.Route("/scenes", func(r chi.Router) {
				r.Get("/", s.handleListScenes)
				r.Post("/run", s.handleRunScene)
			})
		})
	})

	return r
}

// handleStats reports runtime counters for operators: the bridge registry
// breakdown, push listener statistics and connected WebSocket clients.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bridge":     s.bridge.Stats(),
		"ws_clients": s.hub.ClientCount(),
	})
}

// handleHealth returns the server health status and bridge summary.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"available": s.bridge.Available(),
		"bridge":    s.bridge.Stats(),
	})
}
