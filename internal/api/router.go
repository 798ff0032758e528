package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqtt-device-gateway/internal/gateway"
)

const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/metrics", s.handleMetrics)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/report", s.handleGetDeviceReport)
				r.Post("/commands", s.handleDeviceCommand)
				r.Get("/history", s.handleGetDeviceHistory)
			})
		})
	})

	return r
}

// handleHealth returns the gateway health. Anything other than healthy or
// starting is served with 503 so load balancers and probes see it.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.version,
		})
		return
	}

	msg := s.health.Current()
	status := http.StatusOK
	switch msg.Status {
	case gateway.HealthHealthy, gateway.HealthStarting:
	default:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, msg)
}

// handleMetrics serves the Prometheus exposition.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeNotFound(w, "metrics disabled")
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}
