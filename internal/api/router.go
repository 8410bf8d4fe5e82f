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

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/factory", s.handleFactory)
		r.Get("/items", s.handleItems)

		r.Route("/manual", func(r chi.Router) {
			r.Get("/", s.handleListManual)
			r.Post("/", s.handleSubmitManual)
			r.Get("/deliveries", s.handleListDeliveries)
			r.Delete("/{id}", s.handleCancelManual)
		})

		r.Get("/logs", s.handleLogs)
		r.Post("/reload", s.handleReload)

		r.Get("/ws", s.handleWebSocket)
	})

	// Remote clients authenticate with their own token in the handler.
	if s.clients != nil {
		r.Handle("/ws/client", s.clients)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r
}
