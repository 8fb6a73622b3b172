// Package server exposes the Request Router (C7) over HTTP: the four
// inbound actions of spec.md §6.1 as JSON endpoints, an SSE feed for a
// Turn's chunk callbacks, and the ambient /health and /metrics surface.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/coordinator"
	"github.com/devon-ng/gatewaycore/internal/credential"
	"github.com/devon-ng/gatewaycore/internal/ratelimit"
)

// Server holds the HTTP router and every dependency handlers need. It
// has no state of its own beyond the router — everything a request
// touches (turns, credentials, rate limits) lives in the components it
// wraps.
type Server struct {
	router chi.Router
	cfg    *config.Config
	coord  *coordinator.Coordinator
	creds  *credential.Store
	limits *ratelimit.Limiter
}

// New builds a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler. limits may be nil, in which case
// Turn admission is never rate-limited.
func New(cfg *config.Config, coord *coordinator.Coordinator, creds *credential.Store, limits *ratelimit.Limiter) *Server {
	s := &Server{cfg: cfg, coord: coord, creds: creds, limits: limits}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/turns", s.handleProcessContent)
	r.Get("/v1/turns/{streamId}/events", s.handleEvents)
	r.Post("/v1/turns/{streamId}/cancel", s.handleCancel)
	r.Get("/v1/models/{providerId}", s.handleGetModels)
	r.Post("/v1/credentials/{operation}", s.handleCredentialOperation)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
