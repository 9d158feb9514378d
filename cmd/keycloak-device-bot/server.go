package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrale/keycloak-device-bot/cmd/keycloak-device-bot/handlers/health"
)

type server struct {
	router  *chi.Mux
	health  http.Handler
	metrics http.Handler
	webhook http.Handler
}

// newServer builds the HTTP surface; webhook may be nil in polling mode
func newServer(flow health.Checker, gatherer prometheus.Gatherer, webhook http.Handler) *server {
	srv := &server{
		router:  chi.NewRouter(),
		health:  health.New(flow).WithVersion(Version),
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		webhook: webhook,
	}

	// Set up middleware
	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes()

	return srv
}

func (s *server) routes() {
	s.router.Method(http.MethodGet, "/health", s.health)
	s.router.Method(http.MethodGet, "/metrics", s.metrics)

	if s.webhook != nil {
		s.router.Method(http.MethodPost, "/telegram/webhook", s.webhook)
	}
}
