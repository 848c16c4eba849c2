// Package api exposes the thin operational HTTP surface the engine
// owns directly — health and metrics endpoints only. The business
// REST API (device/alarm/rule CRUD) is an external collaborator per
// spec.md and lives outside this core, so it is not rebuilt here.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/savegress/intellimaint/internal/scheduler"
)

// Server serves /healthz, /readyz and /metrics for the engine process.
type Server struct {
	router    chi.Router
	scheduler *scheduler.Scheduler
	registry  http.Handler
}

// NewServer builds the ops-only router. registry is the prometheus
// handler (e.g. promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
func NewServer(sched *scheduler.Scheduler, registry http.Handler) *Server {
	if registry == nil {
		registry = promhttp.Handler()
	}
	s := &Server{
		router:    chi.NewRouter(),
		scheduler: sched,
		registry:  registry,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Logger)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	s.router.Get("/healthz", s.healthCheck)
	s.router.Get("/readyz", s.readyCheck)
	s.router.Get("/metrics", s.registry.ServeHTTP)
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		respondUnready(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
}

func respondUnready(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]any{"status": "not ready"})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
