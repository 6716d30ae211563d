package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/churchadmin/internal/api/handler"
	mw "github.com/edvin/churchadmin/internal/api/middleware"
	"github.com/edvin/churchadmin/internal/backup"
	"github.com/edvin/churchadmin/internal/core"
)

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	services    *core.Services
	pool        *pgxpool.Pool
	orch        *backup.Orchestrator
	restoreOrch *backup.RestoreOrchestrator
	borg        *backup.BorgRunner
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, services *core.Services, orch *backup.Orchestrator, restoreOrch *backup.RestoreOrchestrator, borg *backup.BorgRunner) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		services:    services,
		pool:        pool,
		orch:        orch,
		restoreOrch: restoreOrch,
		borg:        borg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		bk := handler.NewBackup(s.orch, s.services.Job, s.services.Artifact)
		r.Post("/backups", bk.Create)
		r.Get("/backups/jobs", bk.List)
		r.Get("/backups/jobs/{id}", bk.Get)
		r.Get("/backups/statistics", bk.Statistics)
		r.Get("/backups/artifacts/{id}/manifest", bk.Manifest)

		rs := handler.NewRestore(s.restoreOrch, s.services.Restore)
		r.Post("/backups/artifacts/{id}/restore", rs.Create)
		r.Get("/backups/restores/{id}", rs.Get)

		st := handler.NewSettings(s.services.Settings, s.services.Filter)
		r.Get("/backups/settings", st.Get)
		r.Put("/backups/settings", st.Update)
		r.Get("/backups/filters", st.ListFilters)
		r.Put("/backups/filters/{id}", st.UpdateFilter)

		bg := handler.NewBorg(s.orch, s.borg)
		r.Post("/backups/borg/run", bg.Run)
		r.Get("/backups/borg/archives", bg.ListArchives)
		r.Get("/backups/borg/info", bg.Info)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz reports ready only when the job store is reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Handler exposes the composed router.
func (s *Server) Handler() http.Handler {
	return s.router
}
