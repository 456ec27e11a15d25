package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/config"
	"github.com/snarg/subforge/internal/metrics"
	"github.com/snarg/subforge/internal/storage"
	"github.com/snarg/subforge/internal/tasks"
)

// ServerOptions wires the HTTP server to the rest of the service.
type ServerOptions struct {
	Config    *config.Config
	Tasks     tasks.Store
	Jobs      Jobs
	Artifacts storage.ArtifactStore
	Events    EventSource
	Health    HealthSources
	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics, no auth
	health := NewHealthHandler(opts.Health, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	auth := BearerAuth(cfg.AuthToken)
	r.Route("/api", func(r chi.Router) {
		CatalogHandler{}.Routes(r)
		NewTasksHandler(opts.Jobs, opts.Tasks, opts.Artifacts, opts.Events).Routes(r, auth)
		r.With(auth).Post("/captions", NewCaptionsHandler(caption.ParseCanvas(cfg.Resolution)).ServeHTTP)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
