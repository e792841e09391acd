package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/config"
	"github.com/narratage/narratage/internal/events"
	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/metrics"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ServerOptions bundles everything the HTTP layer serves.
type ServerOptions struct {
	Config    *config.Config
	DB        HealthChecker
	Keys      *keystore.Store
	Project   *project.Store
	Service   *gen.Service
	Runner    *gen.Runner
	Bus       *events.Bus
	Media     storage.MediaStore
	WebFS     fs.FS
	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics — no auth
	health := NewHealthHandler(opts.DB, opts.Keys, opts.Media, opts.Runner, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.Config.AuthToken))

		r.Route("/api/v1", func(r chi.Router) {
			NewKeysHandler(opts.Keys).Routes(r)
			NewScriptHandler(opts.Service, opts.Project).Routes(r)
			NewSegmentsHandler(opts.Service, opts.Project).Routes(r)
			NewGenerateHandler(opts.Runner).Routes(r)
			NewEventsHandler(opts.Bus).Routes(r)
		})

		NewMediaHandler(opts.Media).Routes(r)
	})

	// Web UI
	if opts.WebFS != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.WebFS)))
	}

	return &Server{
		http: &http.Server{
			Addr:         opts.Config.HTTPAddr,
			Handler:      r,
			ReadTimeout:  opts.Config.ReadTimeout,
			WriteTimeout: opts.Config.WriteTimeout,
			IdleTimeout:  opts.Config.IdleTimeout,
		},
		log: opts.Log,
	}
}

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
