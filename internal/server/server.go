// Package server exposes the bridge over local HTTP. The surface is meant
// for shortcuts and wall-mounted controllers on the LAN, so every response
// is JSON and failures map to coarse status codes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tessro/riffd/internal/bridge"
	"github.com/tessro/riffd/internal/grouping"
	"github.com/tessro/riffd/internal/spotify/client"
)

// TrackLookup answers metadata queries by native track ID.
type TrackLookup interface {
	GetTrack(ctx context.Context, id string) (*client.Track, error)
}

// Config wires the server to the flows it fronts.
type Config struct {
	Addr      string
	Logger    *log.Logger
	Service   *bridge.Service
	Connector *bridge.Connector
	Grouping  *grouping.Orchestrator
	Resolver  *bridge.Resolver
	Tracks    TrackLookup
}

// Server is the riffd HTTP daemon.
type Server struct {
	logger    *log.Logger
	service   *bridge.Service
	connector *bridge.Connector
	groups    *grouping.Orchestrator
	resolver  *bridge.Resolver
	tracks    TrackLookup
	http      *http.Server
}

// New builds the router and the underlying HTTP server. The write timeout
// is generous because a cold full-playlist scan can sit behind a request.
func New(cfg Config) *Server {
	s := &Server{
		logger:    cfg.Logger,
		service:   cfg.Service,
		connector: cfg.Connector,
		groups:    cfg.Grouping,
		resolver:  cfg.Resolver,
		tracks:    cfg.Tracks,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/add-current-smart", s.handleAddCurrent)
	r.Get("/media-actions-smart", s.handleAddCurrent)
	r.Get("/now-playing", s.handleNowPlaying)
	r.Get("/group", s.handleGroup)
	r.Post("/group", s.handleGroup)
	r.Get("/spotify-connect", s.handleConnect)
	r.Post("/spotify-connect", s.handleConnect)
	r.Get("/spotify-track/{id}", s.handleTrack)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
