// Package server exposes the gadget container over HTTP.
//
// Routes:
//
//	GET /gadgets/ifr?url=&lang=&country=&mid=&view=&nocache=&up_<pref>=
//	GET /gadgets/js/{features}.js?c=0|1
//	GET /gadgets/features
//	GET /gadgets/resources/*
//	GET /healthz
//
// A failed render answers with an error status and a plain text message;
// no partial payload is ever written.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/gadgethost/pkg/assemble"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/pipeline"
)

// Options configure a Server.
type Options struct {
	Runner    *pipeline.Runner
	Registry  *feature.Registry
	Assembler *assemble.Assembler
	// ResourceDir is served under /gadgets/resources/. Empty disables the route.
	ResourceDir string
	Logger      *log.Logger
}

// Server is the HTTP front end of the container.
type Server struct {
	runner    *pipeline.Runner
	registry  *feature.Registry
	assembler *assemble.Assembler
	resources string
	logger    *log.Logger
	router    chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		runner:    opts.Runner,
		registry:  opts.Registry,
		assembler: opts.Assembler,
		resources: opts.ResourceDir,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/gadgets", func(r chi.Router) {
		r.Get("/ifr", s.handleRender)
		r.Get("/js/{features}", s.handleJS)
		r.Get("/features", s.handleFeatures)
		if s.resources != "" {
			fs := http.StripPrefix("/gadgets/resources/", http.FileServer(http.Dir(s.resources)))
			r.Handle("/resources/*", fs)
		}
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenConfig holds listener settings for ListenAndServe.
type ListenConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg ListenConfig) error {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
