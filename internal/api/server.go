// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the LED over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Thermoquad/lumen/internal/link"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	ListenAddress string
	ListenPort    int
	// ToggleTimeout bounds how long a request waits for its turn on the
	// device. Zero waits as long as the client does.
	ToggleTimeout time.Duration
}

// Server exposes a Link over HTTP.
type Server struct {
	listenAddr string
	link       *link.Link
	stats      *ledconn.Statistics
	logger     zerolog.Logger
	toggleWait time.Duration
	router     *chi.Mux
}

// NewServer creates a Server. stats may be nil.
func NewServer(cfg Config, l *link.Link, stats *ledconn.Statistics, logger zerolog.Logger) *Server {
	s := &Server{
		listenAddr: net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.ListenPort)),
		link:       l,
		stats:      stats,
		logger:     logger,
		toggleWait: cfg.ToggleTimeout,
		router:     chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Post("/toggle", s.toggleHandler)
	s.router.Get("/state", s.stateHandler)
	s.router.Get("/stats", s.statsHandler)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerStart, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
