package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/coordinator"
)

// Server is the coordinator's HTTP server, supporting graceful shutdown.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
	addr         string
}

// New creates a Server bound to addr (host:port), serving coord. reg may
// be nil to disable the /metrics endpoint.
func New(addr string, coord *coordinator.Coordinator, reg *prometheus.Registry) *Server {
	router := NewRouter(coord, reg)
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second, // generous: download streams whole files
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("coordinator API listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("coordinator API shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("coordinator API failed: %w", err)
	}
}

// Stop gracefully shuts the server down; safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("coordinator API shutdown error: %w", err)
			return
		}
		logger.Info("coordinator API stopped gracefully")
	})
	return shutdownErr
}
