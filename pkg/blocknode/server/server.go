package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/blocknode"
)

// Server is a block-node's HTTP server, supporting graceful shutdown.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
	addr         string
}

// New creates a Server bound to addr (host:port), serving store.
func New(addr string, store *blocknode.Store) *Server {
	router := NewRouter(store)
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves requests until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("block-node server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("block-node server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("block-node server failed: %w", err)
	}
}

// Stop gracefully shuts the server down; safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("block-node server shutdown error: %w", err)
			return
		}
		logger.Info("block-node server stopped gracefully")
	})
	return shutdownErr
}
