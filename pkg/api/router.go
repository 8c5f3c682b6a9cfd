// Package api exposes a pkg/coordinator.Coordinator over the HTTP API
// described in spec.md §6, using the same chi middleware stack the
// teacher's own API router uses.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/api/handlers"
	"github.com/marmos91/raid5fs/pkg/coordinator"
)

// NewRouter builds the chi router for the coordinator HTTP API.
//
// Routes:
//   - GET    /
//   - GET    /status
//   - GET    /status/blocks
//   - POST   /upload
//   - GET    /files
//   - GET    /download/{file_id}
//   - DELETE /files/{file_id}
//   - GET    /search
//   - GET    /metrics (only if reg is non-nil)
func NewRouter(coord *coordinator.Coordinator, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := handlers.New(coord)

	r.Get("/", h.Root)
	r.Get("/status", h.Status)
	r.Get("/status/blocks", h.StatusBlocks)
	r.Post("/upload", h.Upload)
	r.Get("/files", h.Files)
	r.Get("/download/{file_id}", h.Download)
	r.Delete("/files/{file_id}", h.DeleteFile)
	r.Get("/search", h.Search)

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
