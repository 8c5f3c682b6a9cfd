// Package handlers implements the coordinator HTTP API's endpoint
// handlers (spec.md §6), each backed by a pkg/coordinator.Coordinator.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/coordinator"
	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/stripe"
)

// Handler holds the coordinator every endpoint delegates to.
type Handler struct {
	coord *coordinator.Coordinator
}

// New creates a Handler over coord.
func New(coord *coordinator.Coordinator) *Handler {
	return &Handler{coord: coord}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// Root reports liveness.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok", "status": "healthy"})
}

// Status reports cluster-wide node and stripe status (spec.md §4.8).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.SystemStatus(r.Context()))
}

// StatusBlocks enumerates every file's full per-block placement.
func (h *Handler) StatusBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.BlockStatus())
}

// Upload accepts a multipart form with field "file" and commits it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload body")
		return
	}

	fm, err := h.coord.Upload(r.Context(), header.Filename, content)
	if err != nil {
		logger.Error("upload failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("upload failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":     fm.FileID,
		"filename":    fm.Filename,
		"size":        fm.Size,
		"uploaded_at": fm.UploadedAt,
		"message":     "upload successful",
	})
}

// Files lists every known file's metadata.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.List())
}

// Download streams a file's reconstructed content.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	filename, content, err := h.coord.Download(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		if errors.Is(err, stripe.ErrDegradedUnrecoverable) {
			writeError(w, http.StatusInternalServerError, "file is unrecoverable: too many blocks missing")
			return
		}
		logger.Error("download failed", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// DeleteFile removes a file and its blocks.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")

	if err := h.coord.Delete(r.Context(), fileID); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger.Error("delete failed", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted", "file_id": fileID})
}

// Search returns files whose filename contains the query parameter,
// case-insensitive.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	results := h.coord.Search(query)
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}
