// Package server exposes a blocknode.Store over the node HTTP API
// consumed by pkg/nodeclient (spec.md §6), following the same chi
// middleware stack the coordinator's own API uses.
package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/blocknode"
)

// NewRouter builds the chi router for one block-node.
//
// Routes:
//   - POST   /store
//   - GET    /retrieve/{block_id}
//   - DELETE /delete/{block_id}
//   - GET    /
func NewRouter(store *blocknode.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handler{store: store}

	r.Post("/store", h.store)
	r.Get("/retrieve/{block_id}", h.retrieve)
	r.Delete("/delete/{block_id}", h.delete)
	r.Get("/", h.info)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("node request completed",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start).String())
	})
}

type handler struct {
	store *blocknode.Store
}

type storeRequest struct {
	BlockID string `json:"block_id"`
	Data    string `json:"data"`
}

func (h *handler) store(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.BlockID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "block_id is required"})
		return
	}

	data, err := hex.DecodeString(req.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "data is not valid hex"})
		return
	}

	if err := h.store.StoreBlock(req.BlockID, data); err != nil {
		if errors.Is(err, blocknode.ErrStorageFull) {
			writeJSON(w, http.StatusInsufficientStorage, map[string]string{"message": "insufficient storage"})
			return
		}
		logger.Error("store block failed", "block_id", req.BlockID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to store block"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "stored", "block_id": req.BlockID})
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "block_id")

	data, err := h.store.RetrieveBlock(blockID)
	if err != nil {
		if errors.Is(err, blocknode.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "block not found"})
			return
		}
		logger.Error("retrieve block failed", "block_id", blockID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to retrieve block"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"block_id": blockID, "data": hex.EncodeToString(data)})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	blockID := chi.URLParam(r, "block_id")

	if err := h.store.DeleteBlock(blockID); err != nil {
		logger.Error("delete block failed", "block_id", blockID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to delete block"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	capacity, used, available := h.store.Usage()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":               "ok",
		"storage_path":          h.store.Dir(),
		"capacity_bytes":        capacity,
		"used_space_bytes":      used,
		"available_space_bytes": available,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
