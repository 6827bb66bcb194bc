package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/pkg/apierr"
)

// ResultHandler serves the chunk manifest and the final aggregated
// result. Artifacts are returned verbatim; they are already JSON.
type ResultHandler struct {
	logger *slog.Logger
	store  store.ObjectStore
	bucket string
}

func NewResultHandler(logger *slog.Logger, os store.ObjectStore, bucket string) *ResultHandler {
	return &ResultHandler{logger: logger, store: os, bucket: bucket}
}

// Manifest returns the persisted chunk plan for a batch.
func (h *ResultHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	data, err := h.store.Get(r.Context(), h.bucket, store.ChunkManifestKey(batchID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, h.logger, apierr.ChunkManifestNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.ChunkManifestFetchFailed(err))
		return
	}
	writeRaw(w, data)
}

// Final returns the consolidated end-of-batch artifact.
func (h *ResultHandler) Final(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	data, err := h.store.Get(r.Context(), h.bucket, store.FinalResultKey(batchID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, h.logger, apierr.FinalResultNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.FinalResultFetchFailed(err))
		return
	}
	writeRaw(w, data)
}

func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
