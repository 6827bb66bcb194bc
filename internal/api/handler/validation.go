package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/internal/validate"
	"github.com/bzfxn6/gas/pkg/apierr"
)

// ValidationHandler serves persisted validation artifacts.
type ValidationHandler struct {
	logger *slog.Logger
	store  store.ObjectStore
	bucket string
}

func NewValidationHandler(logger *slog.Logger, os store.ObjectStore, bucket string) *ValidationHandler {
	return &ValidationHandler{logger: logger, store: os, bucket: bucket}
}

// Get returns the full validation result for a batch.
func (h *ValidationHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	result, err := validate.LoadResult(r.Context(), h.store, h.bucket, batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, h.logger, apierr.ValidationResultNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.ValidationFetchFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Errors returns the failure-facing view: gate message, retained error
// details and the summary rates.
func (h *ValidationHandler) Errors(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	report, err := validate.LoadErrors(r.Context(), h.store, h.bucket, batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, h.logger, apierr.ValidationResultNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.ValidationFetchFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
