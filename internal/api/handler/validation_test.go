package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/internal/store/memory"
	"github.com/bzfxn6/gas/internal/validate"
	"github.com/bzfxn6/gas/pkg/apierr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validationRouter(mem *memory.Store) *chi.Mux {
	h := NewValidationHandler(testLogger(), mem, "data")
	r := chi.NewRouter()
	r.Get("/batches/{batchID}/validation", h.Get)
	r.Get("/batches/{batchID}/validation/errors", h.Errors)
	return r
}

func TestValidationHandler_Get(t *testing.T) {
	mem := memory.New()
	result := validate.Result{BatchID: "batch-1", Status: validate.StatusPassed, RecordsProcessed: 10, RecordsValidated: 10}
	data, _ := json.Marshal(result)
	mem.Put(context.Background(), "data", store.ValidationResultKey("batch-1"), data, "application/json")

	req := httptest.NewRequest(http.MethodGet, "/batches/batch-1/validation", nil)
	w := httptest.NewRecorder()
	validationRouter(mem).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got validate.Result
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BatchID != "batch-1" || got.Status != validate.StatusPassed {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestValidationHandler_Get_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/batches/missing/validation", nil)
	w := httptest.NewRecorder()
	validationRouter(memory.New()).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != apierr.CodeValidationResultNotFound {
		t.Errorf("expected code %s, got %s", apierr.CodeValidationResultNotFound, resp.Error.Code)
	}
}

func TestValidationHandler_Errors_DefaultMessage(t *testing.T) {
	mem := memory.New()
	result := validate.Result{
		BatchID: "batch-1",
		Status:  validate.StatusFailed,
		ValidationErrors: []validate.RecordError{
			{LineNumber: 3, Error: "invalid email format: nope"},
		},
	}
	data, _ := json.Marshal(result)
	mem.Put(context.Background(), "data", store.ValidationResultKey("batch-1"), data, "application/json")

	req := httptest.NewRequest(http.MethodGet, "/batches/batch-1/validation/errors", nil)
	w := httptest.NewRecorder()
	validationRouter(mem).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report validate.ErrorReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.ErrorMessage != "validation failed" {
		t.Errorf("expected default message, got %q", report.ErrorMessage)
	}
	if len(report.ValidationErrors) != 1 || report.ValidationErrors[0].LineNumber != 3 {
		t.Errorf("unexpected errors: %+v", report.ValidationErrors)
	}
}
