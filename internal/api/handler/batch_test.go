package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bzfxn6/gas/pkg/apierr"
)

func TestBatchHandler_Submit_InvalidBody(t *testing.T) {
	h := NewBatchHandler(testLogger(), nil, "data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != apierr.CodeInvalidRequestBody {
		t.Errorf("expected code %s, got %s", apierr.CodeInvalidRequestBody, resp.Error.Code)
	}
}

func TestBatchHandler_Submit_ValidationFailure(t *testing.T) {
	h := NewBatchHandler(testLogger(), nil, "data")
	// Missing customerId/tenantId/file.
	body := []byte(`{"batchId":"b-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != apierr.CodeSubmissionFailed {
		t.Errorf("expected code %s, got %s", apierr.CodeSubmissionFailed, resp.Error.Code)
	}
}
