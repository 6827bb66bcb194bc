package handler

import (
	"net/http"

	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/pkg/apierr"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	valkey valkey.Client
}

func NewHealthHandler(client valkey.Client) *HealthHandler {
	return &HealthHandler{valkey: client}
}

// Healthz is a liveness probe: process is up.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is a readiness probe: the queue must answer a ping before the
// service accepts submissions.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.valkey.Do(r.Context(), h.valkey.B().Ping().Build()).Error(); err != nil {
		writeAPIError(w, nil, apierr.QueueNotReady())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
