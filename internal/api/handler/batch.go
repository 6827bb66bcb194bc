package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/pipeline"
	"github.com/bzfxn6/gas/pkg/apierr"
)

// BatchHandler accepts batch submissions and hands them to the worker
// fleet via the batch stream.
type BatchHandler struct {
	logger   *slog.Logger
	producer *pipeline.Producer
	bucket   string
}

func NewBatchHandler(logger *slog.Logger, producer *pipeline.Producer, bucket string) *BatchHandler {
	return &BatchHandler{logger: logger, producer: producer, bucket: bucket}
}

type submitResponse struct {
	BatchID     string    `json:"batchId"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Submit validates the request synchronously and enqueues the batch.
// Processing is asynchronous; callers poll the artifact endpoints.
func (h *BatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req batch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if req.Bucket == "" {
		req.Bucket = h.bucket
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	if err := req.Validate(); err != nil {
		writeAPIError(w, h.logger, apierr.SubmissionFailed(err.Error()))
		return
	}

	msgID, err := h.producer.Enqueue(r.Context(), pipeline.BatchMessage{
		Request: req,
		Trigger: pipeline.TriggerSubmit,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.BatchEnqueueFailed(err))
		return
	}

	h.logger.Info("batch submitted",
		slog.String("batch_id", req.BatchID),
		slog.String("customer_id", req.CustomerID),
		slog.String("message_id", msgID))

	writeJSON(w, http.StatusAccepted, submitResponse{
		BatchID:     req.BatchID,
		Status:      "QUEUED",
		SubmittedAt: time.Now().UTC(),
	})
}
