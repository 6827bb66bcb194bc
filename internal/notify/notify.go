// Package notify publishes the batch completion notification: a
// lightweight summary message, not the record payload — individual
// records were already routed during chunk processing.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bzfxn6/gas/internal/aggregate"
	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/sink"
)

// NotificationType identifies completion messages on the wire.
const NotificationType = "BATCH_COMPLETION_NOTIFICATION"

type NotificationSummary struct {
	TotalRecordsProcessed int     `json:"totalRecordsProcessed"`
	TotalErrors           int     `json:"totalErrors"`
	SuccessRate           float64 `json:"successRate"`
	ProcessingTime        float64 `json:"processingTime"`
	RecordsPerSecond      float64 `json:"recordsPerSecond"`
}

type ResultLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Notification is the completion message published after aggregation.
type Notification struct {
	Type       string              `json:"type"`
	BatchID    string              `json:"batchId"`
	CustomerID string              `json:"customerId"`
	TenantID   string              `json:"tenantId"`
	Deployment batch.Deployment    `json:"deployment"`
	SnapshotID string              `json:"snapshotId,omitempty"`
	Status     batch.Status        `json:"status"`
	Summary    NotificationSummary `json:"summary"`
	Location   ResultLocation      `json:"resultLocation"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Notifier publishes completion notifications to the streaming sink.
type Notifier struct {
	sink   sink.Sink
	logger *slog.Logger
}

func New(s sink.Sink, logger *slog.Logger) *Notifier {
	return &Notifier{sink: s, logger: logger}
}

// Run builds and sends the completion notification for an aggregated
// batch, blocking until the broker acknowledges.
func (n *Notifier) Run(ctx context.Context, cfg batch.Config, out *aggregate.Output) (*Notification, error) {
	successRate := 0.0
	recordsPerSecond := 0.0
	if out.TotalRecordsProcessed > 0 {
		successRate = float64(out.TotalRecordsProcessed-out.TotalErrors) / float64(out.TotalRecordsProcessed) * 100
	}
	if out.ProcessingTime > 0 {
		recordsPerSecond = float64(out.TotalRecordsProcessed) / out.ProcessingTime
	}

	msg := Notification{
		Type:       NotificationType,
		BatchID:    cfg.BatchID,
		CustomerID: cfg.CustomerID,
		TenantID:   cfg.TenantID,
		Deployment: cfg.Deployment,
		SnapshotID: cfg.SnapshotID,
		Status:     batch.StatusCompleted,
		Summary: NotificationSummary{
			TotalRecordsProcessed: out.TotalRecordsProcessed,
			TotalErrors:           out.TotalErrors,
			SuccessRate:           successRate,
			ProcessingTime:        out.ProcessingTime,
			RecordsPerSecond:      recordsPerSecond,
		},
		Location: ResultLocation{
			Bucket: cfg.Bucket,
			Key:    out.FinalResultKey,
		},
		Timestamp: out.CompletionTime,
	}

	if err := n.sink.Send(ctx, cfg.BatchID, msg); err != nil {
		return nil, fmt.Errorf("send completion notification: %w", err)
	}

	n.logger.Info("completion notification sent",
		slog.String("batch_id", cfg.BatchID),
		slog.Int("records", out.TotalRecordsProcessed),
		slog.Int("errors", out.TotalErrors))

	return &msg, nil
}
