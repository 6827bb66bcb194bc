package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bzfxn6/gas/internal/aggregate"
	"github.com/bzfxn6/gas/internal/batch"
)

type captureSink struct {
	keys   []string
	values []any
	err    error
}

func (c *captureSink) Send(ctx context.Context, key string, value any) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.values = append(c.values, value)
	return nil
}

func (c *captureSink) Close() error { return nil }

func testOutput() *aggregate.Output {
	return &aggregate.Output{
		BatchID:               "batch-1",
		TotalRecordsProcessed: 100,
		TotalErrors:           4,
		ProcessingTime:        8.0,
		FinalResultKey:        "final-results/batch-1/aggregated-results.json",
		CompletionTime:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testConfig() batch.Config {
	return batch.Config{Request: batch.Request{
		Bucket:     "data",
		BatchID:    "batch-1",
		CustomerID: "cust-1",
		TenantID:   "tenant-1",
		Deployment: batch.DeploymentWorkspace,
		SnapshotID: "snap-1",
	}}
}

func TestNotifierRun(t *testing.T) {
	sink := &captureSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	msg, err := New(sink, logger).Run(context.Background(), testConfig(), testOutput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if msg.Type != NotificationType {
		t.Errorf("expected type %s, got %s", NotificationType, msg.Type)
	}
	if msg.Status != batch.StatusCompleted {
		t.Errorf("expected %s, got %s", batch.StatusCompleted, msg.Status)
	}
	if msg.Summary.SuccessRate != 96.0 {
		t.Errorf("expected 96%% success rate, got %f", msg.Summary.SuccessRate)
	}
	if msg.Summary.RecordsPerSecond != 12.5 {
		t.Errorf("expected 12.5 rps, got %f", msg.Summary.RecordsPerSecond)
	}
	if msg.Location.Bucket != "data" || msg.Location.Key == "" {
		t.Errorf("unexpected result location: %+v", msg.Location)
	}
	if len(sink.keys) != 1 || sink.keys[0] != "batch-1" {
		t.Errorf("expected one send keyed by batch id, got %v", sink.keys)
	}
}

func TestNotifierRun_SendFailure(t *testing.T) {
	sink := &captureSink{err: fmt.Errorf("broker unavailable")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := New(sink, logger).Run(context.Background(), testConfig(), testOutput()); err == nil {
		t.Fatal("expected error when the broker rejects the notification")
	}
}
