package pipeline

import (
	"context"
	"log/slog"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/config"
	"github.com/bzfxn6/gas/internal/store"
)

// InitializeStage resolves the batch configuration: request validation,
// tunable defaults, source file stat and record estimate. It runs in both
// pipeline phases so resumed invocations carry a full Config too.
type InitializeStage struct {
	store    store.ObjectStore
	defaults config.PipelineConfig
	logger   *slog.Logger
}

func NewInitializeStage(os store.ObjectStore, defaults config.PipelineConfig, logger *slog.Logger) *InitializeStage {
	return &InitializeStage{store: os, defaults: defaults, logger: logger}
}

func (s *InitializeStage) Name() string { return "initialize" }

func (s *InitializeStage) Execute(ctx context.Context, rc *RunContext) error {
	req := rc.Request
	if req.Destination == "" {
		req.Destination = batch.Destination(s.defaults.Destination)
	}
	if req.MaxConcurrentChunks <= 0 {
		req.MaxConcurrentChunks = s.defaults.MaxConcurrentChunks
	}
	if req.MaxChunkSize <= 0 {
		req.MaxChunkSize = s.defaults.MaxChunkSize
	}
	if req.TargetTotalRecords <= 0 {
		// Zero here too means Initialize falls back to the file-size
		// estimate.
		req.TargetTotalRecords = s.defaults.TargetTotalRecords
	}

	cfg, err := batch.Initialize(ctx, s.store, req, s.logger)
	if err != nil {
		// A rejected submission is terminal, not retryable: record the
		// structured failure and stop without erroring the message.
		failure := batch.NewFailure(req, err.Error())
		s.logger.Error("batch submission failed",
			slog.String("batch_id", failure.BatchID),
			slog.String("customer_id", failure.CustomerID),
			slog.String("status", string(failure.BatchStatus)),
			slog.String("error", failure.ErrorMessage))
		rc.Halt = true
		return nil
	}

	rc.Config = cfg
	return nil
}
