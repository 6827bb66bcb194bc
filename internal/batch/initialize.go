package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bzfxn6/gas/internal/store"
)

// Config is the resolved batch configuration produced by Initialize and
// consumed by every downstream stage.
type Config struct {
	Request

	EstimatedFileSize int64     `json:"estimatedFileSize"`
	EstimatedRecords  int64     `json:"estimatedRecords"`
	InitializedAt     time.Time `json:"initializedAt"`
}

// Initialize validates the batch-initiation input, stats the source file
// and estimates its record count. Fails fast with a typed error when the
// source file cannot be statted.
func Initialize(ctx context.Context, os store.ObjectStore, req Request, logger *slog.Logger) (Config, error) {
	if err := req.Validate(); err != nil {
		return Config{}, err
	}

	info, err := os.Head(ctx, req.Bucket, req.File)
	if err != nil {
		return Config{}, fmt.Errorf("check file size: %w", err)
	}

	estimated := EstimateRecords(info.Size)
	logger.Info("batch initialized",
		slog.String("batch_id", req.BatchID),
		slog.String("file", req.File),
		slog.Int64("file_size", info.Size),
		slog.Int64("estimated_records", estimated))

	if req.TargetTotalRecords == 0 {
		req.TargetTotalRecords = estimated
	}

	return Config{
		Request:           req,
		EstimatedFileSize: info.Size,
		EstimatedRecords:  estimated,
		InitializedAt:     time.Now().UTC(),
	}, nil
}
