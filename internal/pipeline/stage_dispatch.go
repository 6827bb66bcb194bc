package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/internal/store"
)

// DispatchStage materializes the per-chunk input artifacts and fans the
// chunks out as tasks on the chunk task stream. After it runs, the
// pipeline halts until every chunk worker reports completion.
type DispatchStage struct {
	store  store.ObjectStore
	valkey valkey.Client
	logger *slog.Logger
}

func NewDispatchStage(os store.ObjectStore, client valkey.Client, logger *slog.Logger) *DispatchStage {
	return &DispatchStage{store: os, valkey: client, logger: logger}
}

func (s *DispatchStage) Name() string { return "dispatch" }

func (s *DispatchStage) Execute(ctx context.Context, rc *RunContext) error {
	manifest := rc.Plan.Manifest

	sp := &splitter{store: s.store, logger: s.logger}
	if err := sp.split(ctx, manifest, rc.Config.Bucket, rc.Config.File); err != nil {
		return fmt.Errorf("split source into chunks: %w", err)
	}

	for i, chunk := range manifest.Chunks {
		msg := ChunkTaskMessage{
			Request:     rc.Config.Request,
			Chunk:       chunk,
			ChunkIndex:  i,
			TotalChunks: manifest.TotalChunks,
		}
		if _, err := EnqueueChunkTask(ctx, s.valkey, msg); err != nil {
			return fmt.Errorf("enqueue chunk task %s: %w", chunk.ChunkID, err)
		}
	}

	s.logger.Info("chunks dispatched",
		slog.String("batch_id", rc.Config.BatchID),
		slog.Int("total_chunks", manifest.TotalChunks),
		slog.Int64("chunk_size", rc.Plan.ChunkSize))

	rc.TasksEnqueued = manifest.TotalChunks
	return nil
}
