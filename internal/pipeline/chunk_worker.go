package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/internal/process"
	"github.com/bzfxn6/gas/internal/store"
)

// chunkCounterKey tracks completed chunks for a batch. The worker that
// increments it to TotalChunks owns re-enqueueing the batch for the
// aggregation phase.
func chunkCounterKey(batchID string) string {
	return "gas:chunks:completed:" + batchID
}

// ChunkWorker handles one chunk task: process the chunk, persist its
// result, and signal completion. Many workers run in parallel, one
// invocation per chunk, coordinating only through the storage key space
// and the completion counter.
type ChunkWorker struct {
	store     store.ObjectStore
	processor *process.Processor
	valkey    valkey.Client
	producer  *Producer
	logger    *slog.Logger
}

func NewChunkWorker(os store.ObjectStore, p *process.Processor, client valkey.Client, producer *Producer, logger *slog.Logger) *ChunkWorker {
	return &ChunkWorker{
		store:     os,
		processor: p,
		valkey:    client,
		producer:  producer,
		logger:    logger,
	}
}

// Handle processes a single chunk task. Result persistence goes to a
// fixed per-chunk key, so redelivered tasks overwrite rather than
// duplicate and completion signaling stays correct across retries.
func (w *ChunkWorker) Handle(ctx context.Context, task ChunkTaskMessage) error {
	result := w.processor.Run(ctx, task.Chunk)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal chunk result: %w", err)
	}
	key := store.ChunkResultKey(task.Chunk.BatchID, task.Chunk.ChunkID)
	if err := w.store.Put(ctx, task.Chunk.Bucket, key, data, "application/json"); err != nil {
		return fmt.Errorf("upload chunk result: %w", err)
	}

	return w.signalChunkComplete(ctx, task)
}

// signalChunkComplete increments the batch's completion counter and, on
// the final chunk, re-enqueues the batch with the chunks_complete
// trigger so the pipeline resumes at aggregation.
func (w *ChunkWorker) signalChunkComplete(ctx context.Context, task ChunkTaskMessage) error {
	key := chunkCounterKey(task.Chunk.BatchID)

	resp := w.valkey.Do(ctx, w.valkey.B().Incr().Key(key).Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("increment chunk counter: %w", err)
	}
	completed, err := resp.AsInt64()
	if err != nil {
		return fmt.Errorf("parse chunk counter: %w", err)
	}

	w.logger.Info("chunk completed",
		slog.String("batch_id", task.Chunk.BatchID),
		slog.String("chunk_id", task.Chunk.ChunkID),
		slog.Int64("completed", completed),
		slog.Int("total", task.TotalChunks))

	if completed < int64(task.TotalChunks) {
		return nil
	}

	// Last chunk: clean up the counter and resume the batch pipeline.
	if err := w.valkey.Do(ctx, w.valkey.B().Del().Key(key).Build()).Error(); err != nil {
		w.logger.Warn("delete chunk counter failed",
			slog.String("batch_id", task.Chunk.BatchID),
			slog.String("error", err.Error()))
	}

	if _, err := w.producer.Enqueue(ctx, BatchMessage{
		Request: task.Request,
		Trigger: TriggerChunksComplete,
	}); err != nil {
		return fmt.Errorf("enqueue chunks_complete: %w", err)
	}

	w.logger.Info("all chunks completed, batch resumed",
		slog.String("batch_id", task.Chunk.BatchID),
		slog.Int("total_chunks", task.TotalChunks))
	return nil
}
