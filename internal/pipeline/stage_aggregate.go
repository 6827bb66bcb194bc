package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bzfxn6/gas/internal/aggregate"
	"github.com/bzfxn6/gas/internal/store"
)

// AggregateStage loads every persisted chunk result for the batch and
// merges them into the final consolidated output.
type AggregateStage struct {
	aggregator *aggregate.Aggregator
	store      store.ObjectStore
	logger     *slog.Logger
}

func NewAggregateStage(a *aggregate.Aggregator, os store.ObjectStore, logger *slog.Logger) *AggregateStage {
	return &AggregateStage{aggregator: a, store: os, logger: logger}
}

func (s *AggregateStage) Name() string { return "aggregate" }

func (s *AggregateStage) Execute(ctx context.Context, rc *RunContext) error {
	results, err := aggregate.LoadChunkResults(ctx, s.store, rc.Config.Bucket, rc.Config.BatchID, s.logger)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no chunk results found for batch %s", rc.Config.BatchID)
	}
	rc.ChunkResults = results

	out, err := s.aggregator.Run(ctx, rc.Config, results)
	if err != nil {
		return err
	}
	rc.Output = out
	return nil
}
