package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Pipeline orchestrates the batch stages for each invocation.
//
// # Two-phase execution model
//
// Phase 1 (Trigger "submit"):
//
//	initialize → validate (quality gate) → plan → dispatch
//
// The dispatch stage splits the source into chunk inputs and enqueues
// one chunk task per chunk to gas:chunk_tasks, then the pipeline halts.
// Chunk workers run concurrently; the worker completing the final chunk
// re-enqueues a BatchMessage with Trigger "chunks_complete".
//
// Phase 2 (Trigger "chunks_complete"):
//
//	initialize → aggregate → notify
//
// Validate, plan and dispatch are skipped; the pipeline resumes from the
// aggregate stage over the chunk-result artifacts in storage.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

func NewPipeline(stages []Stage, logger *slog.Logger) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run processes a single batch invocation through the appropriate phase.
func (p *Pipeline) Run(ctx context.Context, msg BatchMessage) error {
	p.logger.Info("pipeline started",
		slog.String("batch_id", msg.Request.BatchID),
		slog.String("trigger", msg.Trigger))

	isResume := msg.Trigger == TriggerChunksComplete

	rc := &RunContext{
		Request: msg.Request,
		Trigger: msg.Trigger,
	}

	for _, stage := range p.stages {
		// Phase routing: fan-out already happened when resuming.
		if isResume && isPreFanOutStage(stage.Name()) {
			p.logger.Info("stage skipped (chunks_complete phase)",
				slog.String("stage", stage.Name()),
				slog.String("batch_id", msg.Request.BatchID))
			continue
		}
		if !isResume && isPostFanOutStage(stage.Name()) {
			continue
		}

		p.logger.Info("stage started",
			slog.String("stage", stage.Name()),
			slog.String("batch_id", msg.Request.BatchID))

		if err := stage.Execute(ctx, rc); err != nil {
			return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		p.logger.Info("stage completed",
			slog.String("stage", stage.Name()),
			slog.String("batch_id", msg.Request.BatchID))

		// Quality gate rejection: the failure artifact is persisted,
		// nothing further runs for this batch.
		if rc.Halt {
			p.logger.Warn("pipeline halted by quality gate",
				slog.String("stage", stage.Name()),
				slog.String("batch_id", msg.Request.BatchID))
			return nil
		}

		// After dispatch, chunk tasks are in flight. Halt here; the
		// pipeline resumes when chunks_complete is received.
		if !isResume && stage.Name() == "dispatch" && rc.TasksEnqueued > 0 {
			p.logger.Info("chunk tasks enqueued, awaiting completion",
				slog.String("batch_id", msg.Request.BatchID),
				slog.Int("total_chunks", rc.TasksEnqueued))
			return nil
		}
	}

	if rc.Output != nil {
		p.logger.Info("pipeline completed",
			slog.String("batch_id", msg.Request.BatchID),
			slog.Int("records", rc.Output.TotalRecordsProcessed),
			slog.Int("errors", rc.Output.TotalErrors),
			slog.Float64("chunk_success_rate", rc.Output.Aggregated.SuccessRate))
	}

	return nil
}

// isPreFanOutStage returns true for stages that run only before the
// chunk fan-out and must be skipped on chunks_complete.
func isPreFanOutStage(name string) bool {
	return name == "validate" || name == "plan" || name == "dispatch"
}

// isPostFanOutStage returns true for stages that only make sense once
// all chunks completed.
func isPostFanOutStage(name string) bool {
	return name == "aggregate" || name == "notify"
}
