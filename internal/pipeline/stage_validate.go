package pipeline

import (
	"context"
	"log/slog"

	"github.com/bzfxn6/gas/internal/validate"
)

// ValidateStage runs the streaming record validator and enforces the
// quality gate: a failed validation halts the pipeline with the failure
// artifact already persisted for retrieval.
type ValidateStage struct {
	validator *validate.Validator
	logger    *slog.Logger
}

func NewValidateStage(v *validate.Validator, logger *slog.Logger) *ValidateStage {
	return &ValidateStage{validator: v, logger: logger}
}

func (s *ValidateStage) Name() string { return "validate" }

func (s *ValidateStage) Execute(ctx context.Context, rc *RunContext) error {
	result, err := s.validator.Run(ctx, rc.Config)
	if err != nil {
		return err
	}
	rc.Validation = result

	if result.Status != validate.StatusPassed {
		s.logger.Warn("batch rejected by validation gate",
			slog.String("batch_id", rc.Config.BatchID),
			slog.String("batch_status", string(result.BatchStatus)),
			slog.Float64("error_rate", result.ErrorRate),
			slog.Int64("records_failed", result.RecordsFailed))
		rc.Halt = true
	}
	return nil
}
