package pipeline

import (
	"context"

	"github.com/bzfxn6/gas/internal/aggregate"
	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/notify"
	"github.com/bzfxn6/gas/internal/plan"
	"github.com/bzfxn6/gas/internal/process"
	"github.com/bzfxn6/gas/internal/validate"
)

// Stage is one step of the batch pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// RunContext carries state through the pipeline stages of one batch run.
type RunContext struct {
	Request batch.Request
	Trigger string

	// Set by the initialize stage
	Config batch.Config

	// Set by the validate stage
	Validation *validate.Result

	// Set by the plan stage
	Plan *plan.Plan

	// Set by the dispatch stage
	TasksEnqueued int

	// Loaded by the aggregate stage on resume
	ChunkResults []process.Result

	// Set by the aggregate / notify stages
	Output       *aggregate.Output
	Notification *notify.Notification

	// Halt stops the pipeline after the current stage without error
	// (quality gate rejection: the failure artifact is already persisted).
	Halt bool
}
