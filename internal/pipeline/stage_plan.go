package pipeline

import (
	"context"

	"github.com/bzfxn6/gas/internal/plan"
)

// PlanStage computes and persists the chunk manifest.
type PlanStage struct {
	planner *plan.Planner
}

func NewPlanStage(p *plan.Planner) *PlanStage {
	return &PlanStage{planner: p}
}

func (s *PlanStage) Name() string { return "plan" }

func (s *PlanStage) Execute(ctx context.Context, rc *RunContext) error {
	p, err := s.planner.Run(ctx, rc.Config)
	if err != nil {
		return err
	}
	rc.Plan = p
	return nil
}
