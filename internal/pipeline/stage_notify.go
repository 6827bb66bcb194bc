package pipeline

import (
	"context"

	"github.com/bzfxn6/gas/internal/notify"
)

// NotifyStage publishes the batch completion notification.
type NotifyStage struct {
	notifier *notify.Notifier
}

func NewNotifyStage(n *notify.Notifier) *NotifyStage {
	return &NotifyStage{notifier: n}
}

func (s *NotifyStage) Name() string { return "notify" }

func (s *NotifyStage) Execute(ctx context.Context, rc *RunContext) error {
	msg, err := s.notifier.Run(ctx, rc.Config, rc.Output)
	if err != nil {
		return err
	}
	rc.Notification = msg
	return nil
}
