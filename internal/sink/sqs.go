package sink

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/bzfxn6/gas/internal/config"
)

// SQSSink enqueues messages on the core SQS queue.
type SQSSink struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSSink(ctx context.Context, cfg appconfig.SQSConfig) (*SQSSink, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue url is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSSink{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
	}, nil
}

func (s *SQSSink) Send(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal sqs message: %w", err)
	}

	body := string(data)
	if _, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &s.queueURL,
		MessageBody: &body,
	}); err != nil {
		return fmt.Errorf("send sqs message: %w", err)
	}
	return nil
}

func (s *SQSSink) Close() error { return nil }
