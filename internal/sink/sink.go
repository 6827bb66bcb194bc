// Package sink provides the two downstream destinations records are
// routed to: a Kafka topic and an SQS queue. Every send is synchronous;
// a record only counts as sent once the destination acknowledged it.
package sink

import (
	"context"
	"time"

	"github.com/bzfxn6/gas/internal/batch"
)

// Sink durably enqueues one message and reports success or failure.
type Sink interface {
	// Send marshals value as JSON and delivers it, blocking until the
	// destination acknowledges. key is used for partitioning where the
	// destination supports it.
	Send(ctx context.Context, key string, value any) error
	Close() error
}

// Envelope wraps a transformed record with routing metadata on its way
// to a destination.
type Envelope struct {
	Record   map[string]any `json:"record"`
	Metadata Metadata       `json:"metadata"`
}

type Metadata struct {
	BatchID     string            `json:"batchId"`
	ChunkID     string            `json:"chunkId"`
	RecordIndex int64             `json:"recordIndex"`
	CustomerID  string            `json:"customerId"`
	TenantID    string            `json:"tenantId"`
	ProcessedAt time.Time         `json:"processedAt"`
	Source      string            `json:"source"`
	Destination batch.Destination `json:"destination"`
}
