package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/plan"
)

const (
	// BatchStream carries batch pipeline invocations.
	BatchStream = "gas:batches"
	BatchGroup  = "gas-workers"

	// ChunkTaskStream distributes chunk-processing invocations, one per
	// chunk, to chunk workers.
	ChunkTaskStream = "gas:chunk_tasks"
	ChunkTaskGroup  = "gas-chunk-workers"
)

// Triggers on BatchMessage.
const (
	TriggerSubmit         = "submit"
	TriggerChunksComplete = "chunks_complete"
)

// BatchMessage is a pipeline invocation for one batch.
type BatchMessage struct {
	Request batch.Request `json:"request"`
	Trigger string        `json:"trigger"`
}

// ChunkTaskMessage is a single chunk-processing invocation.
type ChunkTaskMessage struct {
	Request     batch.Request `json:"request"`
	Chunk       plan.Chunk    `json:"chunk"`
	ChunkIndex  int           `json:"chunkIndex"`
	TotalChunks int           `json:"totalChunks"`
}

// Producer enqueues batch pipeline invocations to the Valkey stream.
type Producer struct {
	client valkey.Client
}

func NewProducer(client valkey.Client) *Producer {
	return &Producer{client: client}
}

func (p *Producer) Enqueue(ctx context.Context, msg BatchMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal batch message: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(BatchStream).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd batch message: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// EnqueueChunkTask publishes a single chunk task to the chunk task stream.
func EnqueueChunkTask(ctx context.Context, client valkey.Client, msg ChunkTaskMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal chunk task: %w", err)
	}

	resp := client.Do(ctx, client.B().Xadd().
		Key(ChunkTaskStream).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd chunk task: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Consumer reads batch pipeline invocations from the Valkey stream.
type Consumer struct {
	client     valkey.Client
	consumerID string
	logger     *slog.Logger
}

func NewConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(BatchStream).Group(BatchGroup).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		// BUSYGROUP means group already exists — that's fine
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks until a message is available, processes it via handler,
// and ACKs. On startup, it first drains any pending messages from a
// previous crash.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, BatchMessage) error) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(BatchGroup, c.consumerID).
			Count(1).Block(5000).
			Streams().Key(BatchStream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timeout is normal for BLOCK reads
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.processMessage(ctx, msg, handler)
			}
		}
	}
}

// drainPending reads messages previously delivered to this consumer but
// not ACKed.
func (c *Consumer) drainPending(ctx context.Context, handler func(context.Context, BatchMessage) error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(BatchGroup, c.consumerID).
		Count(10).
		Streams().Key(BatchStream).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending batch message", slog.String("id", msg.ID))
			c.processMessage(ctx, msg, handler)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg valkey.XRangeEntry, handler func(context.Context, BatchMessage) error) {
	dataStr, ok := msg.FieldValues["data"]
	if !ok {
		c.logger.Warn("batch message missing data field", slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	var batchMsg BatchMessage
	if err := json.Unmarshal([]byte(dataStr), &batchMsg); err != nil {
		c.logger.Error("unmarshal batch message", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, batchMsg); err != nil {
		c.logger.Error("handle batch message", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("batch_id", batchMsg.Request.BatchID))
	} else {
		c.ack(ctx, msg.ID)
	}
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(BatchStream).Group(BatchGroup).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}

// ChunkTaskConsumer reads chunk-processing invocations from the chunk
// task stream.
type ChunkTaskConsumer struct {
	client     valkey.Client
	consumerID string
	logger     *slog.Logger
}

func NewChunkTaskConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *ChunkTaskConsumer {
	return &ChunkTaskConsumer{client: client, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the chunk task consumer group if it doesn't exist.
func (c *ChunkTaskConsumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(ChunkTaskStream).Group(ChunkTaskGroup).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create chunk tasks: %w", err)
		}
	}
	return nil
}

// Consume blocks reading chunk tasks, processing each via handler, and ACKs.
func (c *ChunkTaskConsumer) Consume(ctx context.Context, handler func(context.Context, ChunkTaskMessage) error) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(ChunkTaskGroup, c.consumerID).
			Count(1).Block(5000).
			Streams().Key(ChunkTaskStream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.processTask(ctx, msg, handler)
			}
		}
	}
}

func (c *ChunkTaskConsumer) drainPending(ctx context.Context, handler func(context.Context, ChunkTaskMessage) error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(ChunkTaskGroup, c.consumerID).
		Count(10).
		Streams().Key(ChunkTaskStream).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain chunk task pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending chunk task", slog.String("id", msg.ID))
			c.processTask(ctx, msg, handler)
		}
	}
}

func (c *ChunkTaskConsumer) processTask(ctx context.Context, msg valkey.XRangeEntry, handler func(context.Context, ChunkTaskMessage) error) {
	dataStr, ok := msg.FieldValues["data"]
	if !ok {
		c.logger.Warn("chunk task missing data field", slog.String("id", msg.ID))
		c.ackTask(ctx, msg.ID)
		return
	}

	var task ChunkTaskMessage
	if err := json.Unmarshal([]byte(dataStr), &task); err != nil {
		c.logger.Error("unmarshal chunk task", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ackTask(ctx, msg.ID)
		return
	}

	if err := handler(ctx, task); err != nil {
		c.logger.Error("handle chunk task", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("batch_id", task.Request.BatchID),
			slog.String("chunk_id", task.Chunk.ChunkID))
	} else {
		c.ackTask(ctx, msg.ID)
	}
}

func (c *ChunkTaskConsumer) ackTask(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(ChunkTaskStream).Group(ChunkTaskGroup).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack chunk task failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
