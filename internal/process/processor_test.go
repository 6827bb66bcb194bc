package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/plan"
	"github.com/bzfxn6/gas/internal/sink"
	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records sends and optionally fails every Nth message.
type fakeSink struct {
	sent      []any
	failEvery int
}

func (f *fakeSink) Send(ctx context.Context, key string, value any) error {
	if f.failEvery > 0 && (len(f.sent)+1)%f.failEvery == 0 {
		return fmt.Errorf("broker unavailable")
	}
	f.sent = append(f.sent, value)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func testChunk(dest batch.Destination) plan.Chunk {
	return plan.Chunk{
		ChunkID:     "chunk_000000",
		StartIndex:  0,
		EndIndex:    2,
		ChunkSize:   3,
		Bucket:      "data",
		File:        "uploads/users.jsonl",
		CustomerID:  "cust-1",
		TenantID:    "tenant-1",
		BatchID:     "batch-1",
		Destination: dest,
		ChunkNumber: 1,
	}
}

func putChunkInput(t *testing.T, mem *memory.Store, chunk plan.Chunk, body string) {
	t.Helper()
	key := store.ChunkInputKey(chunk.BatchID, chunk.ChunkID)
	if err := mem.Put(context.Background(), chunk.Bucket, key, []byte(body), "application/json"); err != nil {
		t.Fatalf("put chunk input: %v", err)
	}
}

// --- Run ---

func TestProcessorRun_PartialFailure(t *testing.T) {
	mem := memory.New()
	kafka := &fakeSink{}
	chunk := testChunk(batch.DestinationKafka)
	// The null record fails the transform; the other two survive.
	putChunkInput(t, mem, chunk, `[{"id":"a"},null,{"id":"b"}]`)

	result := New(mem, kafka, nil, testLogger()).Run(context.Background(), chunk)

	if result.Status != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %s (%s)", result.Status, result.ErrorMessage)
	}
	if result.BatchStatus != batch.StatusChunkProcessed {
		t.Errorf("expected %s, got %s", batch.StatusChunkProcessed, result.BatchStatus)
	}
	if result.RecordsProcessed != 2 || result.ProcessingErrors != 1 || result.RecordsAttempted != 3 {
		t.Errorf("unexpected counts: processed=%d errors=%d attempted=%d",
			result.RecordsProcessed, result.ProcessingErrors, result.RecordsAttempted)
	}
	if result.RecordsSentToKafka != 2 || result.KafkaErrors != 0 {
		t.Errorf("unexpected kafka stats: sent=%d errors=%d", result.RecordsSentToKafka, result.KafkaErrors)
	}
	if result.RecordsSentToSQSCore != 0 || result.SQSErrors != 0 {
		t.Error("sqs stats must stay zero for a kafka chunk")
	}
	if len(kafka.sent) != 2 {
		t.Errorf("expected 2 envelopes sent, got %d", len(kafka.sent))
	}

	// Both artifacts persisted.
	if _, err := mem.Get(context.Background(), chunk.Bucket, store.ResultKey(chunk.BatchID, chunk.ChunkID)); err != nil {
		t.Errorf("result artifact missing: %v", err)
	}
	if _, err := mem.Get(context.Background(), chunk.Bucket, store.ErrorKey(chunk.BatchID, chunk.ChunkID)); err != nil {
		t.Errorf("error artifact missing: %v", err)
	}
	if result.ErrorKey == "" {
		t.Error("expected ErrorKey on result")
	}
}

func TestProcessorRun_NoErrorsSkipsErrorArtifact(t *testing.T) {
	mem := memory.New()
	chunk := testChunk(batch.DestinationKafka)
	putChunkInput(t, mem, chunk, `[{"id":"a"},{"id":"b"}]`)

	result := New(mem, &fakeSink{}, nil, testLogger()).Run(context.Background(), chunk)

	if result.ErrorKey != "" {
		t.Errorf("expected no error artifact, got %s", result.ErrorKey)
	}
	if _, err := mem.Get(context.Background(), chunk.Bucket, store.ErrorKey(chunk.BatchID, chunk.ChunkID)); err == nil {
		t.Error("error artifact written for a clean chunk")
	}
}

func TestProcessorRun_SQSRouting(t *testing.T) {
	mem := memory.New()
	sqs := &fakeSink{}
	chunk := testChunk(batch.DestinationSQSCore)
	putChunkInput(t, mem, chunk, `[{"id":"a"}]`)

	result := New(mem, &fakeSink{}, sqs, testLogger()).Run(context.Background(), chunk)

	if result.RecordsSentToSQSCore != 1 || result.RecordsSentToKafka != 0 {
		t.Errorf("routing not exclusive: sqs=%d kafka=%d", result.RecordsSentToSQSCore, result.RecordsSentToKafka)
	}
	if len(sqs.sent) != 1 {
		t.Errorf("expected 1 envelope on sqs, got %d", len(sqs.sent))
	}
}

func TestProcessorRun_SendErrorsCounted(t *testing.T) {
	mem := memory.New()
	kafka := &fakeSink{failEvery: 2}
	chunk := testChunk(batch.DestinationKafka)
	putChunkInput(t, mem, chunk, `[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"}]`)

	result := New(mem, kafka, nil, testLogger()).Run(context.Background(), chunk)

	if result.Status != "SUCCESS" {
		t.Fatalf("send failures must not fail the chunk, got %s", result.Status)
	}
	if result.RecordsSentToKafka+result.KafkaErrors != 4 {
		t.Errorf("sent %d + errors %d != 4", result.RecordsSentToKafka, result.KafkaErrors)
	}
	if result.KafkaErrors == 0 {
		t.Error("expected at least one send error")
	}
}

func TestProcessorRun_MissingInputFails(t *testing.T) {
	mem := memory.New()
	chunk := testChunk(batch.DestinationKafka)

	result := New(mem, &fakeSink{}, nil, testLogger()).Run(context.Background(), chunk)

	if result.Status != "FAILED" {
		t.Fatalf("expected FAILED, got %s", result.Status)
	}
	if result.BatchStatus != batch.StatusChunkFailed {
		t.Errorf("expected %s, got %s", batch.StatusChunkFailed, result.BatchStatus)
	}
	if result.RecordsProcessed != 0 || result.ErrorMessage == "" {
		t.Errorf("expected zeroed stats with error message, got %+v", result)
	}
}

func TestProcessorRun_UnconfiguredDestinationFails(t *testing.T) {
	mem := memory.New()
	chunk := testChunk(batch.DestinationSQSCore)
	putChunkInput(t, mem, chunk, `[{"id":"a"}]`)

	result := New(mem, &fakeSink{}, nil, testLogger()).Run(context.Background(), chunk)

	if result.Status != "FAILED" {
		t.Fatalf("expected FAILED for unconfigured sqs sink, got %s", result.Status)
	}
}

func TestProcessorRun_Rerun_Overwrites(t *testing.T) {
	mem := memory.New()
	chunk := testChunk(batch.DestinationKafka)
	putChunkInput(t, mem, chunk, `[{"id":"a"}]`)
	p := New(mem, &fakeSink{}, nil, testLogger())

	first := p.Run(context.Background(), chunk)
	second := p.Run(context.Background(), chunk)

	if first.RecordsProcessed != second.RecordsProcessed {
		t.Error("rerun produced different counts")
	}
	infos, err := mem.List(context.Background(), chunk.Bucket, "results/"+chunk.BatchID+"/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("rerun duplicated result artifacts: %d", len(infos))
	}
}

var _ sink.Sink = (*fakeSink)(nil)
