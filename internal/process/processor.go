// Package process implements the per-chunk record processor: load one
// chunk's raw records, transform each, route each to exactly one
// destination, and persist the output artifacts. Instances are designed
// to run many at once, one per chunk, with no shared mutable state.
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/plan"
	"github.com/bzfxn6/gas/internal/sink"
	"github.com/bzfxn6/gas/internal/store"
)

// RecordError is one record that failed the transform step and was
// excluded from the routed set.
type RecordError struct {
	RecordIndex int            `json:"recordIndex"`
	Error       string         `json:"error"`
	Record      map[string]any `json:"record"`
}

// Result is the immutable per-chunk outcome. Exactly one of the
// (RecordsSentToKafka, KafkaErrors) / (RecordsSentToSQSCore, SQSErrors)
// pairs may be non-zero: routing is exclusive per chunk.
type Result struct {
	ChunkID     string            `json:"chunkId"`
	BatchID     string            `json:"batchId"`
	CustomerID  string            `json:"customerId"`
	TenantID    string            `json:"tenantId"`
	Deployment  batch.Deployment  `json:"deployment"`
	Status      string            `json:"status"`
	BatchStatus batch.Status      `json:"batchStatus"`
	Destination batch.Destination `json:"destination"`

	RecordsProcessed      int64   `json:"recordsProcessed"`
	RecordsAttempted      int64   `json:"recordsAttempted"`
	ProcessingErrors      int64   `json:"processingErrors"`
	ProcessingSuccessRate float64 `json:"processingSuccessRate"`
	ProcessingTime        float64 `json:"processingTime"`
	RecordsPerSecond      float64 `json:"recordsPerSecond"`

	RecordsSentToKafka   int64   `json:"recordsSentToKafka"`
	KafkaErrors          int64   `json:"kafkaErrors"`
	RecordsSentToSQSCore int64   `json:"recordsSentToSQSCore"`
	SQSErrors            int64   `json:"sqsErrors"`
	StreamingSuccessRate float64 `json:"streamingSuccessRate"`

	ResultKey    string `json:"resultKey,omitempty"`
	ErrorKey     string `json:"errorKey,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

const (
	statusSuccess = "SUCCESS"
	statusFailed  = "FAILED"
)

// Processor executes one chunk at a time. The sinks are process-scoped
// clients injected at construction, shared safely across invocations.
type Processor struct {
	store  store.ObjectStore
	kafka  sink.Sink
	sqs    sink.Sink
	logger *slog.Logger
}

func New(os store.ObjectStore, kafkaSink, sqsSink sink.Sink, logger *slog.Logger) *Processor {
	return &Processor{store: os, kafka: kafkaSink, sqs: sqsSink, logger: logger}
}

// Run processes one chunk end to end and always returns a Result.
// Individual record failures never abort the chunk; only a load or
// destination-initialization failure yields a FAILED result with zeroed
// statistics and the error message.
func (p *Processor) Run(ctx context.Context, chunk plan.Chunk) *Result {
	start := time.Now()

	p.logger.Info("chunk processing started",
		slog.String("batch_id", chunk.BatchID),
		slog.String("chunk_id", chunk.ChunkID),
		slog.Int64("start_index", chunk.StartIndex),
		slog.Int64("end_index", chunk.EndIndex),
		slog.String("destination", string(chunk.Destination)))

	records, err := p.loadRecords(ctx, chunk)
	if err != nil {
		return p.failedResult(chunk, start, err)
	}

	dest, err := p.destinationSink(chunk.Destination)
	if err != nil {
		return p.failedResult(chunk, start, err)
	}

	// Transform all records first; failures are chunk-local and the
	// failed records are excluded from routing.
	bc := BatchContext{
		BatchID:    chunk.BatchID,
		CustomerID: chunk.CustomerID,
		TenantID:   chunk.TenantID,
	}
	processed := make([]map[string]any, 0, len(records))
	var recordErrors []RecordError
	for i, record := range records {
		out, err := Transform(record, bc)
		if err != nil {
			recordErrors = append(recordErrors, RecordError{
				RecordIndex: i,
				Error:       err.Error(),
				Record:      record,
			})
			continue
		}
		processed = append(processed, out)
	}

	// Route in input order with synchronous per-record acknowledgment.
	var sent, sendErrors int64
	for i, record := range processed {
		env := sink.Envelope{
			Record: record,
			Metadata: sink.Metadata{
				BatchID:     chunk.BatchID,
				ChunkID:     chunk.ChunkID,
				RecordIndex: chunk.StartIndex + int64(i),
				CustomerID:  chunk.CustomerID,
				TenantID:    chunk.TenantID,
				ProcessedAt: time.Now().UTC(),
				Source:      "chunk-processor",
				Destination: chunk.Destination,
			},
		}
		if err := dest.Send(ctx, chunk.BatchID, env); err != nil {
			sendErrors++
			p.logger.Error("record send failed",
				slog.String("chunk_id", chunk.ChunkID),
				slog.Int("record", i),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}

	resultKey, errorKey, err := p.persistArtifacts(ctx, chunk, processed, recordErrors)
	if err != nil {
		return p.failedResult(chunk, start, err)
	}

	result := p.buildResult(chunk, start, processed, recordErrors, sent, sendErrors)
	result.ResultKey = resultKey
	result.ErrorKey = errorKey

	p.logger.Info("chunk processing completed",
		slog.String("batch_id", chunk.BatchID),
		slog.String("chunk_id", chunk.ChunkID),
		slog.Int64("records", result.RecordsProcessed),
		slog.Int64("processing_errors", result.ProcessingErrors),
		slog.Int64("send_errors", sendErrors))

	return result
}

func (p *Processor) loadRecords(ctx context.Context, chunk plan.Chunk) ([]map[string]any, error) {
	key := store.ChunkInputKey(chunk.BatchID, chunk.ChunkID)
	data, err := p.store.Get(ctx, chunk.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("load chunk input: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal chunk input: %w", err)
	}
	return records, nil
}

func (p *Processor) destinationSink(dest batch.Destination) (sink.Sink, error) {
	switch dest {
	case batch.DestinationKafka:
		if p.kafka == nil {
			return nil, fmt.Errorf("kafka sink is not configured")
		}
		return p.kafka, nil
	case batch.DestinationSQSCore:
		if p.sqs == nil {
			return nil, fmt.Errorf("sqs sink is not configured")
		}
		return p.sqs, nil
	default:
		return nil, fmt.Errorf("unknown destination: %q", dest)
	}
}

// persistArtifacts writes the transformed record set (always, for
// audit/backup) and the error artifact (only when non-empty). Writes go
// to fixed per-chunk keys, so reprocessing overwrites rather than
// duplicates.
func (p *Processor) persistArtifacts(ctx context.Context, chunk plan.Chunk, processed []map[string]any, recordErrors []RecordError) (string, string, error) {
	resultKey := store.ResultKey(chunk.BatchID, chunk.ChunkID)
	data, err := json.Marshal(processed)
	if err != nil {
		return "", "", fmt.Errorf("marshal chunk output: %w", err)
	}
	if err := p.store.Put(ctx, chunk.Bucket, resultKey, data, "application/json"); err != nil {
		return "", "", fmt.Errorf("upload chunk output: %w", err)
	}

	if len(recordErrors) == 0 {
		return resultKey, "", nil
	}

	errorKey := store.ErrorKey(chunk.BatchID, chunk.ChunkID)
	errData, err := json.Marshal(recordErrors)
	if err != nil {
		return "", "", fmt.Errorf("marshal chunk errors: %w", err)
	}
	if err := p.store.Put(ctx, chunk.Bucket, errorKey, errData, "application/json"); err != nil {
		return "", "", fmt.Errorf("upload chunk errors: %w", err)
	}
	return resultKey, errorKey, nil
}

func (p *Processor) buildResult(chunk plan.Chunk, start time.Time, processed []map[string]any, recordErrors []RecordError, sent, sendErrors int64) *Result {
	processingTime := time.Since(start).Seconds()

	attempted := int64(len(processed) + len(recordErrors))
	processingRate := 0.0
	if attempted > 0 {
		processingRate = float64(int64(len(processed))-int64(len(recordErrors))) / float64(attempted) * 100
	}

	streamingRate := 0.0
	if sent > 0 {
		streamingRate = float64(sent-sendErrors) / float64(sent) * 100
	}

	recordsPerSecond := 0.0
	if processingTime > 0 {
		recordsPerSecond = float64(len(processed)) / processingTime
	}

	result := &Result{
		ChunkID:               chunk.ChunkID,
		BatchID:               chunk.BatchID,
		CustomerID:            chunk.CustomerID,
		TenantID:              chunk.TenantID,
		Deployment:            batch.DeploymentWorkspace,
		Status:                statusSuccess,
		BatchStatus:           batch.StatusChunkProcessed,
		Destination:           chunk.Destination,
		RecordsProcessed:      int64(len(processed)),
		RecordsAttempted:      attempted,
		ProcessingErrors:      int64(len(recordErrors)),
		ProcessingSuccessRate: processingRate,
		ProcessingTime:        processingTime,
		RecordsPerSecond:      recordsPerSecond,
		StreamingSuccessRate:  streamingRate,
	}

	switch chunk.Destination {
	case batch.DestinationSQSCore:
		result.RecordsSentToSQSCore = sent
		result.SQSErrors = sendErrors
	default:
		result.RecordsSentToKafka = sent
		result.KafkaErrors = sendErrors
	}
	return result
}

// failedResult is the minimal result returned when an error aborts the
// whole chunk.
func (p *Processor) failedResult(chunk plan.Chunk, start time.Time, err error) *Result {
	p.logger.Error("chunk processing failed",
		slog.String("batch_id", chunk.BatchID),
		slog.String("chunk_id", chunk.ChunkID),
		slog.String("error", err.Error()))

	return &Result{
		ChunkID:        chunk.ChunkID,
		BatchID:        chunk.BatchID,
		CustomerID:     chunk.CustomerID,
		TenantID:       chunk.TenantID,
		Deployment:     batch.DeploymentWorkspace,
		Status:         statusFailed,
		BatchStatus:    batch.StatusChunkFailed,
		Destination:    chunk.Destination,
		ProcessingTime: time.Since(start).Seconds(),
		ErrorMessage:   err.Error(),
	}
}
