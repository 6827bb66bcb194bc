package aggregate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/process"
	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() batch.Config {
	return batch.Config{Request: batch.Request{
		Bucket:     "data",
		File:       "uploads/users.jsonl",
		CustomerID: "cust-1",
		TenantID:   "tenant-1",
		BatchID:    "batch-1",
		Deployment: batch.DeploymentWorkspace,
	}}
}

func successResult(chunkID string, records, errors int64) process.Result {
	return process.Result{
		ChunkID:            chunkID,
		BatchID:            "batch-1",
		Status:             "SUCCESS",
		Destination:        batch.DestinationKafka,
		RecordsProcessed:   records,
		ProcessingErrors:   errors,
		ProcessingTime:     2.0,
		RecordsSentToKafka: records - errors,
	}
}

// --- RollupChunks ---

func TestRollupChunks_MixedOutcome(t *testing.T) {
	a := New(memory.New(), testLogger())
	results := []process.Result{
		successResult("chunk_000000", 100, 5),
		{ChunkID: "chunk_000001", Status: "FAILED", Destination: batch.DestinationKafka, ErrorMessage: "load failed"},
	}

	r := a.RollupChunks(results)

	if r.TotalChunks != 2 || r.SuccessfulChunks != 1 || r.FailedChunks != 1 {
		t.Fatalf("unexpected chunk counts: %+v", r)
	}
	if r.SuccessRate != 50.0 {
		t.Errorf("expected 50%% success rate, got %f", r.SuccessRate)
	}
	// Record totals come only from successful chunks.
	if r.TotalRecordsProcessed != 100 || r.TotalErrors != 5 {
		t.Errorf("unexpected record totals: %d / %d", r.TotalRecordsProcessed, r.TotalErrors)
	}
	if r.KafkaStatistics.TotalRecordsSent != 95 {
		t.Errorf("expected 95 sent to kafka, got %d", r.KafkaStatistics.TotalRecordsSent)
	}
	if r.PrimaryDestination != batch.DestinationKafka {
		t.Errorf("expected kafka primary, got %s", r.PrimaryDestination)
	}
	if len(r.ChunkDetails) != 2 {
		t.Errorf("expected 2 chunk details, got %d", len(r.ChunkDetails))
	}
	if r.ChunkDetails[1].ErrorMessage != "load failed" {
		t.Errorf("failed chunk detail lost its error message")
	}
}

func TestRollupChunks_OrderIndependent(t *testing.T) {
	a := New(memory.New(), testLogger())
	results := []process.Result{
		successResult("chunk_000000", 100, 5),
		successResult("chunk_000001", 50, 0),
		{ChunkID: "chunk_000002", Status: "FAILED"},
	}
	reversed := []process.Result{results[2], results[1], results[0]}

	fwd := a.RollupChunks(results)
	rev := a.RollupChunks(reversed)

	if fwd.TotalRecordsProcessed != rev.TotalRecordsProcessed ||
		fwd.TotalErrors != rev.TotalErrors ||
		fwd.SuccessRate != rev.SuccessRate ||
		fwd.KafkaStatistics != rev.KafkaStatistics {
		t.Errorf("rollup is order dependent:\nfwd: %+v\nrev: %+v", fwd, rev)
	}
}

func TestRollupChunks_RatesFromTotalsNotAverages(t *testing.T) {
	a := New(memory.New(), testLogger())
	// Per-chunk kafka rates of 100% and 50%. Averaging rates would give
	// 75%; the correct rate over summed totals is 87.5%.
	results := []process.Result{
		{ChunkID: "a", Status: "SUCCESS", RecordsSentToKafka: 300, KafkaErrors: 0, RecordsProcessed: 300},
		{ChunkID: "b", Status: "SUCCESS", RecordsSentToKafka: 100, KafkaErrors: 50, RecordsProcessed: 100},
	}

	r := a.RollupChunks(results)

	want := float64(400-50) / 400 * 100
	if r.KafkaStatistics.SuccessRate != want {
		t.Errorf("expected %f, got %f", want, r.KafkaStatistics.SuccessRate)
	}
}

func TestRollupChunks_Empty(t *testing.T) {
	r := New(memory.New(), testLogger()).RollupChunks(nil)
	if r.TotalChunks != 0 || r.SuccessRate != 0 || r.RecordsPerSecond != 0 {
		t.Errorf("zero-value rollup expected, got %+v", r)
	}
}

// --- LoadChunkResults ---

func TestLoadChunkResults_SortedAndTolerant(t *testing.T) {
	mem := memory.New()
	cfg := testConfig()
	ctx := context.Background()

	for _, id := range []string{"chunk_000001", "chunk_000000"} {
		data, _ := json.Marshal(successResult(id, 10, 0))
		if err := mem.Put(ctx, cfg.Bucket, store.ChunkResultKey(cfg.BatchID, id), data, "application/json"); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	// Garbage entry under the prefix is skipped, not fatal.
	mem.Put(ctx, cfg.Bucket, store.ChunkResultPrefix(cfg.BatchID)+"junk.json", []byte("{"), "application/json")

	results, err := LoadChunkResults(ctx, mem, cfg.Bucket, cfg.BatchID, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "chunk_000000" || results[1].ChunkID != "chunk_000001" {
		t.Errorf("results not in chunk order: %s, %s", results[0].ChunkID, results[1].ChunkID)
	}
}

// --- Run ---

func TestAggregatorRun_MergesAndPersists(t *testing.T) {
	mem := memory.New()
	cfg := testConfig()
	ctx := context.Background()

	records := []map[string]any{
		{"id": "1", "type": "user", "customerId": "cust-1", "tenantId": "tenant-1"},
		{"id": "2", "type": "user", "customerId": "cust-2", "tenantId": "tenant-1"},
	}
	data, _ := json.Marshal(records)
	mem.Put(ctx, cfg.Bucket, store.ResultKey(cfg.BatchID, "chunk_000000"), data, "application/json")

	errs := []map[string]any{{"recordIndex": float64(1), "error": "record is not a JSON object"}}
	errData, _ := json.Marshal(errs)
	mem.Put(ctx, cfg.Bucket, store.ErrorKey(cfg.BatchID, "chunk_000000"), errData, "application/json")

	out, err := New(mem, testLogger()).Run(ctx, cfg, []process.Result{successResult("chunk_000000", 2, 1)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.TotalRecordsProcessed != 2 || out.TotalErrors != 1 {
		t.Errorf("unexpected totals: %d / %d", out.TotalRecordsProcessed, out.TotalErrors)
	}
	if out.BatchStatus != batch.StatusCompleted {
		t.Errorf("expected %s, got %s", batch.StatusCompleted, out.BatchStatus)
	}
	if out.Summary.ProcessingSummary.UniqueCustomers != 2 || out.Summary.ProcessingSummary.UniqueTenants != 1 {
		t.Errorf("unexpected uniques: %+v", out.Summary.ProcessingSummary)
	}
	if out.Summary.ProcessingSummary.RecordTypes["user"] != 2 {
		t.Errorf("unexpected record types: %v", out.Summary.ProcessingSummary.RecordTypes)
	}
	if out.Summary.ProcessingSummary.ErrorTypes["record is not a JSON object"] != 1 {
		t.Errorf("unexpected error types: %v", out.Summary.ProcessingSummary.ErrorTypes)
	}

	// Final artifact persisted with the full record set.
	final, err := mem.Get(ctx, cfg.Bucket, store.FinalResultKey(cfg.BatchID))
	if err != nil {
		t.Fatalf("final artifact missing: %v", err)
	}
	var artifact struct {
		TotalRecords int              `json:"totalRecords"`
		Records      []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(final, &artifact); err != nil {
		t.Fatalf("unmarshal final: %v", err)
	}
	if artifact.TotalRecords != 2 || len(artifact.Records) != 2 {
		t.Errorf("unexpected final artifact: %d records", artifact.TotalRecords)
	}
}
