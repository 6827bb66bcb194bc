package plan

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/store"
	"github.com/bzfxn6/gas/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(totalRecords int64) batch.Config {
	return batch.Config{Request: batch.Request{
		Bucket:              "data",
		File:                "uploads/users.jsonl",
		CustomerID:          "cust-1",
		TenantID:            "tenant-1",
		BatchID:             "batch-1",
		Destination:         batch.DestinationKafka,
		MaxConcurrentChunks: 50,
		MaxChunkSize:        500000,
		TargetTotalRecords:  totalRecords,
	}}
}

// --- OptimalChunkSize ---

func TestOptimalChunkSize(t *testing.T) {
	tests := []struct {
		total         int64
		maxConcurrent int
		maxChunk      int64
		wantSize      int64
		wantChunks    int64
	}{
		{1000000, 50, 500000, 20000, 50},
		// Clamp binds: chunk count exceeds the concurrency ceiling.
		{60000000, 50, 500000, 500000, 120},
		{10, 50, 500000, 1, 10},
		{1, 50, 500000, 1, 1},
		{999999, 50, 500000, 20000, 50},
	}
	for _, tt := range tests {
		size, chunks := OptimalChunkSize(tt.total, tt.maxConcurrent, tt.maxChunk)
		if size != tt.wantSize || chunks != tt.wantChunks {
			t.Errorf("OptimalChunkSize(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.total, tt.maxConcurrent, tt.maxChunk, size, chunks, tt.wantSize, tt.wantChunks)
		}
	}
}

// --- BuildChunks ---

func TestBuildChunks_ExactPartition(t *testing.T) {
	cfg := testConfig(0)
	total := int64(1000001)
	size, _ := OptimalChunkSize(total, 50, 500000)
	chunks := BuildChunks(total, size, cfg)

	var covered int64
	next := int64(0)
	for i, c := range chunks {
		if c.StartIndex != next {
			t.Fatalf("chunk %d starts at %d, expected %d", i, c.StartIndex, next)
		}
		if c.EndIndex < c.StartIndex {
			t.Fatalf("chunk %d has inverted range", i)
		}
		if c.ChunkSize != c.EndIndex-c.StartIndex+1 {
			t.Fatalf("chunk %d size mismatch", i)
		}
		if c.ChunkNumber != i+1 {
			t.Errorf("chunk %d number = %d", i, c.ChunkNumber)
		}
		covered += c.ChunkSize
		next = c.EndIndex + 1
	}
	if covered != total {
		t.Errorf("chunks cover %d records, want %d", covered, total)
	}
	if last := chunks[len(chunks)-1]; last.EndIndex != total-1 {
		t.Errorf("last chunk ends at %d, want %d", last.EndIndex, total-1)
	}
}

func TestBuildChunks_Deterministic(t *testing.T) {
	cfg := testConfig(0)
	a := BuildChunks(123457, 1000, cfg)
	b := BuildChunks(123457, 1000, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different chunk sequences")
	}
}

func TestBuildChunks_EchoesBatchMetadata(t *testing.T) {
	cfg := testConfig(0)
	chunks := BuildChunks(100, 40, cfg)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.BatchID != cfg.BatchID || c.Bucket != cfg.Bucket || c.File != cfg.File {
			t.Errorf("chunk %s missing batch metadata", c.ChunkID)
		}
		if c.Destination != batch.DestinationKafka {
			t.Errorf("chunk %s destination = %s", c.ChunkID, c.Destination)
		}
	}
	if chunks[0].ChunkID != "chunk_000000" || chunks[2].ChunkID != "chunk_000002" {
		t.Errorf("unexpected chunk ids: %s, %s", chunks[0].ChunkID, chunks[2].ChunkID)
	}
}

// --- Planner.Run ---

func TestPlannerRun_PersistsManifest(t *testing.T) {
	cfg := testConfig(1000000)
	mem := memory.New()

	p, err := New(mem, testLogger()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if p.ChunkSize != 20000 || p.Manifest.TotalChunks != 50 {
		t.Errorf("expected 50 chunks of 20000, got %d of %d", p.Manifest.TotalChunks, p.ChunkSize)
	}
	if p.MetadataKey != store.ChunkManifestKey(cfg.BatchID) {
		t.Errorf("unexpected metadata key %s", p.MetadataKey)
	}
	if _, err := mem.Get(context.Background(), cfg.Bucket, p.MetadataKey); err != nil {
		t.Errorf("manifest not persisted: %v", err)
	}
	if p.Estimates.TotalRecords != 1000000 || p.Estimates.TotalChunks != 50 {
		t.Errorf("unexpected estimates: %+v", p.Estimates)
	}
}

func TestPlannerRun_EstimatesFromFileSize(t *testing.T) {
	cfg := testConfig(0)
	mem := memory.New()
	// 2M KB file -> 2M estimated records.
	if err := mem.Put(context.Background(), cfg.Bucket, cfg.File, make([]byte, 0), "application/jsonl"); err != nil {
		t.Fatalf("put: %v", err)
	}

	p, err := New(mem, testLogger()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Empty file floors at the 1M record estimate.
	if p.Manifest.TotalRecords != 1000000 {
		t.Errorf("expected floored 1000000 records, got %d", p.Manifest.TotalRecords)
	}
}
