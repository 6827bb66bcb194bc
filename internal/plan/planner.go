// Package plan computes the deterministic partition of a batch into
// independently processable chunks.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/store"
)

const (
	// perRecordSeconds is the fixed per-record cost heuristic behind
	// estimated processing times. Advisory only, never gates execution.
	perRecordSeconds = 0.005
	// overheadFactor inflates the parallel wall-clock estimate.
	overheadFactor = 1.2
	// memoryKBPerRecord drives the memory requirement estimate.
	memoryKBPerRecord = 0.5

	metadataVersion = "1.0"
)

// Chunk describes one contiguous slice of the batch's record space.
// StartIndex/EndIndex are inclusive and 0-based; the chunk sequence
// covers [0, totalRecords) exactly once with no gaps or overlaps.
type Chunk struct {
	ChunkID     string            `json:"chunkId"`
	StartIndex  int64             `json:"startIndex"`
	EndIndex    int64             `json:"endIndex"`
	ChunkSize   int64             `json:"chunkSize"`
	Bucket      string            `json:"bucket"`
	File        string            `json:"file"`
	CustomerID  string            `json:"customerId"`
	TenantID    string            `json:"tenantId"`
	BatchID     string            `json:"batchId"`
	Destination batch.Destination `json:"destination"`
	ChunkNumber int               `json:"chunkNumber"`

	// EstimatedProcessingTime is seconds of capacity-planning budget.
	EstimatedProcessingTime float64 `json:"estimatedProcessingTime"`
}

// Manifest is the persisted chunk plan for one batch. The chunk sequence
// is a pure function of (totalRecords, maxConcurrentChunks, maxChunkSize)
// and batch metadata; only CreatedAt varies between identical runs.
type Manifest struct {
	BatchID         string    `json:"batchId"`
	TotalChunks     int       `json:"totalChunks"`
	TotalRecords    int64     `json:"totalRecords"`
	Chunks          []Chunk   `json:"chunks"`
	CreatedAt       time.Time `json:"createdAt"`
	MetadataVersion string    `json:"metadataVersion"`
}

// Estimates are advisory capacity-planning metrics surfaced to the
// orchestrator.
type Estimates struct {
	TotalRecords          int64   `json:"totalRecords"`
	TotalChunks           int     `json:"totalChunks"`
	MaxConcurrentChunks   int     `json:"maxConcurrentChunks"`
	EstimatedTotalTime    float64 `json:"estimatedTotalTime"`
	EstimatedParallelTime float64 `json:"estimatedParallelTime"`
	AvgChunkSize          float64 `json:"avgChunkSize"`
	MemoryPerChunkKB      float64 `json:"memoryPerChunk"`
	TotalMemoryRequiredKB float64 `json:"totalMemoryRequired"`
	ProcessingRate        float64 `json:"processingRate"`
	ChunksPerHour         float64 `json:"chunksPerHour"`
}

// Plan is the planner stage output.
type Plan struct {
	Manifest    Manifest  `json:"manifest"`
	Estimates   Estimates `json:"estimates"`
	ChunkSize   int64     `json:"chunkSize"`
	MetadataKey string    `json:"metadataKey"`
}

// Planner computes and persists chunk manifests.
type Planner struct {
	store  store.ObjectStore
	logger *slog.Logger
}

func New(os store.ObjectStore, logger *slog.Logger) *Planner {
	return &Planner{store: os, logger: logger}
}

// Run derives the chunk manifest for a batch and persists it before
// returning. Identical inputs yield an identical chunk sequence.
func (p *Planner) Run(ctx context.Context, cfg batch.Config) (*Plan, error) {
	totalRecords := cfg.TargetTotalRecords
	if totalRecords <= 0 {
		info, err := p.store.Head(ctx, cfg.Bucket, cfg.File)
		if err != nil {
			return nil, fmt.Errorf("stat source file: %w", err)
		}
		totalRecords = batch.EstimateRecords(info.Size)
	}

	chunkSize, totalChunks := OptimalChunkSize(totalRecords, cfg.MaxConcurrentChunks, cfg.MaxChunkSize)
	chunks := BuildChunks(totalRecords, chunkSize, cfg)

	p.logger.Info("chunk plan computed",
		slog.String("batch_id", cfg.BatchID),
		slog.Int64("total_records", totalRecords),
		slog.Int64("chunk_size", chunkSize),
		slog.Int64("total_chunks", totalChunks))

	manifest := Manifest{
		BatchID:         cfg.BatchID,
		TotalChunks:     len(chunks),
		TotalRecords:    totalRecords,
		Chunks:          chunks,
		CreatedAt:       time.Now().UTC(),
		MetadataVersion: metadataVersion,
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk manifest: %w", err)
	}
	key := store.ChunkManifestKey(cfg.BatchID)
	if err := p.store.Put(ctx, cfg.Bucket, key, data, "application/json"); err != nil {
		return nil, fmt.Errorf("upload chunk manifest: %w", err)
	}

	return &Plan{
		Manifest:    manifest,
		Estimates:   computeEstimates(chunks, cfg.MaxConcurrentChunks),
		ChunkSize:   chunkSize,
		MetadataKey: key,
	}, nil
}

// OptimalChunkSize sizes chunks for the concurrency ceiling, clamps to
// the maximum chunk size, and re-derives the chunk count from the
// clamped size. The realized chunk count may exceed maxConcurrent when
// the clamp binds.
func OptimalChunkSize(totalRecords int64, maxConcurrent int, maxChunkSize int64) (chunkSize, totalChunks int64) {
	chunkSize = ceilDiv(totalRecords, int64(maxConcurrent))
	if chunkSize > maxChunkSize {
		chunkSize = maxChunkSize
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	totalChunks = ceilDiv(totalRecords, chunkSize)
	return chunkSize, totalChunks
}

// BuildChunks lays out the contiguous chunk descriptors; the final chunk
// absorbs the remainder.
func BuildChunks(totalRecords, chunkSize int64, cfg batch.Config) []Chunk {
	chunks := make([]Chunk, 0, ceilDiv(totalRecords, chunkSize))

	for start := int64(0); start < totalRecords; start += chunkSize {
		end := start + chunkSize - 1
		if end > totalRecords-1 {
			end = totalRecords - 1
		}
		size := end - start + 1

		chunks = append(chunks, Chunk{
			ChunkID:                 fmt.Sprintf("chunk_%06d", start/chunkSize),
			StartIndex:              start,
			EndIndex:                end,
			ChunkSize:               size,
			Bucket:                  cfg.Bucket,
			File:                    cfg.File,
			CustomerID:              cfg.CustomerID,
			TenantID:                cfg.TenantID,
			BatchID:                 cfg.BatchID,
			Destination:             cfg.Destination,
			ChunkNumber:             len(chunks) + 1,
			EstimatedProcessingTime: float64(size) * perRecordSeconds,
		})
	}
	return chunks
}

func computeEstimates(chunks []Chunk, maxConcurrent int) Estimates {
	var totalRecords int64
	var totalTime float64
	for _, c := range chunks {
		totalRecords += c.ChunkSize
		totalTime += c.EstimatedProcessingTime
	}

	parallelTime := totalTime / float64(maxConcurrent)
	estimatedTotal := parallelTime * overheadFactor

	avgChunkSize := 0.0
	if len(chunks) > 0 {
		avgChunkSize = float64(totalRecords) / float64(len(chunks))
	}
	memoryPerChunk := avgChunkSize * memoryKBPerRecord

	processingRate := 0.0
	chunksPerHour := 0.0
	if estimatedTotal > 0 {
		processingRate = float64(totalRecords) / estimatedTotal
		chunksPerHour = 3600 / estimatedTotal * float64(len(chunks))
	}

	return Estimates{
		TotalRecords:          totalRecords,
		TotalChunks:           len(chunks),
		MaxConcurrentChunks:   maxConcurrent,
		EstimatedTotalTime:    estimatedTotal,
		EstimatedParallelTime: parallelTime,
		AvgChunkSize:          avgChunkSize,
		MemoryPerChunkKB:      memoryPerChunk,
		TotalMemoryRequiredKB: memoryPerChunk * float64(maxConcurrent),
		ProcessingRate:        processingRate,
		ChunksPerHour:         chunksPerHour,
	}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
