// Package aggregate merges all per-chunk results and artifacts of a
// batch into the single consolidated, queryable output.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/process"
	"github.com/bzfxn6/gas/internal/store"
)

// ChunkDetail is the per-chunk line item carried into the final result.
type ChunkDetail struct {
	ChunkID              string            `json:"chunkId"`
	Status               string            `json:"status"`
	Destination          batch.Destination `json:"destination"`
	RecordsProcessed     int64             `json:"recordsProcessed"`
	ProcessingErrors     int64             `json:"processingErrors"`
	ProcessingTime       float64           `json:"processingTime"`
	RecordsSentToKafka   int64             `json:"recordsSentToKafka"`
	KafkaErrors          int64             `json:"kafkaErrors"`
	RecordsSentToSQSCore int64             `json:"recordsSentToSQSCore"`
	SQSErrors            int64             `json:"sqsErrors"`
	ErrorMessage         string            `json:"errorMessage,omitempty"`
}

// DestinationStats is the rollup for one destination.
type DestinationStats struct {
	TotalRecordsSent int64   `json:"totalRecordsSent"`
	TotalErrors      int64   `json:"totalErrors"`
	SuccessRate      float64 `json:"successRate"`
}

// Rollup is the chunk-level aggregation. All totals are plain sums, and
// every rate is derived from the summed totals, never averaged from
// per-chunk rates, so merging is associative and order-independent.
type Rollup struct {
	TotalChunks               int               `json:"totalChunks"`
	SuccessfulChunks          int               `json:"successfulChunks"`
	FailedChunks              int               `json:"failedChunks"`
	SuccessRate               float64           `json:"successRate"`
	TotalRecordsProcessed     int64             `json:"totalRecordsProcessed"`
	TotalErrors               int64             `json:"totalErrors"`
	TotalProcessingTime       float64           `json:"totalProcessingTime"`
	AvgProcessingTimePerChunk float64           `json:"avgProcessingTimePerChunk"`
	RecordsPerSecond          float64           `json:"recordsPerSecond"`
	PrimaryDestination        batch.Destination `json:"primaryDestination"`
	KafkaStatistics           DestinationStats  `json:"kafkaStatistics"`
	SQSStatistics             DestinationStats  `json:"sqsStatistics"`
	ChunkDetails              []ChunkDetail     `json:"chunkDetails"`
}

// ProcessingSummary is the record-level view over the merged artifacts.
type ProcessingSummary struct {
	TotalRecordsProcessed int              `json:"totalRecordsProcessed"`
	TotalErrors           int              `json:"totalErrors"`
	SuccessRate           float64          `json:"successRate"`
	UniqueCustomers       int              `json:"uniqueCustomers"`
	UniqueTenants         int              `json:"uniqueTenants"`
	RecordTypes           map[string]int64 `json:"recordTypes"`
	ErrorTypes            map[string]int64 `json:"errorTypes"`
}

type PerformanceMetrics struct {
	TotalProcessingTime       float64 `json:"totalProcessingTime"`
	AvgProcessingTimePerChunk float64 `json:"avgProcessingTimePerChunk"`
	RecordsPerSecond          float64 `json:"recordsPerSecond"`
	ChunksPerSecond           float64 `json:"chunksPerSecond"`
}

type ChunkStatistics struct {
	TotalChunks      int     `json:"totalChunks"`
	SuccessfulChunks int     `json:"successfulChunks"`
	FailedChunks     int     `json:"failedChunks"`
	ChunkSuccessRate float64 `json:"chunkSuccessRate"`
}

type Summary struct {
	ProcessingSummary  ProcessingSummary  `json:"processingSummary"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	ChunkStatistics    ChunkStatistics    `json:"chunkStatistics"`
}

// Output is the terminal artifact of a batch.
type Output struct {
	BatchID               string           `json:"batchId"`
	CustomerID            string           `json:"customerId"`
	TenantID              string           `json:"tenantId"`
	Deployment            batch.Deployment `json:"deployment"`
	Bucket                string           `json:"bucket"`
	BatchStatus           batch.Status     `json:"batchStatus"`
	Aggregated            Rollup           `json:"aggregatedResults"`
	Summary               Summary          `json:"summary"`
	FinalResultKey        string           `json:"finalResultKey"`
	TotalRecordsProcessed int              `json:"totalRecordsProcessed"`
	TotalErrors           int              `json:"totalErrors"`
	ProcessingTime        float64          `json:"processingTime"`
	CompletionTime        time.Time        `json:"completionTime"`
}

// finalArtifact is the persisted form of the terminal result, carrying
// the full merged record set alongside the summary.
type finalArtifact struct {
	BatchID      string           `json:"batchId"`
	ProcessedAt  time.Time        `json:"processedAt"`
	Summary      Summary          `json:"summary"`
	TotalRecords int              `json:"totalRecords"`
	Records      []map[string]any `json:"records"`
}

// Aggregator produces and persists the consolidated batch result.
type Aggregator struct {
	store  store.ObjectStore
	logger *slog.Logger
}

func New(os store.ObjectStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: os, logger: logger}
}

// LoadChunkResults discovers all persisted ChunkResults for a batch by
// prefix listing, tolerating a partially populated key space. Results
// come back in chunk-id order.
func LoadChunkResults(ctx context.Context, os store.ObjectStore, bucket, batchID string, logger *slog.Logger) ([]process.Result, error) {
	infos, err := os.List(ctx, bucket, store.ChunkResultPrefix(batchID))
	if err != nil {
		return nil, fmt.Errorf("list chunk results: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	var results []process.Result
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		data, err := os.Get(ctx, bucket, info.Key)
		if err != nil {
			logger.Error("download chunk result failed",
				slog.String("key", info.Key),
				slog.String("error", err.Error()))
			continue
		}
		var r process.Result
		if err := json.Unmarshal(data, &r); err != nil {
			logger.Error("unmarshal chunk result failed",
				slog.String("key", info.Key),
				slog.String("error", err.Error()))
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Run merges the chunk results and all chunk output/error artifacts for
// the batch, persists the final aggregated artifact and returns the
// consolidated output.
func (a *Aggregator) Run(ctx context.Context, cfg batch.Config, results []process.Result) (*Output, error) {
	a.logger.Info("aggregation started",
		slog.String("batch_id", cfg.BatchID),
		slog.Int("chunk_results", len(results)))

	rollup := a.RollupChunks(results)

	allRecords := a.mergeArtifacts(ctx, cfg.Bucket, store.ResultPrefix(cfg.BatchID))
	allErrors := a.mergeArtifacts(ctx, cfg.Bucket, store.ErrorPrefix(cfg.BatchID))

	summary := buildSummary(rollup, allRecords, allErrors)

	finalKey := store.FinalResultKey(cfg.BatchID)
	artifact := finalArtifact{
		BatchID:      cfg.BatchID,
		ProcessedAt:  time.Now().UTC(),
		Summary:      summary,
		TotalRecords: len(allRecords),
		Records:      allRecords,
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("marshal final result: %w", err)
	}
	if err := a.store.Put(ctx, cfg.Bucket, finalKey, data, "application/json"); err != nil {
		return nil, fmt.Errorf("upload final result: %w", err)
	}

	a.logger.Info("aggregation completed",
		slog.String("batch_id", cfg.BatchID),
		slog.Int("records", len(allRecords)),
		slog.Int("errors", len(allErrors)),
		slog.Float64("chunk_success_rate", rollup.SuccessRate))

	return &Output{
		BatchID:               cfg.BatchID,
		CustomerID:            cfg.CustomerID,
		TenantID:              cfg.TenantID,
		Deployment:            cfg.Deployment,
		Bucket:                cfg.Bucket,
		BatchStatus:           batch.StatusCompleted,
		Aggregated:            rollup,
		Summary:               summary,
		FinalResultKey:        finalKey,
		TotalRecordsProcessed: len(allRecords),
		TotalErrors:           len(allErrors),
		ProcessingTime:        rollup.TotalProcessingTime,
		CompletionTime:        time.Now().UTC(),
	}, nil
}

// RollupChunks merges per-chunk statistics into batch totals. A batch
// whose chunk details carry more than one destination is a
// data-integrity violation; it is reported with the first-seen value
// still chosen as primary.
func (a *Aggregator) RollupChunks(results []process.Result) Rollup {
	r := Rollup{ChunkDetails: make([]ChunkDetail, 0, len(results))}

	destinationsSeen := make(map[batch.Destination]struct{})
	var destinationOrder []batch.Destination

	for _, cr := range results {
		if cr.Status == "SUCCESS" {
			r.SuccessfulChunks++
			r.TotalRecordsProcessed += cr.RecordsProcessed
			r.TotalErrors += cr.ProcessingErrors
			r.TotalProcessingTime += cr.ProcessingTime
		} else {
			r.FailedChunks++
		}

		r.KafkaStatistics.TotalRecordsSent += cr.RecordsSentToKafka
		r.KafkaStatistics.TotalErrors += cr.KafkaErrors
		r.SQSStatistics.TotalRecordsSent += cr.RecordsSentToSQSCore
		r.SQSStatistics.TotalErrors += cr.SQSErrors

		if cr.Destination != "" {
			if _, seen := destinationsSeen[cr.Destination]; !seen {
				destinationsSeen[cr.Destination] = struct{}{}
				destinationOrder = append(destinationOrder, cr.Destination)
			}
		}

		r.ChunkDetails = append(r.ChunkDetails, ChunkDetail{
			ChunkID:              cr.ChunkID,
			Status:               cr.Status,
			Destination:          cr.Destination,
			RecordsProcessed:     cr.RecordsProcessed,
			ProcessingErrors:     cr.ProcessingErrors,
			ProcessingTime:       cr.ProcessingTime,
			RecordsSentToKafka:   cr.RecordsSentToKafka,
			KafkaErrors:          cr.KafkaErrors,
			RecordsSentToSQSCore: cr.RecordsSentToSQSCore,
			SQSErrors:            cr.SQSErrors,
			ErrorMessage:         cr.ErrorMessage,
		})
	}

	r.TotalChunks = len(results)
	if r.TotalChunks > 0 {
		r.SuccessRate = float64(r.SuccessfulChunks) / float64(r.TotalChunks) * 100
	}
	if r.SuccessfulChunks > 0 {
		r.AvgProcessingTimePerChunk = r.TotalProcessingTime / float64(r.SuccessfulChunks)
	}
	if r.TotalProcessingTime > 0 {
		r.RecordsPerSecond = float64(r.TotalRecordsProcessed) / r.TotalProcessingTime
	}
	if r.KafkaStatistics.TotalRecordsSent > 0 {
		r.KafkaStatistics.SuccessRate = float64(r.KafkaStatistics.TotalRecordsSent-r.KafkaStatistics.TotalErrors) /
			float64(r.KafkaStatistics.TotalRecordsSent) * 100
	}
	if r.SQSStatistics.TotalRecordsSent > 0 {
		r.SQSStatistics.SuccessRate = float64(r.SQSStatistics.TotalRecordsSent-r.SQSStatistics.TotalErrors) /
			float64(r.SQSStatistics.TotalRecordsSent) * 100
	}

	if len(destinationOrder) > 0 {
		r.PrimaryDestination = destinationOrder[0]
	}
	if len(destinationOrder) > 1 {
		values := make([]string, len(destinationOrder))
		for i, d := range destinationOrder {
			values[i] = string(d)
		}
		a.logger.Warn("destination mismatch across chunks of one batch",
			slog.String("destinations", strings.Join(values, ", ")),
			slog.String("primary", string(r.PrimaryDestination)))
	}

	return r
}

// mergeArtifacts downloads and concatenates every artifact under the
// prefix. A failed download is logged and skipped: the merge is
// best-effort, not all-or-nothing.
func (a *Aggregator) mergeArtifacts(ctx context.Context, bucket, prefix string) []map[string]any {
	infos, err := a.store.List(ctx, bucket, prefix)
	if err != nil {
		a.logger.Error("list artifacts failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		return nil
	}

	var merged []map[string]any
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		data, err := a.store.Get(ctx, bucket, info.Key)
		if err != nil {
			a.logger.Error("download artifact failed",
				slog.String("key", info.Key),
				slog.String("error", err.Error()))
			continue
		}

		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			// Some artifacts hold a single object rather than an array.
			var single map[string]any
			if err := json.Unmarshal(data, &single); err != nil {
				a.logger.Error("unmarshal artifact failed",
					slog.String("key", info.Key),
					slog.String("error", err.Error()))
				continue
			}
			merged = append(merged, single)
			continue
		}
		merged = append(merged, records...)
	}
	return merged
}

func buildSummary(rollup Rollup, allRecords, allErrors []map[string]any) Summary {
	recordTypes := make(map[string]int64)
	customers := make(map[string]struct{})
	tenants := make(map[string]struct{})
	for _, record := range allRecords {
		typeName := "unknown"
		if t, ok := record["type"].(string); ok && t != "" {
			typeName = t
		}
		recordTypes[typeName]++
		if c, ok := record["customerId"].(string); ok {
			customers[c] = struct{}{}
		}
		if t, ok := record["tenantId"].(string); ok {
			tenants[t] = struct{}{}
		}
	}

	errorTypes := make(map[string]int64)
	for _, e := range allErrors {
		name := "unknown"
		if m, ok := e["error"].(string); ok && m != "" {
			name = m
		}
		errorTypes[name]++
	}

	successRate := 0.0
	if len(allRecords) > 0 {
		successRate = float64(len(allRecords)-len(allErrors)) / float64(len(allRecords)) * 100
	}

	chunksPerSecond := 0.0
	if rollup.TotalProcessingTime > 0 {
		chunksPerSecond = float64(rollup.SuccessfulChunks) / rollup.TotalProcessingTime
	}

	return Summary{
		ProcessingSummary: ProcessingSummary{
			TotalRecordsProcessed: len(allRecords),
			TotalErrors:           len(allErrors),
			SuccessRate:           successRate,
			UniqueCustomers:       len(customers),
			UniqueTenants:         len(tenants),
			RecordTypes:           recordTypes,
			ErrorTypes:            errorTypes,
		},
		PerformanceMetrics: PerformanceMetrics{
			TotalProcessingTime:       rollup.TotalProcessingTime,
			AvgProcessingTimePerChunk: rollup.AvgProcessingTimePerChunk,
			RecordsPerSecond:          rollup.RecordsPerSecond,
			ChunksPerSecond:           chunksPerSecond,
		},
		ChunkStatistics: ChunkStatistics{
			TotalChunks:      rollup.TotalChunks,
			SuccessfulChunks: rollup.SuccessfulChunks,
			FailedChunks:     rollup.FailedChunks,
			ChunkSuccessRate: rollup.SuccessRate,
		},
	}
}
