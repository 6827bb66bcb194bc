package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bzfxn6/gas/internal/plan"
	"github.com/bzfxn6/gas/internal/store"
)

const (
	splitInitialBuffer = 64 * 1024
	splitMaxLine       = 16 * 1024 * 1024
)

// splitter materializes per-chunk input artifacts from the batch's
// source file. It streams the file once: records are assigned to chunks
// by position, matching the manifest's contiguous index ranges.
type splitter struct {
	store  store.ObjectStore
	logger *slog.Logger
}

// split writes one JSON array per chunk under chunks/{batchId}/{chunkId}.json.
// Blank lines are skipped (they are not records), and a line that is not
// valid JSON is carried as null so the chunk processor accounts for it as
// a transform failure rather than silently dropping it. Chunks whose index
// range lies past the end of the file get an empty array.
func (s *splitter) split(ctx context.Context, manifest plan.Manifest, bucket, file string) error {
	body, err := s.store.GetReader(ctx, bucket, file)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, splitInitialBuffer), splitMaxLine)

	chunkIdx := 0
	var buf bytes.Buffer
	buf.WriteByte('[')
	inChunk := int64(0)

	flush := func() error {
		buf.WriteByte(']')
		chunk := manifest.Chunks[chunkIdx]
		key := store.ChunkInputKey(chunk.BatchID, chunk.ChunkID)
		if err := s.store.Put(ctx, bucket, key, buf.Bytes(), "application/json"); err != nil {
			return fmt.Errorf("upload chunk input %s: %w", chunk.ChunkID, err)
		}
		s.logger.Info("chunk input written",
			slog.String("batch_id", chunk.BatchID),
			slog.String("chunk_id", chunk.ChunkID),
			slog.Int64("records", inChunk))
		buf.Reset()
		buf.WriteByte('[')
		inChunk = 0
		chunkIdx++
		return nil
	}

	recordIndex := int64(0)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if chunkIdx >= len(manifest.Chunks) {
			// Records past the planned range are ignored; the plan's
			// totalRecords is authoritative for chunk coverage.
			break
		}

		if recordIndex > manifest.Chunks[chunkIdx].EndIndex {
			if err := flush(); err != nil {
				return err
			}
			if chunkIdx >= len(manifest.Chunks) {
				break
			}
		}

		if inChunk > 0 {
			buf.WriteByte(',')
		}
		if json.Valid(line) {
			buf.Write(line)
		} else {
			buf.WriteString("null")
		}
		inChunk++
		recordIndex++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read source file: %w", err)
	}

	// Flush the in-progress chunk and write empty arrays for any chunks
	// the file never reached.
	for chunkIdx < len(manifest.Chunks) {
		if err := flush(); err != nil {
			return err
		}
	}

	return nil
}
