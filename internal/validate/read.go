package validate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bzfxn6/gas/internal/store"
)

// LoadResult retrieves the persisted ValidationResult for a batch, used
// by failure-handling paths after the gate rejected the batch.
func LoadResult(ctx context.Context, os store.ObjectStore, bucket, batchID string) (*Result, error) {
	data, err := os.Get(ctx, bucket, store.ValidationResultKey(batchID))
	if err != nil {
		return nil, fmt.Errorf("get validation result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal validation result: %w", err)
	}
	return &result, nil
}

// ErrorReport is the failure-path view of a validation result: the gate
// message plus the retained error details.
type ErrorReport struct {
	ErrorMessage     string        `json:"errorMessage"`
	ValidationErrors []RecordError `json:"validationErrors"`
	Summary          Summary       `json:"validationSummary"`
}

// LoadErrors retrieves only the error-facing portion of a persisted
// ValidationResult.
func LoadErrors(ctx context.Context, os store.ObjectStore, bucket, batchID string) (*ErrorReport, error) {
	result, err := LoadResult(ctx, os, bucket, batchID)
	if err != nil {
		return nil, err
	}

	msg := result.ErrorMessage
	if msg == "" {
		msg = "validation failed"
	}
	return &ErrorReport{
		ErrorMessage:     msg,
		ValidationErrors: result.ValidationErrors,
		Summary:          result.Summary,
	}, nil
}
