package validate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bzfxn6/gas/internal/batch"
	"github.com/bzfxn6/gas/internal/store"
)

const (
	// MaxErrorsToCollect bounds the retained error detail list.
	MaxErrorsToCollect = 1000

	// Gate thresholds, in percent of processed records.
	criticalErrorThreshold = 1.0
	missingFieldsThreshold = 0.5
	emptyFieldsThreshold   = 0.5
	failureErrorThreshold  = 5.0

	// Absolute critical pattern limits.
	maxMalformedJSON = 100
	maxEmptyRecords  = 1000

	progressLogInterval = 100000

	// Scanner limits for long lines.
	scanInitialBuffer = 64 * 1024
	scanMaxLine       = 16 * 1024 * 1024
)

var requiredFields = []string{"id", "name", "email", "status", "createdAt", "updatedAt"}

var validStatuses = map[string]struct{}{
	"active":    {},
	"inactive":  {},
	"pending":   {},
	"suspended": {},
	"deleted":   {},
}

var (
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
)

// Validator streams a batch's source file, applies per-record rules and
// renders the pass/fail quality gate for the whole batch.
type Validator struct {
	store  store.ObjectStore
	logger *slog.Logger
}

func New(os store.ObjectStore, logger *slog.Logger) *Validator {
	return &Validator{store: os, logger: logger}
}

// Run validates the batch's source file record by record, persists the
// full ValidationResult under the batch id and returns it. A storage
// read failure fails fast without writing a partial result.
func (v *Validator) Run(ctx context.Context, cfg batch.Config) (*Result, error) {
	v.logger.Info("validation started",
		slog.String("batch_id", cfg.BatchID),
		slog.String("file", cfg.File))

	body, err := v.store.GetReader(ctx, cfg.Bucket, cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer body.Close()

	c := newCollector()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scanInitialBuffer), scanMaxLine)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		c.processed++
		v.checkLine(c, lineNumber, line)

		if c.processed%progressLogInterval == 0 {
			v.logger.Info("validation progress",
				slog.String("batch_id", cfg.BatchID),
				slog.Int64("records", c.processed),
				slog.Int64("errors", c.failed))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}

	result := v.buildResult(cfg, c)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal validation result: %w", err)
	}
	key := store.ValidationResultKey(cfg.BatchID)
	if err := v.store.Put(ctx, cfg.Bucket, key, data, "application/json"); err != nil {
		return nil, fmt.Errorf("upload validation result: %w", err)
	}

	v.logger.Info("validation completed",
		slog.String("batch_id", cfg.BatchID),
		slog.String("status", string(result.Status)),
		slog.Int64("records", result.RecordsProcessed),
		slog.Int64("failed", result.RecordsFailed),
		slog.Float64("error_rate", result.ErrorRate))

	return result, nil
}

// checkLine parses and validates one source line, updating the collector.
func (v *Validator) checkLine(c *collector, lineNumber int, line []byte) {
	record, err := parseRecord(line)
	if err != nil {
		c.addError(lineNumber, fmt.Sprintf("invalid JSON: %v", err), nil, string(line), CategoryMalformedJSON)
		return
	}

	msg, fields, cat := checkRecord(record)
	if msg == "" {
		c.validated++
		return
	}
	c.addError(lineNumber, msg, fields, record, cat)
}

func parseRecord(line []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var record any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

// checkRecord applies the field-level rules cheapest first and stops at
// the first failure, returning the primary error message, the offending
// field names, and the pattern category. An empty message means valid.
func checkRecord(record any) (string, []string, Category) {
	if isEmptyValue(record) {
		return "record is empty or null", nil, CategoryEmptyRecords
	}

	obj, ok := record.(map[string]any)
	if !ok {
		return fmt.Sprintf("record must be a JSON object, got %T", record), nil, categoryNone
	}

	var missing, empty []string
	for _, field := range requiredFields {
		value, present := obj[field]
		if !present {
			missing = append(missing, field)
		} else if isEmptyValue(value) {
			empty = append(empty, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")), missing, CategoryMissingFields
	}
	if len(empty) > 0 {
		return fmt.Sprintf("empty required fields: %s", strings.Join(empty, ", ")), empty, CategoryEmptyFields
	}

	if email, ok := obj["email"].(string); !ok || !emailPattern.MatchString(email) {
		return fmt.Sprintf("invalid email format: %v", obj["email"]), []string{"email"}, CategoryInvalidEmail
	}

	if status, ok := obj["status"].(string); ok {
		if _, valid := validStatuses[status]; !valid {
			return fmt.Sprintf("invalid status: %s", status), []string{"status"}, CategoryInvalidStatus
		}
	} else {
		return fmt.Sprintf("invalid status: %v", obj["status"]), []string{"status"}, CategoryInvalidStatus
	}

	if !isValidID(obj["id"]) {
		return fmt.Sprintf("invalid id format: %v", obj["id"]), []string{"id"}, categoryNone
	}

	if name, ok := obj["name"].(string); !ok || len(strings.TrimSpace(name)) < 2 || len(name) > 255 {
		return fmt.Sprintf("invalid name length: %v", obj["name"]), []string{"name"}, categoryNone
	}

	for _, field := range []string{"createdAt", "updatedAt"} {
		if ts, ok := obj[field].(string); !ok || !timestampPattern.MatchString(ts) {
			return fmt.Sprintf("invalid timestamp format for %s: %v", field, obj[field]), []string{field}, CategoryInvalidTime
		}
	}

	return "", nil, categoryNone
}

// isEmptyValue reports whether a field value counts as empty: null,
// empty string, empty object or empty array.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

// isValidID accepts a non-blank string or an integer.
func isValidID(v any) bool {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id) != ""
	case json.Number:
		_, err := id.Int64()
		return err == nil
	default:
		return false
	}
}

// buildResult renders the gate decision. Critical thresholds are checked
// jointly and take precedence over the plain failure threshold.
func (v *Validator) buildResult(cfg batch.Config, c *collector) *Result {
	validationTime := time.Since(c.start).Seconds()
	errorRate := c.errorRate()
	missingRate := c.patternRate(CategoryMissingFields)
	emptyRate := c.patternRate(CategoryEmptyFields)

	var critical []string
	if errorRate > criticalErrorThreshold {
		critical = append(critical, fmt.Sprintf("critical error rate: %.2f%% (threshold: %.1f%%)", errorRate, criticalErrorThreshold))
	}
	if missingRate > missingFieldsThreshold {
		critical = append(critical, fmt.Sprintf("critical missing fields rate: %.2f%% (threshold: %.1f%%)", missingRate, missingFieldsThreshold))
	}
	if emptyRate > emptyFieldsThreshold {
		critical = append(critical, fmt.Sprintf("critical empty fields rate: %.2f%% (threshold: %.1f%%)", emptyRate, emptyFieldsThreshold))
	}
	if c.patterns[CategoryMalformedJSON] > maxMalformedJSON {
		critical = append(critical, fmt.Sprintf("too many malformed JSON records: %d", c.patterns[CategoryMalformedJSON]))
	}
	if c.patterns[CategoryEmptyRecords] > maxEmptyRecords {
		critical = append(critical, fmt.Sprintf("too many empty records: %d", c.patterns[CategoryEmptyRecords]))
	}

	var status Status
	var batchStatus batch.Status
	var errorMessage string
	switch {
	case len(critical) > 0:
		status = StatusFailed
		batchStatus = batch.StatusValidationFailedCritical
		errorMessage = "validation failed - critical data quality issues detected: " + strings.Join(critical, "; ")
	case errorRate > failureErrorThreshold || len(c.errors) >= MaxErrorsToCollect:
		status = StatusFailed
		batchStatus = batch.StatusValidationFailed
		errorMessage = fmt.Sprintf("validation failed - %.2f%% error rate (%d errors out of %d records)",
			errorRate, c.failed, c.processed)
	default:
		status = StatusPassed
		batchStatus = batch.StatusValidationPassed
	}

	recordsPerSecond := 0.0
	if validationTime > 0 {
		recordsPerSecond = float64(c.processed) / validationTime
	}
	successRate := 0.0
	if c.processed > 0 {
		successRate = float64(c.processed-c.failed) / float64(c.processed) * 100
	}

	if len(critical) > 0 {
		v.logger.Warn("critical validation issues detected",
			slog.String("batch_id", cfg.BatchID),
			slog.String("issues", strings.Join(critical, "; ")))
	}

	return &Result{
		BatchID:          cfg.BatchID,
		Status:           status,
		BatchStatus:      batchStatus,
		ErrorMessage:     errorMessage,
		ValidationTime:   validationTime,
		RecordsProcessed: c.processed,
		RecordsValidated: c.validated,
		RecordsFailed:    c.failed,
		ErrorRate:        errorRate,
		ValidationErrors: c.errors,
		ErrorPatterns:    c.patterns,
		Summary: Summary{
			TotalErrors:       len(c.errors),
			TotalRecords:      c.processed,
			ErrorRate:         errorRate,
			MissingFieldsRate: missingRate,
			EmptyFieldsRate:   emptyRate,
			CriticalIssues:    critical,
		},
		Performance: Performance{
			RecordsPerSecond: recordsPerSecond,
			ValidationTime:   validationTime,
			SuccessRate:      successRate,
		},
		CustomerID:  cfg.CustomerID,
		TenantID:    cfg.TenantID,
		Deployment:  cfg.Deployment,
		SnapshotID:  cfg.SnapshotID,
		Bucket:      cfg.Bucket,
		FileKey:     cfg.File,
		ProcessedAt: time.Now().UTC(),
	}
}
