package validate

import (
	"time"

	"github.com/bzfxn6/gas/internal/batch"
)

// Status is the gate decision of a validation run.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// Category buckets a validation failure for pattern analysis.
type Category string

const (
	CategoryEmptyRecords  Category = "empty_records"
	CategoryMissingFields Category = "missing_required_fields"
	CategoryEmptyFields   Category = "empty_required_fields"
	CategoryInvalidEmail  Category = "invalid_emails"
	CategoryInvalidStatus Category = "invalid_statuses"
	CategoryInvalidTime   Category = "invalid_timestamps"
	CategoryMalformedJSON Category = "malformed_json"

	// categoryNone marks failures (bad id, bad name length, non-object
	// records) that are counted but not tracked in the pattern histogram.
	categoryNone Category = ""
)

// RecordError is one retained validation failure.
type RecordError struct {
	LineNumber  int      `json:"lineNumber"`
	Error       string   `json:"error"`
	FieldErrors []string `json:"fieldErrors"`
	Record      any      `json:"record"`
}

// Summary holds the derived rates the gate decision is based on.
type Summary struct {
	TotalErrors       int      `json:"totalErrors"`
	TotalRecords      int64    `json:"totalRecords"`
	ErrorRate         float64  `json:"errorRate"`
	MissingFieldsRate float64  `json:"missingFieldsRate"`
	EmptyFieldsRate   float64  `json:"emptyFieldsRate"`
	CriticalIssues    []string `json:"criticalIssues"`
}

// Performance carries throughput metrics for the run.
type Performance struct {
	RecordsPerSecond float64 `json:"recordsPerSecond"`
	ValidationTime   float64 `json:"validationTime"`
	SuccessRate      float64 `json:"successRate"`
}

// Result is the immutable outcome of validating one batch's source file.
// Invariant: RecordsValidated + RecordsFailed == RecordsProcessed.
type Result struct {
	BatchID      string       `json:"batchId"`
	Status       Status       `json:"status"`
	BatchStatus  batch.Status `json:"batchStatus"`
	ErrorMessage string       `json:"errorMessage,omitempty"`

	ValidationTime   float64 `json:"validationTime"`
	RecordsProcessed int64   `json:"recordsProcessed"`
	RecordsValidated int64   `json:"recordsValidated"`
	RecordsFailed    int64   `json:"recordsFailed"`
	ErrorRate        float64 `json:"errorRate"`

	// ValidationErrors retains at most MaxErrorsToCollect entries; the
	// counters above are exact regardless.
	ValidationErrors []RecordError      `json:"validationErrors"`
	ErrorPatterns    map[Category]int64 `json:"errorPatterns"`

	Summary     Summary     `json:"validationSummary"`
	Performance Performance `json:"performance"`

	CustomerID string           `json:"customerId"`
	TenantID   string           `json:"tenantId"`
	Deployment batch.Deployment `json:"deployment"`
	SnapshotID string           `json:"snapshotId,omitempty"`

	Bucket      string    `json:"bucket"`
	FileKey     string    `json:"fileKey"`
	ProcessedAt time.Time `json:"processedAt"`
}

// collector accumulates counts and a bounded error list during a run.
// The detail list is capped; the counters and histogram never are, so
// statistics stay exact after the list saturates.
type collector struct {
	processed int64
	validated int64
	failed    int64
	errors    []RecordError
	patterns  map[Category]int64
	start     time.Time
}

func newCollector() *collector {
	return &collector{
		patterns: make(map[Category]int64),
		start:    time.Now(),
	}
}

func (c *collector) addError(lineNumber int, message string, fields []string, record any, cat Category) {
	c.failed++
	if len(c.errors) < MaxErrorsToCollect {
		c.errors = append(c.errors, RecordError{
			LineNumber:  lineNumber,
			Error:       message,
			FieldErrors: fields,
			Record:      record,
		})
	}
	if cat != categoryNone {
		c.patterns[cat]++
	}
}

func (c *collector) errorRate() float64 {
	if c.processed == 0 {
		return 0
	}
	return float64(c.failed) / float64(c.processed) * 100
}

func (c *collector) patternRate(cat Category) float64 {
	if c.processed == 0 {
		return 0
	}
	return float64(c.patterns[cat]) / float64(c.processed) * 100
}
