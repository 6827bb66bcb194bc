package batch

import (
	"fmt"
	"strings"
	"time"
)

// Deployment identifies the environment a batch belongs to.
type Deployment string

const DeploymentWorkspace Deployment = "WORKSPACE"

// Destination selects the sink every record of a batch is routed to.
// Routing is exclusive: one destination per batch, echoed onto every
// chunk descriptor.
type Destination string

const (
	DestinationKafka   Destination = "kafka"
	DestinationSQSCore Destination = "sqs_core"
)

// Status is the batch-level lifecycle status reported by every stage.
type Status string

const (
	StatusSubmissionFailed         Status = "SUBMISSION_FAILED"
	StatusValidationPassed         Status = "VALIDATION_PASSED"
	StatusValidationFailed         Status = "VALIDATION_FAILED"
	StatusValidationFailedCritical Status = "VALIDATION_FAILED_CRITICAL"
	StatusChunksCalculated         Status = "CHUNKS_CALCULATED"
	StatusChunkProcessed           Status = "CHUNK_PROCESSED"
	StatusChunkFailed              Status = "CHUNK_FAILED"
	StatusCompleted                Status = "COMPLETED"
	StatusNotificationSent         Status = "BATCH_COMPLETION_NOTIFICATION_SENT"
)

// Request is the batch-initiation input. BatchID is caller-supplied and
// must be globally unique per run; batch state exists only as storage
// artifacts keyed by it.
type Request struct {
	Bucket      string      `json:"bucket"`
	File        string      `json:"file"`
	CustomerID  string      `json:"customerId"`
	TenantID    string      `json:"tenantId"`
	BatchID     string      `json:"batchId"`
	Deployment  Deployment  `json:"deployment,omitempty"`
	SnapshotID  string      `json:"snapshotId,omitempty"`
	Destination Destination `json:"destination,omitempty"`

	// Tunables; zero values fall back to configured defaults.
	MaxConcurrentChunks int   `json:"maxConcurrentChunks,omitempty"`
	MaxChunkSize        int64 `json:"maxChunkSize,omitempty"`
	TargetTotalRecords  int64 `json:"targetTotalRecords,omitempty"`
}

// Validate checks the required-field contract. Deployment defaults to
// WORKSPACE, and a WORKSPACE deployment requires a snapshot id.
func (r *Request) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"bucket", r.Bucket},
		{"file", r.File},
		{"customerId", r.CustomerID},
		{"tenantId", r.TenantID},
		{"batchId", r.BatchID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if r.Deployment == "" {
		r.Deployment = DeploymentWorkspace
	}
	if r.Deployment == DeploymentWorkspace && r.SnapshotID == "" {
		return fmt.Errorf("snapshotId is required when deployment is %s", DeploymentWorkspace)
	}

	switch r.Destination {
	case "", DestinationKafka, DestinationSQSCore:
	default:
		return fmt.Errorf("invalid destination: %s", r.Destination)
	}
	return nil
}

// Failure is the structured error response every stage returns instead
// of crashing.
type Failure struct {
	BatchID      string     `json:"batchId"`
	CustomerID   string     `json:"customerId"`
	TenantID     string     `json:"tenantId"`
	Deployment   Deployment `json:"deployment"`
	BatchStatus  Status     `json:"batchStatus"`
	ErrorMessage string     `json:"errorMessage"`
	ErrorTime    time.Time  `json:"errorTime"`
}

// NewFailure builds a SUBMISSION_FAILED response, substituting "unknown"
// for fields the request never carried.
func NewFailure(r Request, msg string) Failure {
	return Failure{
		BatchID:      orUnknown(r.BatchID),
		CustomerID:   orUnknown(r.CustomerID),
		TenantID:     orUnknown(r.TenantID),
		Deployment:   Deployment(orUnknown(string(r.Deployment))),
		BatchStatus:  StatusSubmissionFailed,
		ErrorMessage: msg,
		ErrorTime:    time.Now().UTC(),
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// EstimateRecords estimates the record count of a delimited-JSON file
// from its byte size. Deliberately crude: ~1KB per record, floored at 1M.
func EstimateRecords(fileSize int64) int64 {
	est := fileSize / 1024
	if est < 1000000 {
		return 1000000
	}
	return est
}
