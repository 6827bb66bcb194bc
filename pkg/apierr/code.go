package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Batch submission errors.
const (
	CodeSubmissionFailed   Code = "SUBMISSION_FAILED"
	CodeBatchEnqueueFailed Code = "BATCH_ENQUEUE_FAILED"
)

// Batch artifact retrieval errors.
const (
	CodeValidationResultNotFound Code = "VALIDATION_RESULT_NOT_FOUND"
	CodeValidationFetchFailed    Code = "VALIDATION_FETCH_FAILED"
	CodeChunkManifestNotFound    Code = "CHUNK_MANIFEST_NOT_FOUND"
	CodeChunkManifestFetchFailed Code = "CHUNK_MANIFEST_FETCH_FAILED"
	CodeFinalResultNotFound      Code = "FINAL_RESULT_NOT_FOUND"
	CodeFinalResultFetchFailed   Code = "FINAL_RESULT_FETCH_FAILED"
)

// Health errors.
const (
	CodeQueueNotReady Code = "QUEUE_NOT_READY"
)
