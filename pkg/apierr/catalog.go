package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Batch submission ---

func SubmissionFailed(message string) *Error {
	return New(CodeSubmissionFailed, http.StatusBadRequest, message)
}

func BatchEnqueueFailed(cause error) *Error {
	return Wrap(CodeBatchEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue batch", cause)
}

// --- Batch artifacts ---

func ValidationResultNotFound() *Error {
	return New(CodeValidationResultNotFound, http.StatusNotFound, "Validation result not found")
}

func ValidationFetchFailed(cause error) *Error {
	return Wrap(CodeValidationFetchFailed, http.StatusInternalServerError, "Failed to fetch validation result", cause)
}

func ChunkManifestNotFound() *Error {
	return New(CodeChunkManifestNotFound, http.StatusNotFound, "Chunk manifest not found")
}

func ChunkManifestFetchFailed(cause error) *Error {
	return Wrap(CodeChunkManifestFetchFailed, http.StatusInternalServerError, "Failed to fetch chunk manifest", cause)
}

func FinalResultNotFound() *Error {
	return New(CodeFinalResultNotFound, http.StatusNotFound, "Final result not found")
}

func FinalResultFetchFailed(cause error) *Error {
	return Wrap(CodeFinalResultFetchFailed, http.StatusInternalServerError, "Failed to fetch final result", cause)
}

// --- Health ---

func QueueNotReady() *Error {
	return New(CodeQueueNotReady, http.StatusServiceUnavailable, "Queue not ready")
}
