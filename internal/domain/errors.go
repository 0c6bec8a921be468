package domain

import "errors"

// Sentinel errors shared across the pipeline. Callers classify failures with
// errors.Is and wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrUpstreamUnavailable marks the encoder or generator backend as
	// unreachable or answering with a non-success status.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrBulkRejected marks an ingestion batch rejected by the search store.
	// Fatal to the ingestion run; batches flushed earlier stay committed.
	ErrBulkRejected = errors.New("bulk write rejected")

	// ErrInvalidRequest marks a malformed request payload, rejected before
	// any pipeline stage runs.
	ErrInvalidRequest = errors.New("invalid request payload")
)
