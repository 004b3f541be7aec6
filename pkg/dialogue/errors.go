package dialogue

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dialogue package.
var (
	// ErrMissingURL indicates no engine URL was provided.
	ErrMissingURL = errors.New("dialogue: engine URL is required")

	// ErrNoSession indicates an operation referenced an unopened session.
	ErrNoSession = errors.New("dialogue: session not open")
)

// EngineError represents an error returned by the dialogue engine.
type EngineError struct {
	// StatusCode is the HTTP status code (if applicable).
	StatusCode int

	// Message is the human-readable error message.
	Message string

	// Retryable indicates if the request could be retried. The
	// orchestrator never retries mid-conversation; this only informs
	// logging.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dialogue: engine error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("dialogue: engine error: %s", e.Message)
}

// IsRetryable returns true if the error could be retried.
func (e *EngineError) IsRetryable() bool {
	return e.Retryable
}

// NewEngineError creates an EngineError from an HTTP status.
func NewEngineError(statusCode int, message string) *EngineError {
	return &EngineError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// IsRetryable returns true if the error could be retried.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.IsRetryable()
	}
	return false
}
