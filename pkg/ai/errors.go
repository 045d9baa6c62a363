package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errEmptyResponse = errors.New("empty response")

// Generation failure reasons.
const (
	ReasonRateLimited = "rate_limited"
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
	ReasonTruncated   = "truncated"
)

// ValidationError reports model output that does not match the expected shape.
// It is not retried: the same prompt is expected to produce the same class of output.
type ValidationError struct {
	Schema  string
	Content json.RawMessage
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("invalid model output: %v", e.Err)
	}
	return fmt.Sprintf("invalid %s output: %v", e.Schema, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for a semantic check that failed after decoding.
func Invalid(schema string, format string, args ...any) *ValidationError {
	return &ValidationError{Schema: schema, Err: fmt.Errorf(format, args...)}
}

// GenerationError reports a failed or timed out backend call.
type GenerationError struct {
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed (%s)", e.Reason)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *GenerationError) Retryable() bool {
	return e.Reason != ReasonTruncated
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsGenerationError reports whether err carries a GenerationError.
func IsGenerationError(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}
