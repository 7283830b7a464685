// Package errors defines the stable error taxonomy for the engine.
//
// Per-item failures (a single file that cannot be parsed, a cache backend
// that is down, a worker that errors on one path) are absorbed close to
// where they happen and never escalate. Only whole-bundle validation
// failures and malformed plans surface to callers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseFailure indicates a file could not be parsed; the parser
	// degrades to a minimal analysis instead of propagating this.
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// CacheUnavailable indicates the cache backend cannot be reached;
	// always treated as a miss by callers.
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// WorkerFailure indicates a single unit of parallel work failed;
	// recorded per file in the batch result.
	WorkerFailure ErrorCode = "WORKER_FAILURE"
	// UnresolvedCall indicates a call target could not be matched to a
	// known symbol. No edge is added and no error is returned; the code
	// exists for diagnostics only.
	UnresolvedCall ErrorCode = "UNRESOLVED_CALL"
	// ValidationFailure indicates a task bundle failed structural
	// validation. This is the one hard error of task generation.
	ValidationFailure ErrorCode = "VALIDATION_FAILURE"
	// PlanInvalid indicates the input plan is malformed.
	PlanInvalid ErrorCode = "PLAN_INVALID"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// PlanError represents an engine error with a stable code.
type PlanError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new PlanError.
func New(code ErrorCode, message string, cause error) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new PlanError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *PlanError {
	return &PlanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *PlanError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PlanError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PlanError) WithDetails(details interface{}) *PlanError {
	e.Details = details
	return e
}

// CodeOf returns the error code of err, or InternalError when err carries
// no PlanError in its chain.
func CodeOf(err error) ErrorCode {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
