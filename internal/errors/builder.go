package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is the rich error type carried through the codebase. It wraps
// a cause with an optional user-facing hint and structured details, and is
// marked with exactly one sentinel from errors.go.
type InternalError struct {
	cause             error
	hint              string
	reportableDetails map[string]interface{}
	mark              error
}

// NewError starts building an error from a message.
func NewError(message string) *InternalError {
	return &InternalError{cause: errors.New(message)}
}

// NewErrorf starts building an error from a format string.
func NewErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{cause: errors.Newf(format, args...)}
}

// WithError starts building an error that wraps an existing cause.
func WithError(err error) *InternalError {
	return &InternalError{cause: err}
}

// WithHint attaches a human-readable hint intended for API consumers.
func (e *InternalError) WithHint(hint string) *InternalError {
	e.hint = hint
	return e
}

// WithHintf attaches a formatted hint.
func (e *InternalError) WithHintf(format string, args ...interface{}) *InternalError {
	e.hint = fmt.Sprintf(format, args...)
	return e
}

// WithReportableDetails attaches structured details safe to surface in
// responses and logs.
func (e *InternalError) WithReportableDetails(details map[string]interface{}) *InternalError {
	e.reportableDetails = details
	return e
}

// Mark finalizes the error with a sentinel so callers can use errors.Is.
func (e *InternalError) Mark(sentinel error) error {
	e.mark = sentinel
	return e
}

func (e *InternalError) Error() string {
	if e.hint != "" {
		return fmt.Sprintf("%s: %s", e.cause.Error(), e.hint)
	}
	return e.cause.Error()
}

func (e *InternalError) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match both the sentinel mark and the wrapped cause chain.
func (e *InternalError) Is(target error) bool {
	if e.mark != nil && errors.Is(e.mark, target) {
		return true
	}
	return errors.Is(e.cause, target)
}

// Hint returns the hint attached to err, if any.
func Hint(err error) string {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.hint
	}
	return ""
}

// ReportableDetails returns the structured details attached to err, if any.
func ReportableDetails(err error) map[string]interface{} {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.reportableDetails
	}
	return nil
}
