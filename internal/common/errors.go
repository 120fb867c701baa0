// Package common provides the error taxonomy shared by the engine, the job
// manager and the HTTP surface.
package common

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can map them
// to a response status with errors.Is.
var (
	// ErrValidation covers rejected uploads and CSVs missing required columns.
	ErrValidation = errors.New("validation error")
	// ErrParse covers row values that cannot be coerced (empty ids, bad timestamps).
	ErrParse = errors.New("parse error")
	// ErrNotFound covers unknown job ids and reports requested before any analysis.
	ErrNotFound = errors.New("not found")
	// ErrInternal covers unexpected failures inside the pipeline.
	ErrInternal = errors.New("internal error")
)

// DetailError carries the human-readable message shown to API clients while
// still matching its class via errors.Is.
type DetailError struct {
	Class  error
	Detail string
	Err    error
}

func (e *DetailError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *DetailError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Class, e.Err}
	}
	return []error{e.Class}
}

// Validation builds a validation error with the given detail.
func Validation(format string, args ...any) error {
	return &DetailError{Class: ErrValidation, Detail: fmt.Sprintf(format, args...)}
}

// Parse builds a parse error with the given detail.
func Parse(format string, args ...any) error {
	return &DetailError{Class: ErrParse, Detail: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error with the given detail.
func NotFound(format string, args ...any) error {
	return &DetailError{Class: ErrNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(detail string, err error) error {
	return &DetailError{Class: ErrInternal, Detail: detail, Err: err}
}

// Detail returns the message to show a user for err. Errors without a
// DetailError in their chain fall back to err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var de *DetailError
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}
