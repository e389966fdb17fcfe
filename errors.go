package ocr

import (
	"errors"
	"fmt"
)

// Status is the small set of outcome codes returned by the public API and
// carried in policy messages' returnDetail field (spec §7).
type Status int

const (
	StatusOK Status = iota
	StatusNotSupported
	StatusInvalidArgument
	StatusPermission
	StatusNotFound
	StatusExists
	StatusConcurrencyConflict
	StatusOutOfMemory
	StatusOverflow
	StatusProtocolViolation
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusInvalidArgument:
		return "INVALID_ARG"
	case StatusPermission:
		return "PERMISSION"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusExists:
		return "EXISTS"
	case StatusConcurrencyConflict:
		return "CONCURRENCY_CONFLICT"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusOverflow:
		return "OVERFLOW"
	case StatusProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case StatusFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// StatusError wraps a Status with context. It is the concrete error type
// returned throughout the runtime; callers match against it with
// errors.Is(err, ErrNotFound) etc., or via StatusOf to read the Status
// directly. Unwrap returns Cause.
type StatusError struct {
	Status  Status
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, sentinelOfSameStatus) to match purely on Status,
// ignoring Message/Cause, mirroring how the teacher's AggregateError matches
// on type rather than contents.
func (e *StatusError) Is(target error) bool {
	var se *StatusError
	if errors.As(target, &se) {
		return se.Status == e.Status
	}
	return false
}

// NewStatusError constructs a StatusError. cause may be nil.
func NewStatusError(status Status, message string, cause error) *StatusError {
	return &StatusError{Status: status, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is matching against a bare Status.
var (
	ErrNotSupported       = &StatusError{Status: StatusNotSupported}
	ErrInvalidArgument    = &StatusError{Status: StatusInvalidArgument}
	ErrPermission         = &StatusError{Status: StatusPermission}
	ErrNotFound           = &StatusError{Status: StatusNotFound}
	ErrExists             = &StatusError{Status: StatusExists}
	ErrConcurrencyConflict = &StatusError{Status: StatusConcurrencyConflict}
	ErrOutOfMemory        = &StatusError{Status: StatusOutOfMemory}
	ErrOverflow           = &StatusError{Status: StatusOverflow}
	ErrProtocolViolation  = &StatusError{Status: StatusProtocolViolation}
	ErrFatal              = &StatusError{Status: StatusFatal}
)

// StatusOf extracts the Status from err, defaulting to StatusFatal for
// errors not produced by this package (an invariant violated outside our
// control is treated as corruption, per spec §7).
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusFatal
}

// FatalError builds a StatusFatal error for allocator and GUID invariant
// violations (corruption, spec §7). It does not panic; the error is
// returned to the caller like any other StatusError.
func FatalError(format string, args ...any) error {
	return NewStatusError(StatusFatal, fmt.Sprintf(format, args...), nil)
}
