package epub

import (
	"errors"
)

// FormatError reports a package that cannot be decoded at all.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "epub: " + e.Reason + ": " + e.Err.Error()
	}
	return "epub: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is matches any FormatError with the same reason, so a wrapped cause does not
// hide which fatal condition occurred.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Reason == e.Reason
}

var (
	ErrMissingContainer = &FormatError{Reason: "missing container"}
	ErrMissingRootfile  = &FormatError{Reason: "missing rootfile"}
	ErrMissingPackage   = &FormatError{Reason: "missing package document"}
)

// InputError reports an invalid document model passed to the encoder.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "epub: invalid input: " + e.Reason
}

var (
	// ErrCancelled is returned when an encode or decode call is cancelled
	// through its context. The context error is wrapped alongside it.
	ErrCancelled = errors.New("epub: cancelled")

	// ErrEntryNotFound is returned by archive readers for absent entries.
	ErrEntryNotFound = errors.New("epub: entry not found")
)
