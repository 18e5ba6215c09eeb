// Package apperr defines the closed set of failures an insight session can
// report to the user. Every failure is recovered where it happens and turned
// into one inline message; none of them aborts the process.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// UnsupportedFormat means the uploaded file extension is not csv, xlsx or xls.
	UnsupportedFormat Kind = "unsupported_format"
	// DecodeError means the uploaded bytes could not be turned into a table.
	DecodeError Kind = "decode_error"
	// AnalysisError means the analysis engine failed for one query.
	AnalysisError Kind = "analysis_error"
	// NoResult means the engine finished without producing anything to show.
	NoResult Kind = "no_result"
)

// Error wraps a cause with a kind and a human-friendly message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error of the given kind without a cause.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

// Unsupported builds an UnsupportedFormat error for the given file name.
func Unsupported(filename string) *Error {
	return New(UnsupportedFormat, fmt.Sprintf("unsupported file format: %q (use .csv, .xlsx or .xls)", filename))
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }
