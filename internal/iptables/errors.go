package iptables

import (
	"errors"
	"fmt"
)

// Sentinel parse failures. They are always wrapped in a ParseError carrying
// the line number, so callers match them with errors.Is.
var (
	ErrDuplicateTable = errors.New("duplicate table declaration")
	ErrMissingCommit  = errors.New("table not terminated by COMMIT")
	ErrBadCounters    = errors.New("malformed counter pair")
)

// ParseError is a fatal save-format parse failure. Line is 1-based and refers
// to the input handed to Parse.
type ParseError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError is a recoverable mutation precondition failure. The model
// is unchanged when one is returned; the caller may retry with corrected
// arguments.
type ValidationError struct {
	Op     string
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func validationf(op string, format string, args ...any) error {
	return &ValidationError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
