// Package errors defines the ledger's error taxonomy.
//
// Every business failure is a *DomainError carrying a stable Code. Sentinels
// are compared by code, so a wrapped or re-worded error still matches:
//
//	if errors.Is(err, apperrors.ErrInsufficientFunds) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
)

// DomainError is a business error with a stable, machine readable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a DomainError.
func New(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap returns a copy of base with a more specific message.
func Wrap(base *DomainError, format string, args ...interface{}) error {
	return &DomainError{
		Code:    base.Code,
		Message: fmt.Sprintf("%s: %s", base.Message, fmt.Sprintf(format, args...)),
	}
}

// WithCause returns a copy of base wrapping err.
func WithCause(base *DomainError, err error) error {
	return &DomainError{Code: base.Code, Message: base.Message, Err: err}
}

// Code extracts the domain code of err, or "" when err is not a DomainError.
func Code(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Retryable reports whether err is transient and the operation may be retried
// as-is by the caller.
func Retryable(err error) bool {
	return stderrors.Is(err, ErrConcurrentModification)
}
