// Package common provides shared utilities and error types used across the
// application.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Common application errors.
var (
	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Extraction errors.
	ErrNoCredentials = errors.New("no credentials configured")
)

// ValidationError indicates malformed or unsupported input. It is never
// retried and maps to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error from a format string.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConfigError indicates a missing credential or provider dependency. It is
// an operator problem, not a user problem, and maps to HTTP 500.
type ConfigError struct {
	Err  error
	Name string
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("configuration %q: %v", e.Name, ErrMissingConfig)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingConfig
}

// QuotaExceededError is returned before any provider call when the subject
// has used up its window allowance. ResetAt estimates when the oldest
// qualifying usage record ages out of the window.
type QuotaExceededError struct {
	ResetAt time.Time
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	hours := time.Until(e.ResetAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return fmt.Sprintf("daily limit of %d extractions reached, resets in about %.1f hours", e.Limit, hours)
}
