package errors

import (
	"errors"
	"fmt"
)

// SynError is the structured error type for synexpand.
// It provides rich context for error handling, logging, and user presentation.
type SynError struct {
	// Code is the unique error code (e.g., "ERR_301_SYNONYMS_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SynError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SynError) Unwrap() error {
	return e.Cause
}

// Is matches another *SynError by code, so errors.Is works with a bare
// &SynError{Code: ...} target.
func (e *SynError) Is(target error) bool {
	if t, ok := target.(*SynError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SynError) WithDetail(key, value string) *SynError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SynError) WithSuggestion(suggestion string) *SynError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SynError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SynError {
	return &SynError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SynError from an existing error.
// The error's message becomes the SynError message.
func Wrap(code string, err error) *SynError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SynError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *SynError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ProviderError creates a synonym provider error.
// Provider errors are retryable.
func ProviderError(message string, cause error) *SynError {
	return New(ErrCodeSynonymsUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SynError {
	return New(ErrCodeInvalidInput, message, cause)
}

// As finds the first SynError in err's chain.
func As(err error) (*SynError, bool) {
	var se *SynError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if a SynError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	if se, ok := As(err); ok {
		return se.Retryable
	}
	return false
}
