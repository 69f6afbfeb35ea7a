package errors

import (
	"fmt"
)

// CiteError is the structured error type for CiteWise.
// It provides context for error handling, logging, and user presentation.
type CiteError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Backend, etc.).
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
func (e *CiteError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CiteError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CiteError.
func (e *CiteError) Is(target error) bool {
	if t, ok := target.(*CiteError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CiteError) WithDetail(key, value string) *CiteError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CiteError) WithSuggestion(suggestion string) *CiteError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CiteError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CiteError {
	return &CiteError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CiteError from an existing error.
// The error's message becomes the CiteError message.
func Wrap(code string, err error) *CiteError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreUnavailable creates a store-open error. Fatal, surfaced to the caller.
func StoreUnavailable(message string, cause error) *CiteError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// SchemaError creates a collection create/describe error.
func SchemaError(message string, cause error) *CiteError {
	return New(ErrCodeSchemaError, message, cause)
}

// EmbeddingFailed creates an embedding backend error.
// The enclosing batch is treated as fully failed.
func EmbeddingFailed(message string, cause error) *CiteError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// SearchFailed creates a vector search error.
// Callers degrade to empty results rather than raising.
func SearchFailed(message string, cause error) *CiteError {
	return New(ErrCodeSearchFailed, message, cause)
}

// DeleteFailed creates a per-source deletion error.
// Recorded in sync reports; does not abort remaining reconciliation.
func DeleteFailed(message string, cause error) *CiteError {
	return New(ErrCodeDeleteFailed, message, cause)
}

// InvalidSourceName creates a source filename validation error.
func InvalidSourceName(message string) *CiteError {
	return New(ErrCodeInvalidSourceName, message, nil)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a CiteError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CiteError); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CiteError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CiteError.
// Returns empty string if not a CiteError.
func GetCode(err error) string {
	if ce, ok := err.(*CiteError); ok {
		return ce.Code
	}
	return ""
}
