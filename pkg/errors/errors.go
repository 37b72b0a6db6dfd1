// Package errors provides custom error types for the edimap pipeline.
// Only a small subset is fatal to a run (DocumentReadError and a missing
// standard mapping table); the rest describe failures that degrade a single
// chunk or batch to an empty contribution.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's tree matches target.
var Is = errors.Is

// As finds the first error in err's tree that matches target.
var As = errors.As

// Join returns an error that wraps the given errors.
var Join = errors.Join

// Common sentinel errors for the edimap pipeline
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrAPIKeyInvalid indicates that the provided API key is invalid
	ErrAPIKeyInvalid = errors.New("API key invalid")

	// ErrBackendUnavailable indicates that the text-generation backend is temporarily unavailable
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRateLimited indicates that the backend rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrDocumentRead indicates the source specification document could not be read
	ErrDocumentRead = errors.New("document read failed")

	// ErrStandardMissing indicates the standard mapping table is missing
	ErrStandardMissing = errors.New("standard mapping table missing")

	// ErrBackend indicates a text-generation call failed after all attempts
	ErrBackend = errors.New("backend call failed")

	// ErrDecode indicates a backend response could not be decoded even after salvage
	ErrDecode = errors.New("response not decodable")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents an error returned by a text-generation backend
type APIError struct {
	Backend    string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Backend, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return target == ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return target == ErrAPIKeyInvalid
	case e.StatusCode >= 500:
		return target == ErrBackendUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(backend string, statusCode int, message string) *APIError {
	return &APIError{
		Backend:    backend,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "xlsx", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// AuthenticationError represents an authentication/authorization error
type AuthenticationError struct {
	Backend string
	Method  string // "bearer", "x-api-key", "basic", "header"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Backend, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyRequired || target == ErrAPIKeyInvalid
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(backend, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Backend: backend,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// DocumentReadError reports that the source specification document is
// missing or unreadable. It is fatal: the run stops before extraction.
type DocumentReadError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("cannot read document %s: %v", e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *DocumentReadError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DocumentReadError) Is(target error) bool {
	return target == ErrDocumentRead
}

// NewDocumentReadError creates a new DocumentReadError
func NewDocumentReadError(path string, err error) *DocumentReadError {
	return &DocumentReadError{Path: path, Err: err}
}

// BackendCallError is returned once every attempt of a backend call failed.
type BackendCallError struct {
	Backend  string
	Attempts int
	Err      error // last attempt's error
}

// Error implements the error interface
func (e *BackendCallError) Error() string {
	return fmt.Sprintf("%s call failed after %d attempt(s): %v", e.Backend, e.Attempts, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *BackendCallError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *BackendCallError) Is(target error) bool {
	return target == ErrBackend
}

// DecodeError reports a response that could not be decoded into a
// structured value. Sample holds a truncated copy of the raw text.
type DecodeError struct {
	Stage  string
	Sample string
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode failed at %s stage", e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Sample != "" {
		msg += fmt.Sprintf(" (sample: %q)", e.Sample)
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NewDecodeError creates a DecodeError with the raw text truncated to limit runes.
func NewDecodeError(stage, raw string, limit int, err error) *DecodeError {
	return &DecodeError{Stage: stage, Sample: Truncate(raw, limit), Err: err}
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAPIKeyError checks if an error is related to API keys
func IsAPIKeyError(err error) bool {
	return errors.Is(err, ErrAPIKeyRequired) || errors.Is(err, ErrAPIKeyInvalid)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsBackendUnavailable checks if an error indicates backend unavailability
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsDecodeFailure checks if an error is a decode failure
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsFatal reports whether err must abort a reconciliation run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDocumentRead) || errors.Is(err, ErrStandardMissing)
}

// IsRetryable reports whether a failed backend call is worth another attempt.
// Client errors other than 408 and 429 and authentication failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsAPIKeyError(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(backend string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Backend:    backend,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
