package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents lookups of unknown notes, entities or links
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation represents rejected caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStore represents entity/link record persistence errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeExtraction represents LLM extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeMirror represents Neo4j mirror errors
	ErrorTypeMirror ErrorType = "mirror"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType reports the category; promoted to every typed wrapper below
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Not Found Errors

// ErrNotFound is returned when a note, entity or manual link does not exist
type ErrNotFound struct {
	*BaseError
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil),
		Kind:      kind,
		ID:        id,
	}
}

// Validation Errors

// ErrValidation is returned when caller input is rejected
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrInvalidMerge is returned when merge arguments reference entities that do not exist
type ErrInvalidMerge struct {
	*BaseError
	CanonicalID string
	MissingIDs  []string
}

func NewInvalidMerge(canonicalID string, missing []string, reason string) *ErrInvalidMerge {
	msg := fmt.Sprintf("invalid merge into %s: %s", canonicalID, reason)
	if len(missing) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(missing, ", "))
	}
	return &ErrInvalidMerge{
		BaseError:   NewBaseError(ErrorTypeValidation, msg, nil),
		CanonicalID: canonicalID,
		MissingIDs:  missing,
	}
}

// Store Errors

// ErrStoreConflict is returned when a writer saves a record based on a stale version
type ErrStoreConflict struct {
	*BaseError
	Record          string
	ExpectedVersion int64
	ActualVersion   int64
}

func NewStoreConflict(record string, expected, actual int64) *ErrStoreConflict {
	return &ErrStoreConflict{
		BaseError: NewBaseError(ErrorTypeStore,
			fmt.Sprintf("%s record changed underneath writer (have version %d, store at %d)", record, expected, actual), nil),
		Record:          record,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// ErrStoreIO is returned when a record cannot be read or written
type ErrStoreIO struct {
	*BaseError
	Path string
}

func NewStoreIO(path, operation string, err error) *ErrStoreIO {
	return &ErrStoreIO{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("failed to %s %s", operation, path), err),
		Path:      path,
	}
}

// Extraction Errors

// ErrExtractionFailed is returned by extractors when the LLM call or its output fails.
// The pipeline downgrades it to zero results for the note.
type ErrExtractionFailed struct {
	*BaseError
	Stage string // "entities" or "relationships"
}

func NewExtractionFailed(stage string, err error) *ErrExtractionFailed {
	return &ErrExtractionFailed{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("%s extraction failed", stage), err),
		Stage:     stage,
	}
}

// Mirror Errors

// ErrMirrorFailed is returned when the Neo4j projection cannot be written
type ErrMirrorFailed struct {
	*BaseError
	URI string
}

func NewMirrorFailed(uri string, err error) *ErrMirrorFailed {
	return &ErrMirrorFailed{
		BaseError: NewBaseError(ErrorTypeMirror, fmt.Sprintf("failed to mirror graph to %s", uri), err),
		URI:       uri,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	ErrorType() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.ErrorType() == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsConflict reports whether err is an optimistic-version conflict
func IsConflict(err error) bool {
	var conflict *ErrStoreConflict
	return errors.As(err, &conflict)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// A conflicting writer can reload and retry
	if IsConflict(err) {
		return true
	}
	// LLM hiccups and mirror connection errors are transient
	if IsErrorType(err, ErrorTypeExtraction) || IsErrorType(err, ErrorTypeMirror) {
		return true
	}
	return false
}
