package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped sentinels still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches a cause to a sentinel DomainError, keeping its code and message.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// IsCode reports whether err is (or wraps) a DomainError with the given code.
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeParse         = "PARSE_ERROR"
	ErrCodeWrite         = "WRITE_ERROR"
	ErrCodeConnect       = "CONNECT_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrImageRequired    = NewDomainError(ErrCodeValidation, "an input image is required")
	ErrInvalidNeighbors = NewDomainError(ErrCodeValidation, "nearest-neighbor count must be positive")
	ErrEmptyDescription = NewDomainError(ErrCodeValidation, "page description is empty")
)

// Not found errors
var (
	ErrImageNotFound   = NewDomainError(ErrCodeNotFound, "image not found")
	ErrWeightsNotFound = NewDomainError(ErrCodeNotFound, "detection weights not found")
	ErrNoPages         = NewDomainError(ErrCodeNotFound, "no manual page images found")
)

// Parse errors
var (
	ErrMalformedDescription = NewDomainError(ErrCodeParse, "model output is not a valid structured page")
	ErrMalformedDetection   = NewDomainError(ErrCodeParse, "detection result is not valid")
)

// Store errors
var (
	ErrStoreWrite   = NewDomainError(ErrCodeWrite, "failed to write assembly steps")
	ErrStoreConnect = NewDomainError(ErrCodeConnect, "failed to connect to vector store")
)

// Configuration errors
var (
	ErrMissingConfig     = NewDomainError(ErrCodeConfig, "missing required configuration")
	ErrDimensionMismatch = NewDomainError(ErrCodeConfig, "embedding dimension does not match corpus dimension")
	ErrInvalidPrompt     = NewDomainError(ErrCodeConfig, "invalid prompt template")
)
