package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of supervisor errors
type ErrorType string

const (
	ErrorTypeValidation              ErrorType = "validation"
	ErrorTypeNotFound                ErrorType = "not_found"
	ErrorTypeNotRunning              ErrorType = "not_running"
	ErrorTypeIncompatibleRuntime     ErrorType = "incompatible_runtime"
	ErrorTypeArtifactMissing         ErrorType = "artifact_missing"
	ErrorTypeUnsupportedDistribution ErrorType = "unsupported_distribution"
	ErrorTypeVersionNotFound         ErrorType = "version_not_found"
	ErrorTypeNoDownloadAvailable     ErrorType = "no_download_available"
	ErrorTypeUpstreamUnavailable     ErrorType = "upstream_unavailable"
	ErrorTypeProcessStartup          ErrorType = "process_startup"
	ErrorTypeCommandDelivery         ErrorType = "command_delivery"
	ErrorTypeIO                      ErrorType = "io"
	ErrorTypeInternal                ErrorType = "internal"
)

// DomainError represents a structured error with type and context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Caller input errors
func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewNotRunningError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotRunning, message, cause)
}

// Start-time errors
func NewIncompatibleRuntimeError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIncompatibleRuntime, message, cause)
}

func NewArtifactMissingError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeArtifactMissing, message, cause)
}

func NewUnsupportedDistributionError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeUnsupportedDistribution, message, cause)
}

func NewVersionNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeVersionNotFound, message, cause)
}

func NewNoDownloadAvailableError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNoDownloadAvailable, message, cause)
}

func NewUpstreamUnavailableError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeUpstreamUnavailable, message, cause)
}

// Process errors
func NewProcessStartupError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProcessStartup, message, cause)
}

func NewCommandDeliveryError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeCommandDelivery, message, cause)
}

// System errors
func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// As and Is forward to the standard library so callers need one errors import
func As(err error, target interface{}) bool { return errors.As(err, target) }

func Is(err, target error) bool { return errors.Is(err, target) }

// TypeOf returns the type of the outermost DomainError in the chain, or
// ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

func isType(err error, errorType ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == errorType
}

// Error checking helpers
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

func IsNotRunningError(err error) bool { return isType(err, ErrorTypeNotRunning) }

func IsIncompatibleRuntimeError(err error) bool { return isType(err, ErrorTypeIncompatibleRuntime) }

func IsArtifactMissingError(err error) bool { return isType(err, ErrorTypeArtifactMissing) }

func IsUnsupportedDistributionError(err error) bool {
	return isType(err, ErrorTypeUnsupportedDistribution)
}

func IsVersionNotFoundError(err error) bool { return isType(err, ErrorTypeVersionNotFound) }

func IsNoDownloadAvailableError(err error) bool { return isType(err, ErrorTypeNoDownloadAvailable) }

func IsUpstreamUnavailableError(err error) bool { return isType(err, ErrorTypeUpstreamUnavailable) }

func IsProcessStartupError(err error) bool { return isType(err, ErrorTypeProcessStartup) }

func IsCommandDeliveryError(err error) bool { return isType(err, ErrorTypeCommandDelivery) }

func IsIOError(err error) bool { return isType(err, ErrorTypeIO) }

func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// Error aggregation for bulk operations
type ErrorCollection struct {
	Errors []error
}

func (e *ErrorCollection) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(e.Errors), e.Errors[0])
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ErrorCollection) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]error, 0),
	}
}
