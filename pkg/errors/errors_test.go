package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Creation(t *testing.T) {
	cause := errors.New("underlying error")

	err := NewValidationError("test validation error", cause)

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "test validation error", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
}

func TestDomainError_WithContext(t *testing.T) {
	err := NewProcessStartupError("test error", nil)

	err = err.WithContext("server_id", "survival")
	err = err.WithContext("pid", 12345)

	assert.Equal(t, "survival", err.Context["server_id"])
	assert.Equal(t, 12345, err.Context["pid"])
}

func TestDomainError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		error    *DomainError
		expected string
	}{
		{
			name:     "error without cause",
			error:    NewValidationError("command is required", nil),
			expected: "validation: command is required",
		},
		{
			name:     "error with cause",
			error:    NewUpstreamUnavailableError("could not fetch version manifest", errors.New("HTTP 503")),
			expected: "upstream_unavailable: could not fetch version manifest: HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Error())
		})
	}
}

func TestDomainError_TypeChecking(t *testing.T) {
	notRunning := NewNotRunningError("server is not running", nil)
	missing := NewArtifactMissingError("jar missing", nil)

	assert.True(t, IsNotRunningError(notRunning))
	assert.False(t, IsNotRunningError(missing))
	assert.True(t, IsArtifactMissingError(missing))

	wrapped := fmt.Errorf("start failed: %w", missing)
	assert.True(t, IsArtifactMissingError(wrapped))
	assert.Equal(t, ErrorTypeArtifactMissing, TypeOf(wrapped))

	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("plain")))
}

func TestDomainError_IsMatchesByType(t *testing.T) {
	err := NewVersionNotFoundError("vanilla version not found: 9.9.9", nil)

	assert.True(t, errors.Is(err, &DomainError{Type: ErrorTypeVersionNotFound}))
	assert.False(t, errors.Is(err, &DomainError{Type: ErrorTypeNotFound}))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewCommandDeliveryError("test error", cause)

	unwrapped := errors.Unwrap(err)
	assert.Equal(t, cause, unwrapped)
}

func TestErrorCollection(t *testing.T) {
	collection := NewErrorCollection()
	require.NoError(t, collection.ToError())

	collection.Add(nil)
	assert.False(t, collection.HasErrors())

	collection.Add(NewIOError("first", nil))
	collection.Add(NewIOError("second", nil))

	err := collection.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), "first")
}
