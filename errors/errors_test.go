package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.class.String())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"backend unavailable", ErrBackendUnavailable, true},
		{"index unavailable", ErrIndexUnavailable, true},
		{"store unavailable", ErrStoreUnavailable, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped backend error", fmt.Errorf("embed: %w", ErrBackendUnavailable), true},
		{"timeout pattern", errors.New("dial tcp: i/o timeout"), true},
		{"dimension mismatch", ErrDimensionMismatch, false},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrInvalidInput))
	assert.True(t, IsInvalid(ErrInvalidTopK))
	assert.True(t, IsInvalid(fmt.Errorf("request: %w", ErrEmptyQuery)))
	assert.False(t, IsInvalid(ErrBackendUnavailable))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrDimensionMismatch))
	assert.True(t, IsFatal(ErrIndexCorrupt))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.False(t, IsFatal(ErrIndexUnavailable))
	assert.False(t, IsFatal(nil))
}

func TestWrapTransient(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapTransient(base, "HTTPIndex", "Query", "search request")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPIndex.Query: search request failed")
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, base))

	var ce *ClassifiedError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "HTTPIndex", ce.Component)
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := WrapInvalid(ErrInvalidTopK, "Orchestrator", "Search", "validate request")

	assert.True(t, errors.Is(err, ErrInvalidTopK))
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "C", "M", "a"))
	assert.NoError(t, WrapTransient(nil, "C", "M", "a"))
	assert.NoError(t, WrapInvalid(nil, "C", "M", "a"))
	assert.NoError(t, WrapFatal(nil, "C", "M", "a"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidInput))
	assert.Equal(t, ErrorFatal, Classify(ErrIndexCorrupt))
	assert.Equal(t, ErrorTransient, Classify(ErrIndexUnavailable))
	// Unknown errors default to transient so callers may retry
	assert.Equal(t, ErrorTransient, Classify(errors.New("mystery")))
}

func TestClassifyInvalidWinsOverPattern(t *testing.T) {
	// An invalid error whose message mentions a transient pattern must
	// still classify as invalid.
	err := WrapInvalid(errors.New("connection string malformed"), "Config", "Load", "parse")
	assert.Equal(t, ErrorInvalid, Classify(err))
}

func TestShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.True(t, cfg.ShouldRetry(ErrBackendUnavailable, 0))
	assert.False(t, cfg.ShouldRetry(ErrBackendUnavailable, cfg.MaxRetries))
	assert.False(t, cfg.ShouldRetry(ErrInvalidInput, 0))
	assert.False(t, cfg.ShouldRetry(nil, 0))
}

func TestToRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig().ToRetryConfig()

	assert.Equal(t, DefaultRetryConfig().MaxRetries+1, rc.MaxAttempts)
	assert.True(t, rc.AddJitter)
}
