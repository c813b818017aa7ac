package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassifierHTTPStatuses(t *testing.T) {
	classifier := &ErrorClassifier{Provider: "anthropic"}

	tests := []struct {
		name       string
		statusCode int
		wantType   ErrorType
		retryable  bool
	}{
		{"unauthorized", 401, ErrorTypeAuthentication, false},
		{"forbidden", 403, ErrorTypeAuthentication, false},
		{"rate limited", 429, ErrorTypeRateLimit, true},
		{"bad request", 400, ErrorTypeBadRequest, false},
		{"not found", 404, ErrorTypeNotFound, false},
		{"server error", 500, ErrorTypeServerError, true},
		{"bad gateway", 502, ErrorTypeServerError, true},
		{"unmapped 4xx", 422, ErrorTypeBadRequest, false},
		{"unmapped 5xx", 599, ErrorTypeServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provErr := classifier.ClassifyHTTPError(tt.statusCode, "boom", assert.AnError)
			assert.Equal(t, tt.wantType, provErr.Type)
			assert.Equal(t, tt.retryable, provErr.IsRetryable())
			assert.Equal(t, tt.statusCode, provErr.StatusCode)
		})
	}
}

func TestErrorClassifierContextErrors(t *testing.T) {
	classifier := &ErrorClassifier{Provider: "openai"}

	deadline := classifier.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)
	assert.True(t, deadline.IsRetryable())

	canceled := classifier.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, canceled.Type)
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	provErr := NewProviderError("google", ErrorTypeNetwork, 0, "transport", inner)

	assert.ErrorIs(t, provErr, inner)

	var target *ProviderError
	require.ErrorAs(t, error(provErr), &target)
	assert.Equal(t, "google", target.Provider)
}

func TestProviderErrorMessageFormat(t *testing.T) {
	provErr := NewProviderError("anthropic", ErrorTypeRateLimit, 429, "rate limit exceeded", nil)
	message := provErr.Error()

	assert.Contains(t, message, "anthropic error")
	assert.Contains(t, message, "HTTP 429")
	assert.Contains(t, message, "rate_limit")
}
