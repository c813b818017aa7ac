package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/ports"
)

// flakyClient fails a configured number of calls before succeeding.
type flakyClient struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	err       error
}

var _ ports.ForecastClient = (*flakyClient)(nil)

func (f *flakyClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := f.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

func (f *flakyClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return "", 0, 0, f.err
	}
	return "ok", 5, 3, nil
}

func (f *flakyClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }
func (f *flakyClient) GetModel() string                        { return "flaky-1" }

func (f *flakyClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		JitterPercent: 0.1,
	}
}

func TestRetryingClientRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{
		failFirst: 2,
		err:       NewProviderError("flaky", ErrorTypeRateLimit, 429, "slow down", nil),
	}
	client := NewRetryingForecastClient(inner, fastRetryConfig())

	response, tokensIn, tokensOut, err := client.CompleteWithUsage(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", response)
	assert.Equal(t, 5, tokensIn)
	assert.Equal(t, 3, tokensOut)
	assert.Equal(t, 3, inner.callCount())
}

func TestRetryingClientStopsOnPermanentError(t *testing.T) {
	inner := &flakyClient{
		failFirst: 100,
		err:       NewProviderError("flaky", ErrorTypeBadRequest, 400, "malformed", nil),
	}
	client := NewRetryingForecastClient(inner, fastRetryConfig())

	_, err := client.Complete(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount(), "bad requests should fail immediately")
}

func TestRetryingClientExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{
		failFirst: 100,
		err:       NewProviderError("flaky", ErrorTypeServerError, 503, "unavailable", nil),
	}
	client := NewRetryingForecastClient(inner, fastRetryConfig())

	_, err := client.Complete(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 4, inner.callCount())
}

func TestRetryingClientDoesNotRetryCircuitOpen(t *testing.T) {
	inner := &flakyClient{failFirst: 100, err: ErrCircuitOpen}
	client := NewRetryingForecastClient(inner, fastRetryConfig())

	_, err := client.Complete(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount())
}

func TestRetryingClientDelegatesPassthroughMethods(t *testing.T) {
	inner := &flakyClient{}
	client := NewRetryingForecastClient(inner, DefaultRetryConfig())

	assert.Equal(t, "flaky-1", client.GetModel())
	count, err := client.EstimateTokens("12345678")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, DefaultMaxAttempts, config.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, config.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, config.MaxDelay)
	assert.InDelta(t, DefaultJitterPercent, config.JitterPercent, 1e-9)
}
