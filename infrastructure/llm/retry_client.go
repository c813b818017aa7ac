package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/marketbridge/go-council/internal/ports"
)

// Default retry configuration constants.
const (
	// DefaultMaxAttempts is the default number of retry attempts.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the default initial delay before the first retry.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay is the default maximum delay between retry attempts.
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitterPercent is the default jitter percentage.
	DefaultJitterPercent = 0.1
)

// RetryConfig controls the exponential backoff and jitter applied by
// RetryingForecastClient.
type RetryConfig struct {
	// MaxAttempts is the maximum number of retries after the initial call.
	// Zero disables retrying.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; subsequent delays
	// double until capped by MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// JitterPercent randomizes each delay by up to the given fraction,
	// between 0.0 and 1.0, to avoid synchronized retry storms.
	JitterPercent float64
}

// DefaultRetryConfig returns retry settings suitable for most vendors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		JitterPercent: DefaultJitterPercent,
	}
}

var _ ports.ForecastClient = (*RetryingForecastClient)(nil)

// RetryingForecastClient wraps a ForecastClient with retry logic for
// transient failures. Retrying lives here, outside the ensemble fan-out,
// so each provider's retry budget is independent of the runner's
// dispatch timeout. The client is safe for concurrent use.
type RetryingForecastClient struct {
	client ports.ForecastClient
	config RetryConfig
}

// NewRetryingForecastClient wraps client with the given retry behavior.
func NewRetryingForecastClient(client ports.ForecastClient, config RetryConfig) *RetryingForecastClient {
	return &RetryingForecastClient{client: client, config: config}
}

// Complete sends a completion request, retrying transient failures with
// exponential backoff and jitter.
func (r *RetryingForecastClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxAttempts; attempt++ {
		response, err := r.client.Complete(ctx, prompt, options)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if attempt == r.config.MaxAttempts || !r.shouldRetry(err) {
			break
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(r.retryDelay(attempt)):
		}
	}

	return "", fmt.Errorf("provider call failed after %d attempts: %w", r.config.MaxAttempts+1, lastErr)
}

// CompleteWithUsage behaves like Complete but also returns token usage.
func (r *RetryingForecastClient) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxAttempts; attempt++ {
		response, tokensIn, tokensOut, err := r.client.CompleteWithUsage(ctx, prompt, options)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}

		lastErr = err
		if attempt == r.config.MaxAttempts || !r.shouldRetry(err) {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(r.retryDelay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("provider call failed after %d attempts: %w", r.config.MaxAttempts+1, lastErr)
}

// EstimateTokens delegates to the wrapped client; estimation is local and
// never retried.
func (r *RetryingForecastClient) EstimateTokens(text string) (int, error) {
	return r.client.EstimateTokens(text)
}

// GetModel returns the wrapped client's model identifier.
func (r *RetryingForecastClient) GetModel() string {
	return r.client.GetModel()
}

// shouldRetry reports whether an error is transient. Circuit-open errors
// are never retried: the breaker has already decided the vendor needs a
// cooldown.
func (r *RetryingForecastClient) shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	// Unclassified errors are assumed transient.
	return true
}

func (r *RetryingForecastClient) retryDelay(attempt int) time.Duration {
	delay := r.config.BaseDelay * time.Duration(1<<attempt)
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	jitter := int64(float64(delay) * r.config.JitterPercent)
	if jitter > 0 {
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}

	if delay < r.config.BaseDelay {
		return r.config.BaseDelay
	}

	return delay
}
