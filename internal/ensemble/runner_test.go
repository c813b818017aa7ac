package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

// stubAdapter is a scriptable ProviderAdapter for exercising the runner's
// fan-out without any transport.
type stubAdapter struct {
	name     string
	response string
	err      string
	delay    time.Duration
	// honorCtx controls whether the stub returns early on cancellation,
	// letting tests cover adapters that ignore their context.
	honorCtx bool
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Evaluate(ctx context.Context, prompt, fingerprint string) domain.ProviderEvaluation {
	if s.delay > 0 {
		if s.honorCtx {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return domain.ProviderEvaluation{
					Provider:          s.name,
					Err:               ctx.Err().Error(),
					PromptFingerprint: fingerprint,
					Timestamp:         time.Now().UTC(),
				}
			}
		} else {
			time.Sleep(s.delay)
		}
	}

	if s.err != "" {
		return domain.ProviderEvaluation{
			Provider:          s.name,
			Err:               s.err,
			PromptFingerprint: fingerprint,
			Timestamp:         time.Now().UTC(),
		}
	}

	out, perr := ParseOutput(s.name, s.response)
	ev := domain.ProviderEvaluation{
		Provider:          s.name,
		RawResponse:       s.response,
		PromptFingerprint: fingerprint,
		Timestamp:         time.Now().UTC(),
	}
	if perr != nil {
		ev.Err = perr.Error()
		return ev
	}
	ev.Output = out
	ev.Compliant = true
	return ev
}

func testRequest() Request {
	entry := 12.40
	stop := 11.90
	return Request{
		Symbol:    "ABCD",
		Direction: "long",
		Entry:     &entry,
		Stop:      &stop,
		Features: domain.FeatureVector{
			Symbol:           "ABCD",
			Timestamp:        time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC),
			LastPrice:        12.38,
			RelativeVolume:   3.4,
			VolatilityRegime: domain.VolatilityHigh,
			LiquidityBucket:  domain.LiquidityNormal,
			TimeOfDay:        domain.TimeOfDayMorning,
			MarketAlignment:  "aligned",
			MinutesSinceOpen: 75,
		},
	}
}

func newTestRunner(t *testing.T, timeout time.Duration, adapters ...*stubAdapter) *Runner {
	t.Helper()
	list := make([]ports.ProviderAdapter, 0, len(adapters))
	for _, a := range adapters {
		list = append(list, a)
	}
	r, err := NewRunner(list, Config{ProviderTimeout: timeout}, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestRunner_AllProvidersCompliant(t *testing.T) {
	r := newTestRunner(t, time.Second,
		&stubAdapter{name: "anthropic", response: validPayload},
		&stubAdapter{name: "openai", response: validPayload},
		&stubAdapter{name: "google", response: validPayload},
	)

	result, err := r.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, result.Evaluations, 3)
	assert.NotEmpty(t, result.EvaluationID)
	assert.NotEmpty(t, result.Prompt)
	for _, ev := range result.Evaluations {
		assert.True(t, ev.Compliant)
		require.NotNil(t, ev.Output)
		assert.Equal(t, result.Fingerprint, ev.PromptFingerprint,
			"every provider must see the identical prompt")
	}
}

func TestRunner_OneEvaluationPerProviderOnTotalFailure(t *testing.T) {
	r := newTestRunner(t, 50*time.Millisecond,
		&stubAdapter{name: "a", delay: 500 * time.Millisecond, honorCtx: true},
		&stubAdapter{name: "b", delay: 500 * time.Millisecond},
		&stubAdapter{name: "c", err: "connection refused"},
	)

	result, err := r.Evaluate(context.Background(), testRequest())
	require.NoError(t, err, "provider failures never fail the batch")

	require.Len(t, result.Evaluations, 3,
		"result count must equal provider count even when everything fails")
	for _, ev := range result.Evaluations {
		assert.False(t, ev.Compliant)
		assert.NotEmpty(t, ev.Err)
		assert.Nil(t, ev.Output)
	}
}

func TestRunner_SlowProviderDoesNotBlockSiblings(t *testing.T) {
	r := newTestRunner(t, 80*time.Millisecond,
		&stubAdapter{name: "fast", response: validPayload},
		// Ignores its context entirely; the runner must settle without it.
		&stubAdapter{name: "stuck", delay: 2 * time.Second},
	)

	start := time.Now()
	result, err := r.Evaluate(context.Background(), testRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, result.Evaluations, 2)
	assert.Less(t, elapsed, time.Second,
		"runner must settle at the timeout, not wait for the stuck provider")

	byName := map[string]domain.ProviderEvaluation{}
	for _, ev := range result.Evaluations {
		byName[ev.Provider] = ev
	}
	assert.True(t, byName["fast"].Compliant)
	assert.False(t, byName["stuck"].Compliant)
	assert.Contains(t, byName["stuck"].Err, "timed out")
}

func TestRunner_MalformedResponseRecordedNotDiscarded(t *testing.T) {
	r := newTestRunner(t, time.Second,
		&stubAdapter{name: "good", response: validPayload},
		&stubAdapter{name: "chatty", response: "Sure! The trade looks great, very bullish."},
	)

	result, err := r.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, result.Evaluations, 2)

	byName := map[string]domain.ProviderEvaluation{}
	for _, ev := range result.Evaluations {
		byName[ev.Provider] = ev
	}
	assert.False(t, byName["chatty"].Compliant)
	assert.Contains(t, byName["chatty"].Err, "no JSON object")
	assert.Equal(t, "Sure! The trade looks great, very bullish.", byName["chatty"].RawResponse,
		"raw text must be preserved for auditing")
}

func TestRunner_FingerprintDeterministic(t *testing.T) {
	r := newTestRunner(t, time.Second, &stubAdapter{name: "only", response: validPayload})

	first, err := r.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := r.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Prompt, second.Prompt)
	assert.Equal(t, first.Fingerprint, second.Fingerprint,
		"identical inputs must produce an identical fingerprint")
	assert.NotEqual(t, first.EvaluationID, second.EvaluationID)
}

func TestRunner_Validation(t *testing.T) {
	t.Run("rejects empty adapter list", func(t *testing.T) {
		_, err := NewRunner(nil, Config{}, zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrNoProviders)
	})

	t.Run("rejects duplicate adapter names", func(t *testing.T) {
		_, err := NewRunner(
			[]ports.ProviderAdapter{
				&stubAdapter{name: "dup"},
				&stubAdapter{name: "dup"},
			},
			Config{}, zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("rejects bad direction", func(t *testing.T) {
		r := newTestRunner(t, time.Second, &stubAdapter{name: "only", response: validPayload})
		req := testRequest()
		req.Direction = "sideways"
		_, err := r.Evaluate(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}
