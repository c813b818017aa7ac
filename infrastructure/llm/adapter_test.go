package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/ports"
)

const validPayload = `{
	"trade_score": 72.5,
	"extension_risk": 30,
	"exhaustion_risk": 25,
	"float_rotation_risk": 40,
	"market_alignment": 55,
	"expected_rr": 2.4,
	"confidence": 80,
	"should_trade": true,
	"reasoning": "clean breakout with market support"
}`

// stubForecastClient is a minimal ForecastClient for adapter tests.
type stubForecastClient struct {
	response  string
	tokensIn  int
	tokensOut int
	err       error
	model     string
}

var _ ports.ForecastClient = (*stubForecastClient)(nil)

func (s *stubForecastClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	return s.response, s.err
}

func (s *stubForecastClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if s.err != nil {
		return "", 0, 0, s.err
	}
	return s.response, s.tokensIn, s.tokensOut, nil
}

func (s *stubForecastClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }
func (s *stubForecastClient) GetModel() string                       { return s.model }

func TestEnsembleAdapterProducesCompliantEvaluation(t *testing.T) {
	client := &stubForecastClient{
		response:  validPayload,
		tokensIn:  150,
		tokensOut: 60,
		model:     "claude-sonnet-4-20250514",
	}
	adapter := NewEnsembleAdapter("anthropic", client, zerolog.Nop())

	eval := adapter.Evaluate(context.Background(), "evaluate AAPL", "fp-123")

	assert.Equal(t, "anthropic", adapter.Name())
	assert.True(t, eval.Compliant)
	require.NotNil(t, eval.Output)
	assert.InDelta(t, 72.5, eval.Output.TradeScore, 1e-9)
	assert.True(t, eval.Output.ShouldTrade)
	assert.Empty(t, eval.Err)
	assert.Equal(t, "claude-sonnet-4-20250514", eval.ProviderVersion)
	assert.Equal(t, "fp-123", eval.PromptFingerprint)
	assert.Equal(t, 210, eval.TokenCount)
	assert.Equal(t, validPayload, eval.RawResponse)
	assert.False(t, eval.Timestamp.IsZero())
}

func TestEnsembleAdapterCapturesTransportFailure(t *testing.T) {
	client := &stubForecastClient{
		err:   errors.New("connection refused"),
		model: "gpt-4o",
	}
	adapter := NewEnsembleAdapter("openai", client, zerolog.Nop())

	eval := adapter.Evaluate(context.Background(), "evaluate AAPL", "fp-123")

	assert.False(t, eval.Compliant)
	assert.Nil(t, eval.Output)
	assert.Contains(t, eval.Err, "connection refused")
	assert.Equal(t, "openai", eval.Provider)
}

func TestEnsembleAdapterCapturesMalformedPayload(t *testing.T) {
	client := &stubForecastClient{
		response: "I think this trade looks good overall.",
		model:    "gemini-2.0-flash",
	}
	adapter := NewEnsembleAdapter("google", client, zerolog.Nop())

	eval := adapter.Evaluate(context.Background(), "evaluate AAPL", "fp-123")

	assert.False(t, eval.Compliant)
	assert.Nil(t, eval.Output)
	assert.NotEmpty(t, eval.Err)
	// Raw response survives for auditing even when parsing failed.
	assert.Equal(t, "I think this trade looks good overall.", eval.RawResponse)
}

func TestEnsembleAdapterRecordsLatency(t *testing.T) {
	mock := NewMockCoreForecaster()
	mock.Response = validPayload
	mock.ResponseDelay = 20 * time.Millisecond
	vendor := registerMockVendor(t, mock)

	client, err := NewClient(vendor, ClientConfig{APIKey: "key"})
	require.NoError(t, err)

	adapter := NewEnsembleAdapter("mock", client, zerolog.Nop())
	eval := adapter.Evaluate(context.Background(), "prompt", "fp")

	assert.True(t, eval.Compliant)
	assert.GreaterOrEqual(t, eval.Latency, 20*time.Millisecond)
}

func TestEnsembleAdapterPassesSystemInstructions(t *testing.T) {
	mock := NewMockCoreForecaster()
	mock.Response = validPayload
	vendor := registerMockVendor(t, mock)

	client, err := NewClient(vendor, ClientConfig{APIKey: "key"})
	require.NoError(t, err)

	adapter := NewEnsembleAdapter("mock", client, zerolog.Nop())
	adapter.Evaluate(context.Background(), "prompt", "fp")

	require.NotNil(t, mock.LastOpts)
	system, ok := mock.LastOpts["system"].(string)
	require.True(t, ok)
	assert.Contains(t, system, "trading analyst")
}
