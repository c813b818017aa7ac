package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMiddleware tags each request so tests can observe the order
// middleware layers execute in.
func recordingMiddleware(tag string, order *[]string) Middleware {
	return func(next CoreForecaster) CoreForecaster {
		return &recordingForecaster{next: next, tag: tag, order: order}
	}
}

type recordingForecaster struct {
	next  CoreForecaster
	tag   string
	order *[]string
}

func (r *recordingForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	*r.order = append(*r.order, r.tag)
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *recordingForecaster) GetModel() string  { return r.next.GetModel() }
func (r *recordingForecaster) SetModel(m string) { r.next.SetModel(m) }

func registerMockVendor(t *testing.T, mock *MockCoreForecaster) string {
	t.Helper()
	const vendor = "mockvendor"
	RegisterProviderFactory(vendor, func(config ClientConfig) (CoreForecaster, error) {
		if config.Model != "" {
			mock.SetModel(config.Model)
		}
		return mock, nil
	})
	return vendor
}

func TestNewClientRejectsEmptyAPIKey(t *testing.T) {
	_, err := NewClient("anthropic", ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestNewClientRejectsUnknownVendor(t *testing.T) {
	_, err := NewClient("abacus", ClientConfig{APIKey: "key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown forecast vendor")
}

func TestNewClientRegistersBuiltinVendors(t *testing.T) {
	for _, vendor := range []string{"anthropic", "openai", "google"} {
		_, ok := providerFactories[vendor]
		assert.True(t, ok, "vendor %s should self-register", vendor)
	}
}

func TestClientAppliesMiddlewareFirstEntryOutermost(t *testing.T) {
	mock := NewMockCoreForecaster()
	vendor := registerMockVendor(t, mock)

	var order []string
	client, err := NewClient(vendor, ClientConfig{
		APIKey: "key",
		Middleware: []Middleware{
			recordingMiddleware("outer", &order),
			recordingMiddleware("inner", &order),
		},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestClientCompleteWithUsageReturnsTokenCounts(t *testing.T) {
	mock := NewMockCoreForecaster()
	mock.Response = "forecast"
	mock.TokensIn = 42
	mock.TokensOut = 7
	vendor := registerMockVendor(t, mock)

	client, err := NewClient(vendor, ClientConfig{APIKey: "key", Model: "mock-1"})
	require.NoError(t, err)

	response, tokensIn, tokensOut, err := client.CompleteWithUsage(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "forecast", response)
	assert.Equal(t, 42, tokensIn)
	assert.Equal(t, 7, tokensOut)
	assert.Equal(t, "mock-1", client.GetModel())
	assert.Equal(t, "prompt", mock.LastPrompt)
}

func TestClientEstimateTokensUsesDefaultEstimator(t *testing.T) {
	mock := NewMockCoreForecaster()
	vendor := registerMockVendor(t, mock)

	client, err := NewClient(vendor, ClientConfig{APIKey: "key"})
	require.NoError(t, err)

	// 40 characters at the default 4 chars/token.
	count, err := client.EstimateTokens("0123456789012345678901234567890123456789")
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestTimeoutMiddlewareCancelsSlowRequests(t *testing.T) {
	mock := NewMockCoreForecaster()
	mock.ResponseDelay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)
	_, _, _, err := wrapped.DoRequest(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
