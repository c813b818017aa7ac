// Package testutils provides deterministic test doubles for the
// evaluation core.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

// MockForecastClient implements ports.ForecastClient with deterministic
// responses so pipeline tests never touch the network. By default it
// returns a well-formed trade evaluation payload; failure modes can be
// configured per test.
type MockForecastClient struct {
	mu sync.Mutex

	model     string
	output    domain.ValidatedOutput
	rawOver   string
	err       error
	tokensIn  int
	tokensOut int

	// Tracking.
	calls       int
	lastPrompt  string
	lastOptions map[string]any
}

var _ ports.ForecastClient = (*MockForecastClient)(nil)

// NewMockForecastClient creates a mock returning a moderately bullish
// compliant payload.
func NewMockForecastClient(model string) *MockForecastClient {
	return &MockForecastClient{
		model: model,
		output: domain.ValidatedOutput{
			TradeScore:        70,
			ExtensionRisk:     35,
			ExhaustionRisk:    30,
			FloatRotationRisk: 40,
			MarketAlignment:   50,
			ExpectedRR:        2.0,
			Confidence:        75,
			ShouldTrade:       true,
			Reasoning:         "mock evaluation for testing",
		},
		tokensIn:  120,
		tokensOut: 45,
	}
}

// SetOutput replaces the structured payload the mock returns.
func (m *MockForecastClient) SetOutput(output domain.ValidatedOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = output
}

// SetRawResponse forces an exact raw response string, bypassing the
// structured payload. Useful for malformed-payload tests.
func (m *MockForecastClient) SetRawResponse(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawOver = raw
}

// SetError makes every call fail with err.
func (m *MockForecastClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete returns the configured payload as JSON.
func (m *MockForecastClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := m.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage returns the configured payload plus token counts.
func (m *MockForecastClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if ctx.Err() != nil {
		return "", 0, 0, ctx.Err()
	}
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPrompt = prompt
	m.lastOptions = options

	if m.err != nil {
		return "", 0, 0, m.err
	}
	if m.rawOver != "" {
		return m.rawOver, m.tokensIn, m.tokensOut, nil
	}

	payload, err := json.Marshal(m.output)
	if err != nil {
		return "", 0, 0, err
	}
	return string(payload), m.tokensIn, m.tokensOut, nil
}

// EstimateTokens approximates tokens at four characters each.
func (m *MockForecastClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel returns the mock model identifier.
func (m *MockForecastClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Calls returns how many completion calls were made.
func (m *MockForecastClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt received.
func (m *MockForecastClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}
