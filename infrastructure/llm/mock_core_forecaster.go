package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreForecaster is a configurable CoreForecaster for middleware
// tests. It gives precise control over responses, timing, and error
// sequencing.
type MockCoreForecaster struct {
	mu sync.Mutex

	// Response configuration.
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	// Tracking.
	CallCount      int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreForecaster returns a mock with default successful behavior.
func NewMockCoreForecaster() *MockCoreForecaster {
	return &MockCoreForecaster{
		Response:       "test response",
		TokensIn:       10,
		TokensOut:      20,
		Model:          "test-model",
		CallTimestamps: make([]time.Time, 0),
	}
}

// DoRequest implements CoreForecaster with the configured behavior.
func (m *MockCoreForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())

	if m.ResponseDelay > 0 {
		m.mu.Unlock()
		select {
		case <-time.After(m.ResponseDelay):
			m.mu.Lock()
		case <-ctx.Done():
			m.mu.Lock()
			return "", 0, 0, ctx.Err()
		}
	}

	if m.FailUntilAttempt > 0 && m.CallCount <= m.FailUntilAttempt {
		if m.Error != nil {
			return "", 0, 0, m.Error
		}
		return "", 0, 0, &mockFailure{message: "simulated failure"}
	}

	if m.Error != nil {
		return "", 0, 0, m.Error
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel returns the configured model name.
func (m *MockCoreForecaster) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreForecaster) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns how many times DoRequest was called.
func (m *MockCoreForecaster) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

type mockFailure struct {
	message string
}

func (e *mockFailure) Error() string { return e.message }
