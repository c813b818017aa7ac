package llm

import (
	"context"
	"errors"
	"time"

	"github.com/marketbridge/go-council/internal/ports"
)

// metricsForecaster records latency, request counts, and token usage for
// every vendor call.
type metricsForecaster struct {
	next      CoreForecaster
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware instruments vendor calls with the given collector.
// The provider label is passed explicitly rather than guessed from the
// model name, since model naming conventions drift.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreForecaster) CoreForecaster {
		return &metricsForecaster{next: next, provider: provider, collector: collector}
	}
}

func (m *metricsForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   "success",
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrCircuitOpen):
			labels["status"] = "circuit_open"
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			labels["status"] = "timeout"
		default:
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("forecast_request_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("forecast_requests_total", 1, labels)
		if err == nil {
			labels["token_type"] = "input"
			m.collector.RecordCounter("forecast_tokens_total", float64(tokensIn), labels)
			labels["token_type"] = "output"
			m.collector.RecordCounter("forecast_tokens_total", float64(tokensOut), labels)
		}
	}
	return response, tokensIn, tokensOut, err
}

func (m *metricsForecaster) GetModel() string  { return m.next.GetModel() }
func (m *metricsForecaster) SetModel(s string) { m.next.SetModel(s) }
