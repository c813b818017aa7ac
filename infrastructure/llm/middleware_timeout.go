package llm

import (
	"context"
	"time"
)

// timeoutForecaster bounds each vendor request with its own deadline.
type timeoutForecaster struct {
	next    CoreForecaster
	timeout time.Duration
}

// TimeoutMiddleware enforces a per-request deadline. The ensemble runner
// already carries a dispatch timeout; this layer exists for callers that
// use a client outside the fan-out path.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreForecaster) CoreForecaster {
		return &timeoutForecaster{next: next, timeout: timeout}
	}
}

func (t *timeoutForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

func (t *timeoutForecaster) GetModel() string  { return t.next.GetModel() }
func (t *timeoutForecaster) SetModel(m string) { t.next.SetModel(m) }
