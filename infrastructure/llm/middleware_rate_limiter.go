package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedForecaster paces requests with a token bucket so the client
// stays under the vendor's rate limits.
type rateLimitedForecaster struct {
	next    CoreForecaster
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a sustained requests-per-second limit with
// a burst allowance. The limiter is shared by every client the middleware
// wraps, so one chain means one budget.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreForecaster) CoreForecaster {
		return &rateLimitedForecaster{next: next, limiter: limiter}
	}
}

func (r *rateLimitedForecaster) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimitedForecaster) GetModel() string  { return r.next.GetModel() }
func (r *rateLimitedForecaster) SetModel(m string) { r.next.SetModel(m) }
