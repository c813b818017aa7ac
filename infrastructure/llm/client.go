// Package llm adapts hosted language-model APIs into forecast providers
// for the ensemble runner. Each vendor implementation sits behind the
// CoreForecaster interface so cross-cutting concerns (timeouts, rate
// limiting, circuit breaking, metrics, tracing) compose as middleware
// around any provider without touching vendor code.
//
// Basic usage:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-sonnet-4-20250514",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.MetricsMiddleware("anthropic", collector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/marketbridge/go-council/internal/ports"
)

// CoreForecaster is the minimal surface a vendor implementation must
// provide. Middleware wraps this interface, so every layer sees the same
// shape regardless of how deep the chain goes.
type CoreForecaster interface {
	// DoRequest sends a prompt to the vendor and returns the response
	// text plus input/output token counts. The opts map carries
	// vendor-tunable parameters like temperature and max_tokens.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model name.
	GetModel() string

	// SetModel switches the model for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made, for
// budgeting and rate limiting when exact counts are unavailable.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// Middleware wraps a CoreForecaster with additional behavior.
type Middleware func(CoreForecaster) CoreForecaster

// ClientConfig configures one forecast provider client.
type ClientConfig struct {
	// APIKey authenticates with the vendor.
	APIKey string

	// Model names the vendor model; empty selects the vendor default.
	Model string

	// BaseURL overrides the vendor endpoint, mostly for testing.
	BaseURL string

	// Timeout bounds individual vendor requests at the HTTP layer.
	// Zero means no client-level timeout.
	Timeout time.Duration

	// TokenEstimator overrides the default character-based estimator.
	TokenEstimator TokenEstimator

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// Client wraps a middleware-composed CoreForecaster behind the
// ports.ForecastClient interface.
type Client struct {
	core      CoreForecaster
	estimator TokenEstimator
}

var _ ports.ForecastClient = (*Client)(nil)

// NewClient builds a forecast client for the named vendor with its
// middleware chain assembled.
func NewClient(vendor string, config ClientConfig) (ports.ForecastClient, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[vendor]
	if !ok {
		return nil, fmt.Errorf("unknown forecast vendor: %s", vendor)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", vendor, err)
	}

	// Reverse order so the first configured middleware is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCharacterBasedTokenEstimator(0)
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Complete sends a prompt and returns only the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and returns the response text together
// with input and output token counts.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens approximates the token count of text before sending it.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory constructs a vendor CoreForecaster from configuration.
type ProviderFactory func(ClientConfig) (CoreForecaster, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory adds a vendor to the factory registry. Vendors
// self-register from their init functions.
func RegisterProviderFactory(vendor string, factory ProviderFactory) {
	providerFactories[vendor] = factory
}
