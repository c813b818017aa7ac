// Package ports defines the interfaces that form the contract between the
// evaluation core and the infrastructure layer: forecast provider clients,
// the per-vendor adapter contract, storage read handles, and observability
// collectors. These interfaces enable dependency inversion and keep the core
// testable without network or disk.
package ports

import (
	"context"

	"github.com/marketbridge/go-council/internal/domain"
)

// ForecastClient is the transport-level interface to one forecasting
// provider. Implementations handle provider-specific details like
// authentication, request formatting, and response extraction.
type ForecastClient interface {
	// Complete sends a prompt to the provider and returns the raw
	// response text. The options map carries provider-specific settings
	// such as temperature, max_tokens, or a system prompt.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage behaves like Complete but also returns input and
	// output token counts for cost accounting.
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// EstimateTokens calculates the approximate token count for a text,
	// used when the provider does not report usage.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier this client is configured for.
	GetModel() string
}

// ProviderAdapter is the per-vendor dispatch contract used by the ensemble
// runner. Evaluate must never fail: transport errors, timeouts, parse
// failures, and payload validation failures are all captured into the
// returned evaluation's Err field with Compliant set to false.
//
// The runner owns the cancellation boundary; the context passed in already
// carries the per-provider timeout.
type ProviderAdapter interface {
	// Name returns the provider identifier used for weighting and drift
	// attribution. Names must be unique within a runner.
	Name() string

	// Evaluate sends the prompt to the provider and returns exactly one
	// ProviderEvaluation, compliant or not.
	Evaluate(ctx context.Context, prompt, fingerprint string) domain.ProviderEvaluation
}
