package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ensemble"
	"github.com/marketbridge/go-council/internal/ports"
)

// EnsembleAdapter turns a transport-level ForecastClient into the
// never-failing ProviderAdapter the ensemble runner dispatches to.
// Transport errors, timeouts, and payload validation failures are all
// folded into the returned evaluation rather than surfaced as Go errors,
// so one registered provider always yields exactly one row.
type EnsembleAdapter struct {
	name   string
	client ports.ForecastClient
	logger zerolog.Logger
}

var _ ports.ProviderAdapter = (*EnsembleAdapter)(nil)

// NewEnsembleAdapter wraps client under the given provider name.
func NewEnsembleAdapter(name string, client ports.ForecastClient, logger zerolog.Logger) *EnsembleAdapter {
	return &EnsembleAdapter{
		name:   name,
		client: client,
		logger: logger.With().Str("provider", name).Logger(),
	}
}

// Name returns the provider identifier used for weighting and drift
// attribution.
func (a *EnsembleAdapter) Name() string { return a.name }

// Evaluate sends the prompt and returns exactly one evaluation. The
// context carries the per-provider timeout set by the runner.
func (a *EnsembleAdapter) Evaluate(ctx context.Context, prompt, fingerprint string) domain.ProviderEvaluation {
	start := time.Now()
	eval := domain.ProviderEvaluation{
		Provider:          a.name,
		ProviderVersion:   a.client.GetModel(),
		PromptFingerprint: fingerprint,
		Timestamp:         start,
	}

	opts := map[string]any{"system": ensemble.SystemInstructions}
	response, tokensIn, tokensOut, err := a.client.CompleteWithUsage(ctx, prompt, opts)
	eval.Latency = time.Since(start)
	eval.RawResponse = response
	eval.TokenCount = tokensIn + tokensOut

	if err != nil {
		eval.Err = err.Error()
		a.logger.Warn().Err(err).Dur("latency", eval.Latency).Msg("provider call failed")
		return eval
	}

	output, parseErr := ensemble.ParseOutput(a.name, response)
	if parseErr != nil {
		eval.Err = parseErr.Error()
		a.logger.Warn().Err(parseErr).Msg("provider response rejected")
		return eval
	}

	eval.Output = output
	eval.Compliant = true
	a.logger.Debug().
		Dur("latency", eval.Latency).
		Int("tokens", eval.TokenCount).
		Float64("trade_score", output.TradeScore).
		Msg("provider evaluation complete")
	return eval
}
