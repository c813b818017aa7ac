package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

// DefaultProviderTimeout bounds each provider dispatch when the
// configuration does not specify one.
const DefaultProviderTimeout = 30 * time.Second

// Config holds the runner's tunable parameters.
type Config struct {
	// ProviderTimeout is the independent time budget for each provider
	// dispatch. A slow provider exhausts only its own budget; siblings
	// keep running.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
}

// Request describes one candidate trade to evaluate. Entry and Stop are
// optional; the prompt renders them as "not set" when absent.
type Request struct {
	Symbol    string
	Direction string
	Entry     *float64
	Stop      *float64
	Features  domain.FeatureVector
}

// Result is the complete output of one ensemble evaluation: the exact
// prompt text sent to every provider, its fingerprint, and one evaluation
// per registered provider.
type Result struct {
	EvaluationID string
	Prompt       string
	Fingerprint  string
	Evaluations  []domain.ProviderEvaluation
}

// Runner fans one evaluation prompt out to every registered provider
// adapter concurrently. It is stateless apart from its adapter list and is
// safe for concurrent use.
type Runner struct {
	adapters []ports.ProviderAdapter
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewRunner creates a Runner over the given adapters. Adapter names must be
// unique; weighting and drift attribution key on them.
func NewRunner(adapters []ports.ProviderAdapter, cfg Config, logger zerolog.Logger) (*Runner, error) {
	if len(adapters) == 0 {
		return nil, domain.ErrNoProviders
	}

	seen := make(map[string]struct{}, len(adapters))
	for _, a := range adapters {
		if a.Name() == "" {
			return nil, fmt.Errorf("%w: adapter with empty name", domain.ErrInvalidConfiguration)
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate adapter name %q", domain.ErrInvalidConfiguration, a.Name())
		}
		seen[a.Name()] = struct{}{}
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	return &Runner{
		adapters: adapters,
		timeout:  timeout,
		logger:   logger.With().Str("component", "ensemble_runner").Logger(),
	}, nil
}

// Providers returns the registered provider names in dispatch order.
func (r *Runner) Providers() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// Evaluate builds exactly one prompt from the request, dispatches it
// unchanged to every registered provider concurrently, and waits for all
// dispatches to settle. The result always contains one evaluation per
// registered provider, even on total failure; individual provider errors
// are captured on their evaluations and never fail the batch.
func (r *Runner) Evaluate(ctx context.Context, req Request) (Result, error) {
	if req.Symbol == "" {
		return Result{}, fmt.Errorf("%w: symbol is required", domain.ErrInvalidConfiguration)
	}
	if req.Direction != "long" && req.Direction != "short" {
		return Result{}, fmt.Errorf("%w: direction must be long or short, got %q",
			domain.ErrInvalidConfiguration, req.Direction)
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return Result{}, err
	}
	fingerprint := Fingerprint(SystemInstructions, prompt)

	evals := make([]domain.ProviderEvaluation, len(r.adapters))

	// All-settled join: every goroutine returns nil so a failed provider
	// never cancels its siblings through the group context.
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range r.adapters {
		g.Go(func() error {
			evals[i] = r.dispatch(gctx, adapter, prompt, fingerprint)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Unreachable: goroutines never return errors.
		return Result{}, err
	}

	for _, ev := range evals {
		if !ev.Compliant {
			r.logger.Warn().
				Str("provider", ev.Provider).
				Str("error", ev.Err).
				Dur("latency", ev.Latency).
				Msg("provider evaluation non-compliant")
		}
	}

	return Result{
		EvaluationID: uuid.NewString(),
		Prompt:       prompt,
		Fingerprint:  fingerprint,
		Evaluations:  evals,
	}, nil
}

// dispatch runs one provider call under its own timeout. Cancellation of
// this branch never touches siblings. If the adapter fails to honor its
// context, the dispatch still settles here with a timeout evaluation; the
// stray goroutine is abandoned to finish on its own.
func (r *Runner) dispatch(
	ctx context.Context,
	adapter ports.ProviderAdapter,
	prompt, fingerprint string,
) domain.ProviderEvaluation {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.ProviderEvaluation, 1)
	go func() {
		done <- adapter.Evaluate(cctx, prompt, fingerprint)
	}()

	select {
	case ev := <-done:
		return ev
	case <-cctx.Done():
		return domain.ProviderEvaluation{
			Provider:          adapter.Name(),
			Compliant:         false,
			Err:               fmt.Sprintf("dispatch timed out after %s: %v", r.timeout, cctx.Err()),
			Latency:           time.Since(start),
			PromptFingerprint: fingerprint,
			Timestamp:         time.Now().UTC(),
		}
	}
}
