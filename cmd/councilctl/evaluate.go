package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/marketbridge/go-council/infrastructure/llm"
	"github.com/marketbridge/go-council/infrastructure/middleware"
	"github.com/marketbridge/go-council/infrastructure/storage"
	"github.com/marketbridge/go-council/internal/config"
	"github.com/marketbridge/go-council/internal/consensus"
	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ensemble"
	"github.com/marketbridge/go-council/internal/ports"
)

// evaluateOutput is the full result of one evaluation run, printed as a
// single document under --json.
type evaluateOutput struct {
	EvaluationID string                      `json:"evaluation_id"`
	Fingerprint  string                      `json:"prompt_fingerprint"`
	Evaluations  []domain.ProviderEvaluation `json:"evaluations"`
	Consensus    domain.ConsensusResult      `json:"consensus"`
}

func newEvaluateCmd(app *App) *cobra.Command {
	var (
		direction string
		entry     float64
		stop      float64
		noRecord  bool
	)

	evaluateCmd := &cobra.Command{
		Use:   "evaluate <features.json>",
		Short: "Fan one candidate trade out to every configured provider and score the consensus",
		Long: `Reads a feature vector snapshot from a JSON file, dispatches it to every
configured provider concurrently, scores the weighted consensus under the
active weight set, and records the evaluation for later outcome linking.
Provider API keys come from the environment (ANTHROPIC_API_KEY and friends).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			features, err := loadFeatures(args[0])
			if err != nil {
				return err
			}

			req := ensemble.Request{
				Symbol:    features.Symbol,
				Direction: direction,
				Features:  features,
			}
			if cmd.Flags().Changed("entry") {
				req.Entry = &entry
			}
			if cmd.Flags().Changed("stop") {
				req.Stop = &stop
			}

			collector := middleware.NewPrometheusMetrics(nil)
			registry := buildRegistry(app, collector)
			adapters, err := registry.BuildAdapters(app.Config.Providers, clientRetryConfig(app.Config.Ensemble.Retry))
			if err != nil {
				return err
			}

			runner, err := ensemble.NewRunner(adapters, app.Config.EnsembleRunnerConfig(), app.Logger)
			if err != nil {
				return err
			}

			weightStore := storage.NewFileWeightStore(
				app.Config.Storage.WeightsPath, app.providerNames(), app.Logger)
			holder, err := storage.NewWeightHolder(ctx, weightStore, app.Logger)
			if err != nil {
				return err
			}

			result, err := runner.Evaluate(ctx, req)
			if err != nil {
				return err
			}
			verdict := consensus.Score(result.Evaluations, holder.Current())

			if !noRecord {
				db, err := storage.OpenSQLite(app.Config.Storage.DatabasePath, app.Logger)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.RecordEvaluation(ctx, result.EvaluationID,
					req.Symbol, req.Direction, time.Now().UTC(), result.Evaluations); err != nil {
					return fmt.Errorf("recording evaluation: %w", err)
				}
			}

			out := evaluateOutput{
				EvaluationID: result.EvaluationID,
				Fingerprint:  result.Fingerprint,
				Evaluations:  result.Evaluations,
				Consensus:    verdict,
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, out)
			}
			printEvaluation(cmd, req, out)
			return nil
		},
	}

	evaluateCmd.Flags().StringVar(&direction, "direction", "long", "trade direction (long or short)")
	evaluateCmd.Flags().Float64Var(&entry, "entry", 0, "proposed entry price")
	evaluateCmd.Flags().Float64Var(&stop, "stop", 0, "proposed stop price")
	evaluateCmd.Flags().BoolVar(&noRecord, "no-record", false, "skip persisting the evaluation")
	return evaluateCmd
}

// buildRegistry wires the standard vendor set with per-provider metrics,
// tracing, and rate limiting. Each provider gets its own limiter so one
// throttled vendor never starves the others.
func buildRegistry(app *App, collector ports.MetricsCollector) *llm.Registry {
	providers := make(map[string]llm.ProviderConfig, len(llm.DefaultProviders))
	for name, pc := range llm.DefaultProviders {
		chain := []llm.Middleware{
			llm.MetricsMiddleware(name, collector),
			llm.TracingMiddleware(name),
		}
		if rps := app.Config.Ensemble.RateLimitPerSecond; rps > 0 {
			chain = append(chain,
				llm.RateLimitMiddleware(rate.Limit(rps), app.Config.Ensemble.RateLimitBurst))
		}
		pc.Middleware = chain
		providers[name] = pc
	}
	return llm.NewRegistry(llm.RegistryConfig{Providers: providers}, app.Logger)
}

// clientRetryConfig converts the configured retry section into the
// transport wrapper's config type.
func clientRetryConfig(cfg config.RetryConfig) llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts:   cfg.MaxAttempts,
		BaseDelay:     time.Duration(cfg.InitialWaitMS) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.MaxWaitMS) * time.Millisecond,
		JitterPercent: llm.DefaultJitterPercent,
	}
}

func loadFeatures(path string) (domain.FeatureVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("reading feature file: %w", err)
	}
	var features domain.FeatureVector
	if err := json.Unmarshal(data, &features); err != nil {
		return domain.FeatureVector{}, fmt.Errorf("parsing feature file %s: %w", path, err)
	}
	if features.Symbol == "" {
		return domain.FeatureVector{}, fmt.Errorf("feature file %s: symbol is required", path)
	}
	return features, nil
}

func printEvaluation(cmd *cobra.Command, req ensemble.Request, out evaluateOutput) {
	cmd.Printf("evaluation %s  %s %s\n", out.EvaluationID, req.Symbol, req.Direction)
	for _, ev := range out.Evaluations {
		if ev.Compliant {
			cmd.Printf("  %-12s score %5.1f  trade %-5v  conf %5.1f  %s\n",
				ev.Provider, ev.Output.TradeScore, ev.Output.ShouldTrade,
				ev.Output.Confidence, ev.Latency.Round(time.Millisecond))
			continue
		}
		cmd.Printf("  %-12s non-compliant: %s\n", ev.Provider, ev.Err)
	}
	c := out.Consensus
	cmd.Printf("consensus: score %.1f  trade %v  confidence %.1f  agreement %s\n",
		c.TradeScore, c.ShouldTrade, c.Confidence, c.Agreement)
	cmd.Printf("disagreement %.1f  penalty %.1f  compliant %d  weights %s\n",
		c.Disagreement, c.Penalty, c.CompliantProviders, c.WeightProvenance)
}
