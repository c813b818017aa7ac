package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketbridge/go-council/infrastructure/storage"
	"github.com/marketbridge/go-council/internal/consensus"
	"github.com/marketbridge/go-council/internal/domain"
)

func newWeightsCmd(app *App) *cobra.Command {
	weightsCmd := &cobra.Command{
		Use:   "weights",
		Short: "Inspect, simulate, and apply ensemble provider weights",
	}

	weightsCmd.AddCommand(newWeightsShowCmd(app))
	weightsCmd.AddCommand(newWeightsSimulateCmd(app))
	weightsCmd.AddCommand(newWeightsApplyCmd(app))

	return weightsCmd
}

func newWeightsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active weight set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storage.NewFileWeightStore(
				app.Config.Storage.WeightsPath, app.providerNames(), app.Logger)
			weights, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, weights)
			}

			cmd.Printf("provenance: %s  sample_size: %d  k: %.2f  min_weight: %.3f\n",
				weights.Provenance, weights.SampleSize, weights.DisagreementK, weights.MinWeight)
			if !weights.UpdatedAt.IsZero() {
				cmd.Printf("updated_at: %s\n", weights.UpdatedAt.Format(time.RFC3339))
			}
			for _, provider := range sortedKeys(weights.Weights) {
				cmd.Printf("  %-12s %.4f\n", provider, weights.Weights[provider])
			}
			return nil
		},
	}
}

func newWeightsSimulateCmd(app *App) *cobra.Command {
	var window int

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Propose recalibrated weights and simulate them over recorded evaluations",
		Long: `Derives a candidate weight set from recorded provider performance and
replays the most recent evaluations under it, reporting score, trade-rate,
and accuracy deltas versus the active set. Nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, records, err := proposeCandidate(cmd.Context(), app, window)
			if err != nil {
				return err
			}

			store := storage.NewFileWeightStore(
				app.Config.Storage.WeightsPath, app.providerNames(), app.Logger)
			calibrator := consensus.NewCalibrator(store, app.Logger)

			report, err := calibrator.Simulate(cmd.Context(), records, candidate)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, struct {
					Candidate domain.EnsembleWeights     `json:"candidate"`
					Report    consensus.SimulationReport `json:"report"`
				}{candidate, report})
			}

			cmd.Printf("candidate weights (over %d evaluations):\n", len(records))
			for _, provider := range sortedKeys(candidate.Weights) {
				cmd.Printf("  %-12s %.4f\n", provider, candidate.Weights[provider])
			}
			cmd.Printf("avg score delta:   %+.2f\n", report.AvgScoreDelta)
			cmd.Printf("trade rate delta:  %+.3f\n", report.TradeRateDelta)
			cmd.Printf("accuracy delta:    %+.3f\n", report.AccuracyDelta)
			cmd.Printf("changed decisions: %d\n", report.ChangedDecisions)
			return nil
		},
	}

	simulateCmd.Flags().IntVar(&window, "window", 100, "number of recent evaluations to replay")
	return simulateCmd
}

func newWeightsApplyCmd(app *App) *cobra.Command {
	var (
		window int
		reason string
	)

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the proposed weight set as the new active weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, records, err := proposeCandidate(cmd.Context(), app, window)
			if err != nil {
				return err
			}

			db, err := storage.OpenSQLite(app.Config.Storage.DatabasePath, app.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			store := storage.NewFileWeightStore(
				app.Config.Storage.WeightsPath, app.providerNames(), app.Logger)
			calibrator := consensus.NewCalibrator(store, app.Logger,
				consensus.WithHistoryLog(db),
				consensus.WithMinSampleSize(app.Config.Consensus.MinSampleSize))

			applied, err := calibrator.Apply(cmd.Context(), candidate, len(records), reason)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, applied)
			}

			cmd.Printf("applied new weights (sample %d, provenance %s):\n",
				applied.SampleSize, applied.Provenance)
			for _, provider := range sortedKeys(applied.Weights) {
				cmd.Printf("  %-12s %.4f\n", provider, applied.Weights[provider])
			}
			return nil
		},
	}

	applyCmd.Flags().IntVar(&window, "window", 100, "number of recent evaluations the proposal is validated against")
	applyCmd.Flags().StringVar(&reason, "reason", "scheduled recalibration", "audit log reason")
	return applyCmd
}

// proposeCandidate derives a candidate weight set from recorded provider
// performance over the evaluation window.
func proposeCandidate(ctx context.Context, app *App, window int) (domain.EnsembleWeights, []domain.EvaluationRecord, error) {
	db, err := storage.OpenSQLite(app.Config.Storage.DatabasePath, app.Logger)
	if err != nil {
		return domain.EnsembleWeights{}, nil, err
	}
	defer db.Close()

	linked, err := db.LinkedEvaluations(ctx, time.Time{})
	if err != nil {
		return domain.EnsembleWeights{}, nil, fmt.Errorf("loading outcome-linked evaluations: %w", err)
	}
	records, err := db.EvaluationWindow(ctx, window)
	if err != nil {
		return domain.EnsembleWeights{}, nil, fmt.Errorf("loading evaluation window: %w", err)
	}

	providers := app.providerNames()
	metrics := consensus.ComputeProviderMetrics(linked, providers)
	proposed := consensus.ProposeWeights(metrics, providers)

	candidate := domain.DefaultWeights(providers)
	candidate.Weights = proposed
	candidate.DisagreementK = app.Config.Consensus.DisagreementK
	candidate.MinWeight = app.Config.Consensus.MinWeight
	return candidate, records, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
