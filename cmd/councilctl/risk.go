package main

import (
	"github.com/spf13/cobra"

	"github.com/marketbridge/go-council/internal/risk"
)

func newRiskCmd(app *App) *cobra.Command {
	riskCmd := &cobra.Command{
		Use:   "risk",
		Short: "Review risk gate limits",
	}

	riskCmd.AddCommand(&cobra.Command{
		Use:   "limits",
		Short: "Print the configured risk limits and a fresh session snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			limits, err := app.Config.RiskLimits()
			if err != nil {
				return err
			}

			gate := risk.NewGate(limits, app.Logger)
			snapshot := gate.State()

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, snapshot)
			}

			cmd.Printf("state: %s\n", snapshot.State)
			cmd.Printf("account equity:        %s\n", limits.AccountEquity.String())
			cmd.Printf("max position:          %.1f%%\n", limits.MaxPositionPct)
			cmd.Printf("max daily loss:        %.1f%%\n", limits.MaxDailyLossPct)
			cmd.Printf("max concentration:     %.1f%%\n", limits.MaxConcentrationPct)
			cmd.Printf("max consecutive loss:  %d\n", limits.MaxConsecutiveLosses)
			cmd.Printf("volatility scalar:     %.2f\n", limits.VolatilityScalar)
			cmd.Printf("trading window:        %02d:%02d - %02d:%02d\n",
				limits.WindowStartMin/60, limits.WindowStartMin%60,
				limits.WindowEndMin/60, limits.WindowEndMin%60)
			return nil
		},
	})

	return riskCmd
}
