package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marketbridge/go-council/infrastructure/storage"
	"github.com/marketbridge/go-council/internal/drift"
)

func newDriftCmd(app *App) *cobra.Command {
	var since time.Duration

	driftCmd := &cobra.Command{
		Use:   "drift",
		Short: "Compute a provider drift report over recorded outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.OpenSQLite(app.Config.Storage.DatabasePath, app.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			detector := drift.NewDetector(db, app.Config.Drift, app.Logger)

			var cutoff time.Time
			if since > 0 {
				cutoff = time.Now().Add(-since)
			}
			report, err := detector.Report(cmd.Context(), cutoff)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, report)
			}

			cmd.Printf("overall accuracy: %.3f  regime shift: %v\n",
				report.OverallAccuracy, report.RegimeShiftDetected)
			for _, row := range report.Providers {
				cmd.Printf("  %-12s n=%-4d last10=%.2f last50=%.2f calib=%.3f brier=%.3f shift=%v\n",
					row.Provider, row.Evaluations,
					row.Rolling.Last10, row.Rolling.Last50,
					row.CalibrationError, row.Brier, row.RegimeShift)
			}
			cmd.Println(report.Recommendation)
			return nil
		},
	}

	driftCmd.Flags().DurationVar(&since, "since", 0, "only include evaluations newer than this age (0 = all)")
	return driftCmd
}
