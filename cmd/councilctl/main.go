// Command councilctl is the operator CLI for the ensemble evaluation
// core: running evaluations, inspecting and recalibrating provider
// weights, producing drift reports, and reviewing risk limits.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/marketbridge/go-council/internal/config"
	"github.com/marketbridge/go-council/internal/logging"
)

// Version is the CLI version string.
const Version = "0.1.0"

// App carries shared dependencies between commands.
type App struct {
	Config config.Config
	Logger zerolog.Logger
}

// providerNames strips model suffixes from the configured provider specs,
// leaving the names that weighting and drift key on.
func (a *App) providerNames() []string {
	names := make([]string, 0, len(a.Config.Providers))
	for _, spec := range a.Config.Providers {
		name, _, _ := strings.Cut(spec, "/")
		names = append(names, name)
	}
	return names
}

func newRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:     "councilctl",
		Short:   "Operate the ensemble trade evaluation core",
		Version: Version,
		Long: `councilctl operates the ensemble evaluation core: one-off trade
evaluations against the configured providers, provider weight calibration,
drift reports over recorded outcomes, and risk limit review.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app.Config = cfg

			logCfg := cfg.Logging
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
			}
			// Operator output goes to stdout; keep log noise on file only.
			logCfg.Console = false
			app.Logger = logging.NewLoggerWithConfig(logCfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newEvaluateCmd(app))
	rootCmd.AddCommand(newWeightsCmd(app))
	rootCmd.AddCommand(newDriftCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
