package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "wfrisk"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Walk-forward validation and risk-gate tooling for a systematic trading core",
		Version: version,
		Long: `wfrisk drives the walk-forward validator, daily-PnL risk gate, and
orderflow/regime/sizing stack described in the project's config surface.

Run 'wfrisk validate' to score a strategy over rolling train/test windows,
'wfrisk report' to re-render a persisted run, or 'wfrisk live-demo' to stream
a live bar feed through the toxicity bus, sizer, and risk gate.`,
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newLiveDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
