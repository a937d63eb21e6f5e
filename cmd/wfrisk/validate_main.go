package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/wfrisk/internal/replay"
	"github.com/sawpanic/wfrisk/internal/report"
	"github.com/sawpanic/wfrisk/internal/reportstore"
	"github.com/sawpanic/wfrisk/internal/telemetry"
	"github.com/sawpanic/wfrisk/internal/walkforward"
	"github.com/sawpanic/wfrisk/internal/wfconfig"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the walk-forward validator over a strategy's bar history",
		RunE:  runValidate,
	}

	cmd.Flags().String("code", "default", "strategy identifier recorded with the result")
	cmd.Flags().String("bars", "", "path to a JSON-lines bar history file (required)")
	cmd.Flags().String("report-md", "report.md", "markdown report output path")
	cmd.Flags().String("report-json", "report.json", "JSON report output path")
	cmd.Flags().String("db-dsn", "", "optional Postgres DSN to persist the result")
	cmd.MarkFlagRequired("bars")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	code, _ := cmd.Flags().GetString("code")
	barsPath, _ := cmd.Flags().GetString("bars")
	reportMD, _ := cmd.Flags().GetString("report-md")
	reportJSON, _ := cmd.Flags().GetString("report-json")
	dbDSN, _ := cmd.Flags().GetString("db-dsn")

	cfg, err := wfconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	validator, err := walkforward.New(cfg.WalkForward)
	if err != nil {
		return fmt.Errorf("construct validator: %w", err)
	}

	evaluator := replay.New(barsPath, replay.Config{
		Orderflow: cfg.Orderflow,
		Regime:    cfg.Regime,
		Sizing:    cfg.Giller,
	})

	log.Info().Str("code", code).Str("bars", barsPath).Msg("starting walk-forward validation")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	started := time.Now()
	result, err := validator.Validate(ctx, code, evaluator)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	reg := telemetry.NewRegistry()
	verdict := "fail"
	if result.Passed {
		verdict = "pass"
	}
	reg.ObserveValidatorRun(verdict, result.RobustnessScore, time.Since(started).Seconds())

	if err := report.WriteFiles(result, reportMD, reportJSON); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("markdown", reportMD).Str("json", reportJSON).Msg("report written")

	if dbDSN != "" {
		store, err := reportstore.Open(dbDSN, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open report store: %w", err)
		}
		runID := uuid.NewString()
		if err := store.Save(ctx, runID, result); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
		log.Info().Str("run_id", runID).Msg("result persisted")
	}

	if !result.Passed {
		return fmt.Errorf("validation failed: %s", result.Diagnostic)
	}
	return nil
}
