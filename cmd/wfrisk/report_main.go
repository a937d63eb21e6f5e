package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/wfrisk/internal/report"
	"github.com/sawpanic/wfrisk/internal/reportstore"
	"github.com/sawpanic/wfrisk/internal/walkforward"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a persisted walk-forward result",
		RunE:  runReport,
	}

	cmd.Flags().String("db-dsn", "", "Postgres DSN to read the result from (required)")
	cmd.Flags().String("run-id", "", "run_id to fetch; defaults to the most recent run")
	cmd.Flags().String("report-md", "report.md", "markdown report output path")
	cmd.Flags().String("report-json", "report.json", "JSON report output path")
	cmd.MarkFlagRequired("db-dsn")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	dbDSN, _ := cmd.Flags().GetString("db-dsn")
	runID, _ := cmd.Flags().GetString("run-id")
	reportMD, _ := cmd.Flags().GetString("report-md")
	reportJSON, _ := cmd.Flags().GetString("report-json")

	store, err := reportstore.Open(dbDSN, 5*time.Second)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}

	ctx := context.Background()

	var result *walkforward.WalkForwardResult
	if runID != "" {
		result, err = store.GetByRunID(ctx, runID)
		if err != nil {
			return fmt.Errorf("fetch run %q: %w", runID, err)
		}
	} else {
		result, err = store.Latest(ctx)
		if err != nil {
			return fmt.Errorf("fetch latest run: %w", err)
		}
	}

	if result == nil {
		return fmt.Errorf("no matching walk-forward run found")
	}

	if err := report.WriteFiles(*result, reportMD, reportJSON); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("markdown", reportMD).Str("json", reportJSON).Msg("report re-rendered")
	return nil
}
