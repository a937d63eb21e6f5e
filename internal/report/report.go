// Package report renders a WalkForwardResult (C11) as Markdown and JSON,
// the only two surfaces spec.md §4.11 asks for.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	wio "github.com/sawpanic/wfrisk/internal/io"
	"github.com/sawpanic/wfrisk/internal/walkforward"
)

// Render returns the Markdown report and the raw JSON serialization of
// result. It is a pure function of result: no I/O, no clock.
func Render(result walkforward.WalkForwardResult) (markdown string, jsonBytes []byte, err error) {
	jsonBytes, err = json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("report: marshal result: %w", err)
	}
	return renderMarkdown(result), jsonBytes, nil
}

// WriteFiles writes the rendered Markdown and JSON to reportMD and
// reportJSON respectively, both atomically (temp file + rename).
func WriteFiles(result walkforward.WalkForwardResult, reportMD, reportJSON string) error {
	markdown, _, err := Render(result)
	if err != nil {
		return err
	}
	if err := wio.WriteFileAtomic(reportMD, []byte(markdown)); err != nil {
		return fmt.Errorf("report: write markdown: %w", err)
	}
	if err := wio.WriteJSONAtomic(reportJSON, result); err != nil {
		return fmt.Errorf("report: write json: %w", err)
	}
	return nil
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func renderMarkdown(r walkforward.WalkForwardResult) string {
	var b strings.Builder

	b.WriteString("# Walk-Forward Validation Report\n\n")
	b.WriteString(fmt.Sprintf("**Verdict**: %s\n", verdict(r.Passed)))
	if r.Diagnostic != "" {
		b.WriteString(fmt.Sprintf("**Diagnostic**: %s\n", r.Diagnostic))
	}
	b.WriteString(fmt.Sprintf("**Windows evaluated**: %d\n\n", len(r.Windows)))

	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- **Robustness score**: %.2f / 100 (min %.2f)\n", r.RobustnessScore, r.Config.MinRobustnessScore))
	b.WriteString(fmt.Sprintf("- **Profitable windows**: %.1f%% (min %.1f%%)\n", r.ProfitableWindowsPct*100, r.Config.MinProfitableWindowsPct*100))
	b.WriteString(fmt.Sprintf("- **Worst drawdown**: %.2f%% (max %.2f%%)\n", r.WorstDrawdown*100, r.Config.MaxDrawdownThreshold*100))
	b.WriteString(fmt.Sprintf("- **Average test Sharpe**: %.3f\n", r.AvgTestSharpe))
	b.WriteString(fmt.Sprintf("- **Average test return**: %.3f\n", r.AvgTestReturn))
	b.WriteString(fmt.Sprintf("- **Deflated Sharpe (N=%d)**: %.3f\n", r.NumTrials, r.DeflatedSharpe))
	b.WriteString(fmt.Sprintf("- **Probability of backtest overfitting**: %.3f", r.PBO))
	if r.PBO > 0.5 {
		b.WriteString(" (likely overfit)")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("- **Wall time**: %.2fs\n\n", r.WallTimeS))

	b.WriteString("## Windows\n\n")
	b.WriteString("| window | train_sharpe | test_sharpe | test_return | test_dd |\n")
	b.WriteString("|-------:|-------------:|------------:|------------:|--------:|\n")
	for _, w := range r.Windows {
		b.WriteString(fmt.Sprintf("| %d | %.3f | %.3f | %.3f | %.3f |\n",
			w.Window.ID, w.Train.Sharpe, w.Test.Sharpe, w.Test.TotalReturn, w.Test.MaxDrawdown))
	}
	b.WriteString("\n")

	return b.String()
}
