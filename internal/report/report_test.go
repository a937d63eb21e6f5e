package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/wfrisk/internal/walkforward"
)

func sampleResult() walkforward.WalkForwardResult {
	return walkforward.WalkForwardResult{
		Config: walkforward.Config{
			MinRobustnessScore:      60,
			MinProfitableWindowsPct: 0.6,
			MaxDrawdownThreshold:    0.2,
		},
		Windows: []walkforward.WindowResult{
			{
				Window: walkforward.Window{ID: 1, TrainStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
				Train:  walkforward.WindowMetrics{Sharpe: 1.1},
				Test:   walkforward.WindowMetrics{Sharpe: 0.9, TotalReturn: 0.05, MaxDrawdown: 0.1},
			},
		},
		RobustnessScore:      72.5,
		Passed:               true,
		ProfitableWindowsPct: 0.8,
		AvgTestSharpe:        0.9,
		AvgTestReturn:        0.05,
		WorstDrawdown:        0.1,
		DeflatedSharpe:       0.7,
		PBO:                  0.3,
		NumTrials:            5,
		WallTimeS:            1.25,
	}
}

func TestRenderProducesMarkdownAndJSON(t *testing.T) {
	result := sampleResult()
	markdown, jsonBytes, err := Render(result)
	require.NoError(t, err)

	assert.Contains(t, markdown, "PASS")
	assert.Contains(t, markdown, "| 1 | 1.100 | 0.900 | 0.050 | 0.100 |")

	var decoded walkforward.WalkForwardResult
	require.NoError(t, json.Unmarshal(jsonBytes, &decoded))
	assert.Equal(t, result.RobustnessScore, decoded.RobustnessScore)
}

func TestRenderMarksFailedVerdict(t *testing.T) {
	result := sampleResult()
	result.Passed = false
	result.Diagnostic = "worst_drawdown exceeded threshold"

	markdown, _, err := Render(result)
	require.NoError(t, err)
	assert.Contains(t, markdown, "FAIL")
	assert.Contains(t, markdown, "worst_drawdown exceeded threshold")
}

func TestWriteFilesWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	mdPath := filepath.Join(dir, "report.md")
	jsonPath := filepath.Join(dir, "report.json")

	require.NoError(t, WriteFiles(sampleResult(), mdPath, jsonPath))

	mdBytes, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(mdBytes), "Walk-Forward Validation Report")

	jsonFileBytes, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded walkforward.WalkForwardResult
	require.NoError(t, json.Unmarshal(jsonFileBytes, &decoded))
	assert.Equal(t, 72.5, decoded.RobustnessScore)
}
