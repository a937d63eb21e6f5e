package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/wfrisk/internal/classify"
	"github.com/sawpanic/wfrisk/internal/orderflow"
	"github.com/sawpanic/wfrisk/internal/regimecls"
	"github.com/sawpanic/wfrisk/internal/sizing"
	"github.com/sawpanic/wfrisk/internal/vpin"
)

func baseReplayConfig() Config {
	return Config{
		Orderflow: orderflow.Config{
			EnableVPIN: true,
			VPIN: vpin.Config{
				BucketSize:         50,
				NBuckets:           10,
				ClassificationMeth: classify.TickRule,
			},
			EnableHawkes: false,
		},
		Regime: regimecls.Config{
			HMMStates:      2,
			GMMComponents:  3,
			MinFitObs:      20,
			RefitInterval:  20,
			VolWindow:      5,
			RegimeLabelMap: regimecls.DefaultRegimeLabelMap(2),
		},
		Sizing: sizing.Config{BaseSize: 1, Exponent: 0.5},
	}
}

func writeBarFile(t *testing.T, start time.Time, closes []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ts := start
	prev := closes[0]
	for _, c := range closes {
		line, err := json.Marshal(map[string]float64{
			"ts_ms":  float64(ts.UnixMilli()),
			"open":   prev,
			"high":   max(prev, c),
			"low":    min(prev, c),
			"close":  c,
			"volume": 100,
		})
		require.NoError(t, err)
		fmt.Fprintln(f, string(line))
		prev = c
		ts = ts.Add(time.Hour)
	}
	return path
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func TestEvaluateProducesTradeCountMatchingBars(t *testing.T) {
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		price *= 1.001
		closes[i] = price
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeBarFile(t, start, closes)

	ev := New(path, baseReplayConfig())
	metrics, err := ev.Evaluate(context.Background(), start, start.Add(60*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 58, metrics.TradeCount) // 60 bars -> 59 returns -> 58 priced trades
	assert.GreaterOrEqual(t, metrics.MaxDrawdown, 0.0)
}

func TestEvaluateEmptyWindowReturnsZeroMetrics(t *testing.T) {
	closes := []float64{100, 101, 102}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeBarFile(t, start, closes)

	ev := New(path, baseReplayConfig())
	metrics, err := ev.Evaluate(context.Background(), start.Add(10*time.Hour), start.Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.TradeCount)
	assert.Equal(t, 0.0, metrics.Sharpe)
}

func TestEvaluateMissingFileErrors(t *testing.T) {
	ev := New("/no/such/file.jsonl", baseReplayConfig())
	_, err := ev.Evaluate(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestEvaluateRespectsContextCancellation(t *testing.T) {
	closes := make([]float64, 500)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeBarFile(t, start, closes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := New(path, baseReplayConfig())
	_, err := ev.Evaluate(ctx, start, start.Add(500*time.Hour))
	assert.Error(t, err)
}
