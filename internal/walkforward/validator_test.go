package walkforward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseWFConfig() Config {
	return Config{
		DataStart:               date(2023, time.January, 1),
		DataEnd:                 date(2024, time.December, 1),
		TrainMonths:             6,
		TestMonths:              3,
		StepMonths:              3,
		EmbargoBeforeDays:       5,
		EmbargoAfterDays:        3,
		MinWindows:              2,
		MinProfitableWindowsPct: 0.5,
		MinTestSharpe:           0.0,
		MaxDrawdownThreshold:    0.5,
		MinRobustnessScore:      0,
		PBOPermutations:         20,
	}
}

func steadyEvaluator() EvaluatorFunc {
	return func(ctx context.Context, start, end time.Time) (WindowMetrics, error) {
		return WindowMetrics{
			Sharpe:      1.2,
			Calmar:      2.0,
			MaxDrawdown: 0.1,
			TotalReturn: 0.08,
			WinRate:     0.6,
			TradeCount:  20,
		}, nil
	}
}

func TestValidateStableStrategyPasses(t *testing.T) {
	cfg := baseWFConfig()
	v, err := New(cfg)
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), "code", steadyEvaluator())
	require.NoError(t, err)

	require.Len(t, result.Windows, 5)
	assert.True(t, result.Passed)
	assert.InDelta(t, 1.0, result.ProfitableWindowsPct, 1e-9)
	assert.InDelta(t, 1.2, result.AvgTestSharpe, 1e-9)
	assert.LessOrEqual(t, result.DeflatedSharpe, result.AvgTestSharpe)
}

func TestValidateInsufficientDataFails(t *testing.T) {
	cfg := baseWFConfig()
	cfg.DataEnd = date(2023, time.June, 1)

	v, err := New(cfg)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "code", steadyEvaluator())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestValidateSingleWindowFailureRecordsZeroTradeWindow(t *testing.T) {
	cfg := baseWFConfig()
	v, err := New(cfg)
	require.NoError(t, err)

	calls := 0
	evaluator := EvaluatorFunc(func(ctx context.Context, start, end time.Time) (WindowMetrics, error) {
		calls++
		if calls == 1 {
			return WindowMetrics{}, errors.New("boom")
		}
		return WindowMetrics{Sharpe: 1.0, TotalReturn: 0.05, MaxDrawdown: 0.1, WinRate: 0.6, TradeCount: 10}, nil
	})

	result, err := v.Validate(context.Background(), "code", evaluator)
	require.NoError(t, err)
	require.Len(t, result.Windows, 5)
	assert.True(t, result.Windows[0].Failed)
	assert.Equal(t, 0, result.Windows[0].Test.TradeCount)
}

func TestValidateMajorityEvaluatorFailureFailsOverall(t *testing.T) {
	cfg := baseWFConfig()
	v, err := New(cfg)
	require.NoError(t, err)

	evaluator := EvaluatorFunc(func(ctx context.Context, start, end time.Time) (WindowMetrics, error) {
		return WindowMetrics{}, errors.New("always fails")
	})

	result, err := v.Validate(context.Background(), "code", evaluator)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Diagnostic)
}

func TestValidateParallelModeMatchesSequentialWindowCount(t *testing.T) {
	cfg := baseWFConfig()
	cfg.MaxParallelWindows = 4

	v, err := New(cfg)
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), "code", steadyEvaluator())
	require.NoError(t, err)
	assert.Len(t, result.Windows, 5)
	for _, w := range result.Windows {
		assert.False(t, w.Failed)
	}
}

func TestValidateExcessiveDrawdownFailsDrawdownCriterion(t *testing.T) {
	cfg := baseWFConfig()
	cfg.MaxDrawdownThreshold = 0.05

	v, err := New(cfg)
	require.NoError(t, err)

	evaluator := EvaluatorFunc(func(ctx context.Context, start, end time.Time) (WindowMetrics, error) {
		return WindowMetrics{Sharpe: 1.0, TotalReturn: 0.05, MaxDrawdown: 0.3, WinRate: 0.5, TradeCount: 10}, nil
	})

	result, err := v.Validate(context.Background(), "code", evaluator)
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := baseWFConfig()
	cfg.MinWindows = 0
	_, err := New(cfg)
	assert.Error(t, err)
}
