package hawkes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() Config {
	return Config{
		DecayRate:     1.0,
		LookbackTicks: 100,
		RefitInterval: 20,
	}
}

func TestHawkesOFIZeroUntilFitted(t *testing.T) {
	cfg := baseConfig()
	cfg.UseFixedParams = true
	cfg.FixedBaseline = 1.0
	cfg.FixedExcitation = 0.3

	e, err := New(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, Empty, e.StateValue())
	assert.Equal(t, 0.0, e.OFI(1_000_000_000))

	for i := int64(0); i < 19; i++ {
		e.HandleTick(i*int64(1e8), SideBuy)
	}
	assert.False(t, e.IsFitted())
	assert.Equal(t, 0.0, e.OFI(2_000_000_000))
}

func TestHawkesFixedParamsFitsAfterRefitInterval(t *testing.T) {
	cfg := baseConfig()
	cfg.UseFixedParams = true
	cfg.FixedBaseline = 1.0
	cfg.FixedExcitation = 0.3

	e, err := New(cfg, nil)
	require.NoError(t, err)

	ts := int64(0)
	for i := 0; i < 20; i++ {
		e.HandleTick(ts, SideBuy)
		ts += int64(1e8)
	}
	assert.True(t, e.IsFitted())

	// All-buy flow should skew OFI strongly positive.
	ofi := e.OFI(ts)
	assert.Greater(t, ofi, 0.0)
	assert.LessOrEqual(t, ofi, 1.0)
}

func TestHawkesOFIBounded(t *testing.T) {
	cfg := baseConfig()
	cfg.UseFixedParams = true
	cfg.FixedBaseline = 1.0
	cfg.FixedExcitation = 0.3
	e, err := New(cfg, nil)
	require.NoError(t, err)

	ts := int64(0)
	for i := 0; i < 40; i++ {
		side := SideBuy
		if i%2 == 0 {
			side = SideSell
		}
		e.HandleTick(ts, side)
		ts += int64(1e8)
	}
	ofi := e.OFI(ts)
	assert.GreaterOrEqual(t, ofi, -1.0)
	assert.LessOrEqual(t, ofi, 1.0)
}

func TestHawkesClipsExcitationAboveDecay(t *testing.T) {
	cfg := baseConfig()
	cfg.RefitInterval = 10
	e, err := New(cfg, fakeFitter{
		result: FitResult{MuBuy: 1, MuSell: 1, AlphaBuy: 5, AlphaSell: 5, Beta: 1},
	})
	require.NoError(t, err)

	ts := int64(0)
	for i := 0; i < 30; i++ {
		e.HandleTick(ts, SideBuy)
		ts += int64(1e8)
	}
	require.True(t, e.IsFitted())
	assert.Less(t, e.fit.AlphaBuy, e.fit.Beta)
	assert.InDelta(t, 0.99, e.fit.AlphaBuy/e.fit.Beta, 1e-9)
}

func TestHawkesNonConvergenceKeepsBuffering(t *testing.T) {
	cfg := baseConfig()
	cfg.RefitInterval = 10
	e, err := New(cfg, fakeFitter{err: assertErr{}})
	require.NoError(t, err)

	ts := int64(0)
	for i := 0; i < 10; i++ {
		e.HandleTick(ts, SideBuy)
		ts += int64(1e8)
	}
	assert.False(t, e.IsFitted())
	assert.Equal(t, Buffering, e.StateValue())
}

func TestHawkesResetMatchesFreshEngine(t *testing.T) {
	cfg := baseConfig()
	cfg.UseFixedParams = true
	cfg.FixedBaseline = 1.0
	cfg.FixedExcitation = 0.3
	e, err := New(cfg, nil)
	require.NoError(t, err)

	ts := int64(0)
	for i := 0; i < 25; i++ {
		e.HandleTick(ts, SideBuy)
		ts += int64(1e8)
	}
	e.Reset()

	fresh, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, fresh.StateValue(), e.StateValue())
	assert.Equal(t, fresh.OFI(0), e.OFI(0))
}

type fakeFitter struct {
	result FitResult
	err    error
}

func (f fakeFitter) Fit(buyTimesNs, sellTimesNs []int64) (FitResult, error) {
	if f.err != nil {
		return FitResult{}, f.err
	}
	return f.result, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "non-convergence" }
