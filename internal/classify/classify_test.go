package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRuleReusesLastSide(t *testing.T) {
	c, err := New(Config{Method: TickRule})
	require.NoError(t, err)

	cl, err := c.ClassifyBar(1, 0, 0, 0, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, Flat, cl.Side, "first tick has no prior price")

	cl, err = c.ClassifyBar(2, 0, 0, 0, 101, 10)
	require.NoError(t, err)
	assert.Equal(t, Buy, cl.Side)

	cl, err = c.ClassifyBar(3, 0, 0, 0, 101, 10)
	require.NoError(t, err)
	assert.Equal(t, Buy, cl.Side, "unchanged price reuses previous side")

	cl, err = c.ClassifyBar(4, 0, 0, 0, 99, 10)
	require.NoError(t, err)
	assert.Equal(t, Sell, cl.Side)
}

func TestTickRuleNeverSetYieldsFlat(t *testing.T) {
	c, err := New(Config{Method: TickRule})
	require.NoError(t, err)

	cl, err := c.ClassifyBar(1, 0, 0, 0, 50, 10)
	require.NoError(t, err)
	assert.Equal(t, Flat, cl.Side)
}

func TestBVCClipsAndScoresConfidence(t *testing.T) {
	c, err := New(Config{Method: BVC})
	require.NoError(t, err)

	// close at high -> buyRatio 1.0 -> Buy, confidence 1.0
	cl, err := c.ClassifyBar(1, 10, 20, 10, 20, 5)
	require.NoError(t, err)
	assert.Equal(t, Buy, cl.Side)
	assert.InDelta(t, 1.0, cl.Confidence, 1e-9)

	// close at low -> buyRatio 0.0 -> Sell, confidence 1.0
	cl, err = c.ClassifyBar(2, 10, 20, 10, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, Sell, cl.Side)
	assert.InDelta(t, 1.0, cl.Confidence, 1e-9)
}

func TestBVCRequiresHighLow(t *testing.T) {
	c, err := New(Config{Method: BVC})
	require.NoError(t, err)

	_, err = c.ClassifyBar(1, 10, 0, 0, 10, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCloseVsOpen(t *testing.T) {
	c, err := New(Config{Method: CloseVsOpen})
	require.NoError(t, err)

	cl, err := c.ClassifyBar(1, 10, 0, 0, 11, 5)
	require.NoError(t, err)
	assert.Equal(t, Buy, cl.Side)
	assert.Equal(t, 1.0, cl.Confidence)

	cl, err = c.ClassifyBar(2, 10, 0, 0, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, Flat, cl.Side)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := New(Config{Method: "bogus"})
	assert.Error(t, err)
}

func TestResetClearsState(t *testing.T) {
	c, err := New(Config{Method: TickRule})
	require.NoError(t, err)

	_, _ = c.ClassifyBar(1, 0, 0, 0, 100, 10)
	_, _ = c.ClassifyBar(2, 0, 0, 0, 105, 10)

	fresh, err := New(Config{Method: TickRule})
	require.NoError(t, err)

	c.Reset()

	clAfterReset, err := c.ClassifyBar(3, 0, 0, 0, 99, 10)
	require.NoError(t, err)
	clFresh, err := fresh.ClassifyBar(3, 0, 0, 0, 99, 10)
	require.NoError(t, err)
	assert.Equal(t, clFresh.Side, clAfterReset.Side)
}
