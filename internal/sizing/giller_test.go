package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGillerSubLinearScenario(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, s.Size(1, 1.0, 0), 1e-9)
	assert.InDelta(t, 20.0, s.Size(4, 1.0, 0), 1e-9)
	assert.InDelta(t, 30.0, s.Size(9, 1.0, 0), 1e-9)
}

func TestGillerToxicityDampens(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, s.Size(4, 1.0, 0.5), 1e-9)
}

func TestGillerNegativeSignalIsMagnitudeOnly(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.InDelta(t, s.Size(4, 1.0, 0), s.Size(-4, 1.0, 0), 1e-9)
	assert.GreaterOrEqual(t, s.Size(-9, 1.0, 0), 0.0)
}

func TestGillerZeroRegimeWeightCollapsesToZero(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Size(4, 0, 0))
}

func TestGillerFullToxicityCollapsesToZero(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Size(4, 1.0, 1.0))
}

func TestGillerZeroSignalIsZero(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Size(0, 1.0, 0))
}

func TestGillerClampsOutOfRangeInputs(t *testing.T) {
	s, err := New(DefaultConfig(10))
	require.NoError(t, err)

	assert.InDelta(t, s.Size(4, 1.0, 0), s.Size(4, 2.0, 0), 1e-9)
	assert.Equal(t, 0.0, s.Size(4, -1.0, 0))
}

func TestGillerInvalidConfigRejected(t *testing.T) {
	_, err := New(Config{BaseSize: 0, Exponent: 0.5})
	assert.Error(t, err)

	_, err = New(Config{BaseSize: 10, Exponent: -1})
	assert.Error(t, err)
}

func TestGillerDefaultExponentAppliedWhenZero(t *testing.T) {
	s, err := New(Config{BaseSize: 10})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, s.Size(4, 1.0, 0), 1e-9)
}
