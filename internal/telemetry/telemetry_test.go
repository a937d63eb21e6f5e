package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAllCollectors(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)

	r.ObserveVPIN("BTC-USD", 0.8, true)
	r.ObserveHawkes("BTC-USD", -0.2, 0.6)
	r.ObserveSize("alpha", 12.5)
	r.ObserveRegimeWeight("BTC-USD", 0.5)
	r.ObserveDailyPnL("global", -300)
	r.IncLimitTriggered("global")
	r.ObserveValidatorRun("pass", 72.5, 1.3)

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRegistryMethodsAreNoOps(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveVPIN("x", 0, false)
		r.ObserveHawkes("x", 0, 0)
		r.ObserveSize("x", 0)
		r.ObserveRegimeWeight("x", 0)
		r.ObserveDailyPnL("x", 0)
		r.IncLimitTriggered("x")
		r.ObserveValidatorRun("fail", 0, 0)
		_ = r.Gatherer()
	})
}
