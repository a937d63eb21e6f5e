package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/wfrisk/internal/clock"
	"github.com/sawpanic/wfrisk/internal/daypnl"
)

func newTracker(t *testing.T) *daypnl.Tracker {
	t.Helper()
	tr, err := daypnl.New(daypnl.DailyLossConfig{
		DailyLossLimit:      1000,
		ResetTimeUTC:        "00:00",
		WarningThresholdPct: 0.8,
	}, clock.NewFake(0), nil, nil, nil)
	require.NoError(t, err)
	return tr
}

func TestManagerAllowsOrderWhenUnderLimit(t *testing.T) {
	tr := newTracker(t)
	m := New(tr)

	err := m.ValidateOrder(Order{StrategyID: "s1", Quantity: 10})
	assert.NoError(t, err)
}

func TestManagerDeniesOrderAfterLimitTriggered(t *testing.T) {
	tr := newTracker(t)
	m := New(tr)

	m.HandleEvent(PositionEvent{Kind: PositionClosed, StrategyID: "s1", RealizedPnL: -1200})

	err := m.ValidateOrder(Order{StrategyID: "s1", Quantity: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestManagerOrderingGuaranteeEventBeforeValidate(t *testing.T) {
	tr := newTracker(t)
	m := New(tr)

	assert.NoError(t, m.ValidateOrder(Order{StrategyID: "s1"}))

	m.HandleEvent(PositionEvent{Kind: PositionClosed, StrategyID: "s1", RealizedPnL: -1500})

	assert.Error(t, m.ValidateOrder(Order{StrategyID: "s1"}))
}

func TestManagerWithNilTrackerAlwaysApproves(t *testing.T) {
	m := New(nil)
	m.HandleEvent(PositionEvent{Kind: PositionClosed, StrategyID: "s1", RealizedPnL: -999999})
	assert.NoError(t, m.ValidateOrder(Order{StrategyID: "s1"}))
}

func TestManagerAdditionalGateCanVeto(t *testing.T) {
	m := New(nil)
	m.AddGate(rejectAllGate{})
	err := m.ValidateOrder(Order{StrategyID: "s1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

type rejectAllGate struct{}

func (rejectAllGate) Name() string { return "reject_all" }
func (rejectAllGate) Evaluate(Order) (bool, string) { return false, "test gate" }
