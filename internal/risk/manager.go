// Package risk implements the risk manager (C8): it routes position
// events to the daily PnL tracker and vetoes orders whose strategy has
// tripped that tracker's loss limit.
package risk

import (
	"errors"
	"fmt"

	"github.com/sawpanic/wfrisk/internal/daypnl"
)

// ErrDenied is returned by ValidateOrder when a gate blocks the order.
var ErrDenied = errors.New("risk: order denied")

// EventKind enumerates the position events handle_event routes.
type EventKind int

const (
	PositionClosed EventKind = iota
	MarkUpdate
)

// PositionEvent carries a single position-lifecycle event to the tracker.
type PositionEvent struct {
	Kind       EventKind
	StrategyID string
	// RealizedPnL applies to PositionClosed; Unrealized applies to
	// MarkUpdate. Only the field matching Kind is read.
	RealizedPnL float64
	Unrealized  float64
	TsNs        int64
}

// Order is the minimal order shape validate_order needs (spec.md §4.8
// scopes all other gates out).
type Order struct {
	StrategyID string
	Side       string
	Quantity   float64
}

// Gate is a priority-ordered veto check, modeled on the built-in-gate-list
// shape risk managers in this domain use: each gate either approves or
// supplies a rejection reason.
type Gate interface {
	Name() string
	Evaluate(order Order) (approved bool, reason string)
}

// dailyLossGate adapts the daypnl.Tracker's CanTrade into a Gate.
type dailyLossGate struct {
	tracker *daypnl.Tracker
}

func (g dailyLossGate) Name() string { return "daily_loss" }

func (g dailyLossGate) Evaluate(order Order) (bool, string) {
	if g.tracker.CanTrade(order.StrategyID) {
		return true, ""
	}
	return false, "daily_loss_limit_triggered"
}

// Manager holds an optional DailyPnLTracker and any additional gates.
// handle_event always routes to the tracker before validate_order is next
// consulted (spec.md §4.8's ordering guarantee), which holds naturally
// here since both are plain synchronous calls on the single-threaded
// event loop (spec.md §5) — there is no queue or goroutine between them.
type Manager struct {
	tracker *daypnl.Tracker
	gates   []Gate
}

// New constructs a Manager. tracker may be nil, in which case the
// daily-loss gate is skipped entirely (no tracker means nothing to veto
// on); additional gates can be appended with AddGate.
func New(tracker *daypnl.Tracker) *Manager {
	m := &Manager{tracker: tracker}
	if tracker != nil {
		m.gates = append(m.gates, dailyLossGate{tracker: tracker})
	}
	return m
}

// AddGate appends an additional veto gate, evaluated in the order added.
func (m *Manager) AddGate(g Gate) {
	m.gates = append(m.gates, g)
}

// HandleEvent routes a position event to the tracker.
func (m *Manager) HandleEvent(ev PositionEvent) {
	if m.tracker == nil {
		return
	}
	switch ev.Kind {
	case PositionClosed:
		m.tracker.HandlePositionClosed(ev.StrategyID, ev.RealizedPnL, ev.TsNs)
	case MarkUpdate:
		m.tracker.HandleMarkUpdate(ev.StrategyID, ev.Unrealized, ev.TsNs)
	}
}

// ValidateOrder returns ErrDenied, wrapped with the first blocking gate's
// reason, iff any gate vetoes the order. An order with no gates
// configured is approved (there is nothing to check), matching
// spec.md §4.8's "out of scope" framing for additional gates.
func (m *Manager) ValidateOrder(order Order) error {
	for _, g := range m.gates {
		if approved, reason := g.Evaluate(order); !approved {
			return fmt.Errorf("%w: %s (%s)", ErrDenied, g.Name(), reason)
		}
	}
	return nil
}
