// Package daypnl implements the daily PnL tracker (C7): realized and
// unrealized accounting per key (global or per-strategy), a scheduled
// daily reset, and the limit/warning gate that feeds the risk manager.
package daypnl

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/wfrisk/internal/clock"
)

// DailyLossConfig is the immutable, validated tracker configuration
// (spec.md §6/§4.7). If both DailyLossLimit and DailyLossPct are set,
// the percentage takes precedence.
type DailyLossConfig struct {
	DailyLossLimit      float64
	DailyLossPct        float64 // 0 means unset
	ResetTimeUTC        string  // "HH:MM"
	PerStrategy         bool
	ClosePositionsOnLimit bool
	WarningThresholdPct float64
}

func (c DailyLossConfig) Validate() error {
	if c.DailyLossLimit <= 0 {
		return fmt.Errorf("daypnl: daily_loss_limit must be > 0")
	}
	if c.DailyLossPct != 0 && (c.DailyLossPct <= 0 || c.DailyLossPct >= 1) {
		return fmt.Errorf("daypnl: daily_loss_pct must be in (0,1), got %f", c.DailyLossPct)
	}
	if c.WarningThresholdPct <= 0 || c.WarningThresholdPct >= 1 {
		return fmt.Errorf("daypnl: warning_threshold_pct must be in (0,1), got %f", c.WarningThresholdPct)
	}
	if _, err := clock.NextOccurrence(time.Unix(0, 0).UTC(), c.ResetTimeUTC); err != nil {
		return fmt.Errorf("daypnl: invalid reset_time_utc: %w", err)
	}
	return nil
}

// DailyPnLState is the mutable per-key accounting state (spec.md §3).
type DailyPnLState struct {
	DayStartNs     int64
	StartingEquity float64
	Realized       float64
	Unrealized     float64
	LimitTriggered bool
	TriggerNs      int64
	hasTrigger     bool
	warnedToday    bool
}

// Total returns realized + unrealized.
func (s DailyPnLState) Total() float64 { return s.Realized + s.Unrealized }

// SnapshotStore optionally persists DailyPnLState across host restarts
// (spec.md §9's open question on the host-cache persistence contract).
// The core Tracker never requires one.
type SnapshotStore interface {
	Save(key string, state DailyPnLState) error
	Load(key string) (DailyPnLState, bool, error)
}

// EquityProvider returns the current total equity for key, consulted when
// the daily reset timer fires to seed the new day's starting_equity.
type EquityProvider func(key string) float64

// FlattenFunc requests that all open positions owned by key be closed via
// reduce-only market orders.
type FlattenFunc func(key string)

const globalKey = "global"

// Tracker owns DailyPnLState keyed by "global" or by strategy id when
// PerStrategy is set (spec.md §4.7).
type Tracker struct {
	cfg     DailyLossConfig
	clk     clock.Clock
	equity  EquityProvider
	flatten FlattenFunc
	store   SnapshotStore

	states map[string]*DailyPnLState
}

// New constructs a Tracker. equity and flatten may be nil (flatten is then
// a no-op); store may be nil (no persistence). If clk is non-nil, the
// daily reset timer is armed immediately.
func New(cfg DailyLossConfig, clk clock.Clock, equity EquityProvider, flatten FlattenFunc, store SnapshotStore) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		cfg:     cfg,
		clk:     clk,
		equity:  equity,
		flatten: flatten,
		store:   store,
		states:  make(map[string]*DailyPnLState),
	}
	if clk != nil {
		if err := clk.SetTimer("daily_reset", cfg.ResetTimeUTC, 24*time.Hour, t.onTimerFired); err != nil {
			return nil, fmt.Errorf("daypnl: arming daily_reset timer: %w", err)
		}
	}
	return t, nil
}

func (t *Tracker) key(strategyID string) string {
	if t.cfg.PerStrategy && strategyID != "" {
		return strategyID
	}
	return globalKey
}

func (t *Tracker) stateFor(key string) *DailyPnLState {
	s, ok := t.states[key]
	if !ok {
		if t.store != nil {
			if loaded, found, err := t.store.Load(key); err == nil && found {
				s = &loaded
				t.states[key] = s
				return s
			}
		}
		s = &DailyPnLState{}
		t.states[key] = s
	}
	return s
}

// HandlePositionClosed adds realized_pnl to the key's state (realized
// changes only on position-close events) and re-checks the limit.
func (t *Tracker) HandlePositionClosed(strategyID string, realizedPnL float64, nowNs int64) {
	key := t.key(strategyID)
	s := t.stateFor(key)
	s.Realized += realizedPnL
	t.checkLimit(key, s, nowNs)
	t.persist(key, s)
}

// HandleMarkUpdate refreshes unrealized pnl for the key from the host's
// portfolio snapshot and re-checks the limit.
func (t *Tracker) HandleMarkUpdate(strategyID string, unrealized float64, nowNs int64) {
	key := t.key(strategyID)
	s := t.stateFor(key)
	s.Unrealized = unrealized
	t.checkLimit(key, s, nowNs)
	t.persist(key, s)
}

// onTimerFired resets every key this tracker has ever observed, per
// spec.md §4.7's TimerFired("daily_reset") handling.
func (t *Tracker) onTimerFired(fireNs int64) {
	for key := range t.states {
		t.resetKey(key, fireNs)
	}
}

func (t *Tracker) resetKey(key string, nowNs int64) {
	s := t.stateFor(key)
	startingEquity := 0.0
	if t.equity != nil {
		startingEquity = t.equity(key)
	}
	*s = DailyPnLState{
		DayStartNs:     nowNs,
		StartingEquity: startingEquity,
	}
	t.persist(key, s)
}

// effectiveLimit computes the currently applicable loss limit for state,
// preferring the percentage form when configured.
func (t *Tracker) effectiveLimit(s *DailyPnLState) float64 {
	if t.cfg.DailyLossPct > 0 {
		return t.cfg.DailyLossPct * s.StartingEquity
	}
	return t.cfg.DailyLossLimit
}

func (t *Tracker) checkLimit(key string, s *DailyPnLState, nowNs int64) {
	limit := t.effectiveLimit(s)
	if limit <= 0 {
		return
	}
	loss := -s.Total()

	if !s.warnedToday && loss >= t.cfg.WarningThresholdPct*limit {
		s.warnedToday = true
		log.Warn().Str("key", key).Float64("loss", loss).Float64("limit", limit).
			Msg("daypnl: warning threshold reached")
	}

	if !s.LimitTriggered && loss >= limit {
		s.LimitTriggered = true
		s.TriggerNs = nowNs
		s.hasTrigger = true
		log.Error().Str("key", key).Float64("loss", loss).Float64("limit", limit).
			Msg("daypnl: limit_triggered")

		if t.cfg.ClosePositionsOnLimit && t.flatten != nil {
			t.flatten(key)
		}
	}
}

func (t *Tracker) persist(key string, s *DailyPnLState) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(key, *s); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("daypnl: snapshot persist failed")
	}
}

// CanTrade reports whether the given strategy key is still permitted to
// trade: ¬limit_triggered.
func (t *Tracker) CanTrade(strategyID string) bool {
	key := t.key(strategyID)
	s, ok := t.states[key]
	if !ok {
		return true
	}
	return !s.LimitTriggered
}

// State returns a copy of the current state for key, for inspection or
// reporting.
func (t *Tracker) State(strategyID string) DailyPnLState {
	return *t.stateFor(t.key(strategyID))
}

// Reset forces an immediate reset of key's state outside the scheduled
// timer (used by tests and manual operator intervention).
func (t *Tracker) Reset(strategyID string, nowNs int64) {
	t.resetKey(t.key(strategyID), nowNs)
}
