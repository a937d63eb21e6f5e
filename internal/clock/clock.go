// Package clock provides the Clock capability the core consumes for
// scheduled timers (spec.md §6), plus a deterministic fake for tests.
package clock

import (
	"fmt"
	"time"
)

// Clock is the host-supplied time source and timer registrar.
type Clock interface {
	NowNs() int64
	// SetTimer arranges for callback to fire at the next occurrence of
	// atUTC (HH:MM, interpreted daily in UTC), repeating every interval
	// after that. A zero interval repeats daily at atUTC.
	SetTimer(name string, atUTC string, interval time.Duration, callback func(fireNs int64)) error
}

// System is a Clock backed by the real wall clock. Timers are evaluated by
// the caller calling Poll; System does not spawn goroutines, matching
// the single-threaded, cooperative scheduling model of spec.md §5.
type System struct {
	timers map[string]*timerState
}

type timerState struct {
	atUTC    string
	interval time.Duration
	callback func(fireNs int64)
	nextFire time.Time
}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{timers: make(map[string]*timerState)}
}

func (s *System) NowNs() int64 { return time.Now().UnixNano() }

func (s *System) SetTimer(name string, atUTC string, interval time.Duration, callback func(fireNs int64)) error {
	next, err := NextOccurrence(time.Now().UTC(), atUTC)
	if err != nil {
		return err
	}
	s.timers[name] = &timerState{atUTC: atUTC, interval: interval, callback: callback, nextFire: next}
	return nil
}

// Poll fires any timer whose nextFire has passed now, then reschedules it
// (daily, or by interval if non-zero). The live path never blocks on this;
// the host event loop calls Poll once per tick.
func (s *System) Poll(now time.Time) {
	for _, t := range s.timers {
		if !now.Before(t.nextFire) {
			t.callback(now.UnixNano())
			if t.interval > 0 {
				t.nextFire = t.nextFire.Add(t.interval)
			} else {
				next, err := NextOccurrence(now.UTC(), t.atUTC)
				if err == nil {
					t.nextFire = next
				}
			}
		}
	}
}

// NextOccurrence returns the next UTC time strictly after from that matches
// HH:MM atUTC.
func NextOccurrence(from time.Time, atUTC string) (time.Time, error) {
	tod, err := time.Parse("15:04", atUTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: invalid HH:MM time of day %q: %w", atUTC, err)
	}
	from = from.UTC()
	candidate := time.Date(from.Year(), from.Month(), from.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

// Fake is a deterministic Clock for tests: time only advances when Advance
// is called, and SetTimer fires are evaluated eagerly from Advance.
type Fake struct {
	nowNs  int64
	timers map[string]*timerState
}

// NewFake creates a Fake clock starting at startNs.
func NewFake(startNs int64) *Fake {
	return &Fake{nowNs: startNs, timers: make(map[string]*timerState)}
}

func (f *Fake) NowNs() int64 { return f.nowNs }

func (f *Fake) SetTimer(name string, atUTC string, interval time.Duration, callback func(fireNs int64)) error {
	next, err := NextOccurrence(time.Unix(0, f.nowNs).UTC(), atUTC)
	if err != nil {
		return err
	}
	f.timers[name] = &timerState{atUTC: atUTC, interval: interval, callback: callback, nextFire: next}
	return nil
}

// Advance moves the fake clock forward by d, firing any timers crossed.
func (f *Fake) Advance(d time.Duration) {
	target := time.Unix(0, f.nowNs).Add(d)
	for _, t := range f.timers {
		for !target.Before(t.nextFire) {
			f.nowNs = t.nextFire.UnixNano()
			t.callback(f.nowNs)
			if t.interval > 0 {
				t.nextFire = t.nextFire.Add(t.interval)
			} else {
				next, err := NextOccurrence(t.nextFire, t.atUTC)
				if err != nil {
					break
				}
				t.nextFire = next
			}
		}
	}
	f.nowNs = target.UnixNano()
}
