package walkforward

import (
	"fmt"
	"time"
)

// Window is a single walk-forward train/test split. Ranges are half-open
// [start, end) in UTC (spec.md §4.9).
type Window struct {
	ID         int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// addCalendarMonths adds months to t, clamping the result to the last day of
// the target month when t's day-of-month doesn't exist there (e.g. Jan 31 +
// 1 month -> Feb 28/29, not Mar 3).
func addCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	totalMonths := int(month) - 1 + months
	targetYear := year + totalMonths/12
	targetMonth := totalMonths % 12
	if targetMonth < 0 {
		targetMonth += 12
		targetYear--
	}
	targetMonth++ // back to 1-based

	firstOfTarget := time.Date(targetYear, time.Month(targetMonth), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(targetYear, time.Month(targetMonth), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// buildWindows implements the rolling window generation algorithm of
// spec.md §4.9. It returns ErrInsufficientData if fewer than cfg.MinWindows
// windows fit within [cfg.DataStart, cfg.DataEnd).
func buildWindows(cfg Config) ([]Window, error) {
	var windows []Window
	cursor := cfg.DataStart
	id := 0

	for {
		trainStart := cursor
		trainEnd := addCalendarMonths(cursor, cfg.TrainMonths)
		testStart := trainEnd.AddDate(0, 0, cfg.EmbargoBeforeDays)
		testEnd := addCalendarMonths(testStart, cfg.TestMonths)

		if testEnd.After(cfg.DataEnd) {
			break
		}

		id++
		windows = append(windows, Window{
			ID:         id,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
		})

		// Advance by step_months as usual; overlapping train/test windows
		// across iterations are expected (spec.md §4.9 rolling windows).
		// Only the embargo tail directly following this window's test
		// period — [testEnd, testEnd+embargo_after_days) — is off-limits
		// for the next trainStart, since landing there would re-train on
		// data too close to the just-tested period.
		nextCursor := addCalendarMonths(cursor, cfg.StepMonths)
		embargoTailEnd := testEnd.AddDate(0, 0, cfg.EmbargoAfterDays)
		if !nextCursor.Before(testEnd) && nextCursor.Before(embargoTailEnd) {
			cursor = embargoTailEnd
		} else {
			cursor = nextCursor
		}
	}

	if len(windows) < cfg.MinWindows {
		return nil, fmt.Errorf("%w: got %d windows, need >= %d", ErrInsufficientData, len(windows), cfg.MinWindows)
	}
	return windows, nil
}
