package log

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressIndicator renders a single carriage-return-updated status line for
// a long-running streaming operation, e.g. live-demo's per-bar loop.
type ProgressIndicator struct {
	mu         sync.Mutex
	name       string
	total      int
	current    int
	startTime  time.Time
	showSpin   bool
	spinnerPos int
}

// ProgressConfig configures progress indicator behavior.
type ProgressConfig struct {
	ShowSpinner bool
}

// DefaultProgressConfig enables the rotating spinner glyph alongside the
// status message.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{ShowSpinner: true}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewProgressIndicator starts a progress indicator for an operation named
// name. total is advisory and may be 0 when the item count isn't known up
// front, as for a live bar stream.
func NewProgressIndicator(name string, total int, config ProgressConfig) *ProgressIndicator {
	return &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
		showSpin:  config.ShowSpinner,
	}
}

// UpdateWithMessage advances progress to current and redraws the status
// line with message.
func (pi *ProgressIndicator) UpdateWithMessage(current int, message string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.current = current
	pi.spinnerPos = (pi.spinnerPos + 1) % len(spinnerFrames)
	pi.print(message)
}

// FinishWithMessage prints a final success line.
func (pi *ProgressIndicator) FinishWithMessage(message string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := time.Since(pi.startTime)
	fmt.Printf("\r\033[K✅ %s: %s (%v)\n", pi.name, message, duration.Round(time.Millisecond))
}

// Fail prints a final failure line.
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := time.Since(pi.startTime)
	fmt.Printf("\r\033[K❌ %s failed: %s (%v)\n", pi.name, reason, duration.Round(time.Millisecond))
}

func (pi *ProgressIndicator) print(message string) {
	var b strings.Builder
	b.WriteString("\r\033[K")

	if pi.showSpin {
		b.WriteString(spinnerFrames[pi.spinnerPos])
		b.WriteString(" ")
	}

	b.WriteString(pi.name)
	if pi.total > 0 {
		b.WriteString(fmt.Sprintf(" (%d/%d)", pi.current, pi.total))
	} else {
		b.WriteString(fmt.Sprintf(" (%d)", pi.current))
	}

	if message != "" {
		b.WriteString(" - ")
		b.WriteString(message)
	}

	fmt.Print(b.String())
}
