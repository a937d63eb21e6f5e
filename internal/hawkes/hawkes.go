// Package hawkes implements the self-exciting bivariate order-flow-
// imbalance indicator (C3): two linked exponential-kernel Hawkes
// intensities, one per trade side, producing a normalized OFI in [-1,1].
package hawkes

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// State is the Hawkes fit lifecycle: EMPTY -> BUFFERING -> FITTED, which can
// degrade back to BUFFERING if a refit fails to converge.
type State int

const (
	Empty State = iota
	Buffering
	Fitted
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Buffering:
		return "BUFFERING"
	case Fitted:
		return "FITTED"
	default:
		return "UNKNOWN"
	}
}

const epsilon = 1e-12

// FitResult is the output of a Fitter: baseline intensities, self-excitation
// coefficients, and the shared exponential decay rate.
type FitResult struct {
	MuBuy, MuSell     float64
	AlphaBuy, AlphaSell float64
	Beta              float64
}

// Fitter is the polymorphic capability the Hawkes engine depends on rather
// than a specific statistical library (spec.md §9). Two concrete variants
// are provided: an empirical moment-based fitter and a fixed-parameter
// fitter for operators who prefer to pin µ/α externally.
type Fitter interface {
	Fit(buyTimesNs, sellTimesNs []int64) (FitResult, error)
}

// Config is the immutable, validated Hawkes configuration (spec.md §6).
type Config struct {
	DecayRate       float64 // beta
	LookbackTicks   int
	RefitInterval   int
	UseFixedParams  bool
	FixedBaseline   float64
	FixedExcitation float64
}

func (c Config) Validate() error {
	if c.DecayRate <= 0 {
		return fmt.Errorf("hawkes: decay_rate must be > 0")
	}
	if c.LookbackTicks < 100 || c.LookbackTicks > 100000 {
		return fmt.Errorf("hawkes: lookback_ticks must be in [100,100000], got %d", c.LookbackTicks)
	}
	if c.RefitInterval < 10 {
		return fmt.Errorf("hawkes: refit_interval must be >= 10, got %d", c.RefitInterval)
	}
	if c.FixedBaseline < 0 {
		return fmt.Errorf("hawkes: fixed_baseline must be >= 0")
	}
	if c.FixedExcitation >= c.DecayRate {
		return fmt.Errorf("hawkes: fixed_excitation must be < decay_rate")
	}
	return nil
}

// tickRing is a bounded ring of event timestamps.
type tickRing struct {
	buf   []int64
	head  int
	count int
}

func newTickRing(size int) *tickRing {
	return &tickRing{buf: make([]int64, size)}
}

func (r *tickRing) push(tsNs int64) {
	r.buf[r.head] = tsNs
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// snapshot returns the stored timestamps in chronological order.
func (r *tickRing) snapshot() []int64 {
	out := make([]int64, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// sideRecurrence holds the exact exponential-decay recurrence state for one
// side's intensity, avoiding an O(N) rescan per event.
type sideRecurrence struct {
	r           float64 // Σ_{t_k<lastEventNs} exp(-beta*(lastEventNs-t_k)), recursively updated
	lastEventNs int64
	hasEvent    bool
}

// onEvent folds a new event at tsNs into the recurrence.
func (s *sideRecurrence) onEvent(tsNs int64, beta float64) {
	if s.hasEvent {
		dt := float64(tsNs-s.lastEventNs) / 1e9
		s.r = math.Exp(-beta*dt)*s.r + 1
	} else {
		s.r = 1
	}
	s.lastEventNs = tsNs
	s.hasEvent = true
}

// intensityAt evaluates µ + α·R·exp(-β(t−lastEventNs)) at tsNs >= lastEventNs.
func (s *sideRecurrence) intensityAt(tsNs int64, mu, alpha, beta float64) float64 {
	if !s.hasEvent {
		return mu
	}
	dt := float64(tsNs-s.lastEventNs) / 1e9
	if dt < 0 {
		dt = 0
	}
	return mu + alpha*s.r*math.Exp(-beta*dt)
}

// Engine is the streaming Hawkes OFI indicator. Owns two bounded tick rings
// (buy, sell) and the online intensity recurrence for each side.
type Engine struct {
	cfg    Config
	fitter Fitter

	state State

	buyRing  *tickRing
	sellRing *tickRing

	buyRec  sideRecurrence
	sellRec sideRecurrence

	fit FitResult

	lastFitNs       int64
	ticksSinceFit   int
}

// New constructs an Engine. If cfg.UseFixedParams is set, the FixedParams
// fitter is used; otherwise fitter must be supplied (the "external
// statistical library" capability of spec.md §9).
func New(cfg Config, fitter Fitter) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UseFixedParams {
		fitter = FixedParamsFitter{Baseline: cfg.FixedBaseline, Excitation: cfg.FixedExcitation, Beta: cfg.DecayRate}
	} else if fitter == nil {
		return nil, fmt.Errorf("hawkes: fitter required when use_fixed_params is false")
	}
	return &Engine{
		cfg:      cfg,
		fitter:   fitter,
		state:    Empty,
		buyRing:  newTickRing(cfg.LookbackTicks),
		sellRing: newTickRing(cfg.LookbackTicks),
	}, nil
}

// side mirrors classify.Side without importing the package, to keep this
// engine decoupled from the classifier; OrderflowBus does the mapping.
type Side int

const (
	SideSell Side = -1
	SideFlat Side = 0
	SideBuy  Side = 1
)

// HandleTick appends the classified event to the appropriate ring, updates
// the online intensity recurrence, and triggers a refit every
// RefitInterval ticks. Flat-side ticks are not appended to either ring
// (they carry no directional information for the process).
func (e *Engine) HandleTick(tsNs int64, side Side) {
	if e.state == Empty {
		e.state = Buffering
	}

	switch side {
	case SideBuy:
		e.buyRing.push(tsNs)
		e.buyRec.onEvent(tsNs, e.cfg.DecayRate)
	case SideSell:
		e.sellRing.push(tsNs)
		e.sellRec.onEvent(tsNs, e.cfg.DecayRate)
	default:
		return
	}

	e.ticksSinceFit++
	if e.ticksSinceFit >= e.cfg.RefitInterval {
		e.refit(tsNs)
		e.ticksSinceFit = 0
	}
}

func (e *Engine) refit(tsNs int64) {
	total := e.buyRing.count + e.sellRing.count
	if total < e.cfg.RefitInterval {
		// Sparse-event ring: stay in BUFFERING, OFI remains 0.
		return
	}

	result, err := e.fitter.Fit(e.buyRing.snapshot(), e.sellRing.snapshot())
	if err != nil {
		log.Debug().Err(err).Msg("hawkes: refit did not converge, keeping previous intensities")
		if e.state == Fitted {
			e.state = Buffering
		}
		return
	}

	// Branching-ratio safety: clip alpha/beta < 1.
	if result.Beta <= 0 {
		result.Beta = e.cfg.DecayRate
	}
	if result.AlphaBuy >= result.Beta {
		result.AlphaBuy = 0.99 * result.Beta
	}
	if result.AlphaSell >= result.Beta {
		result.AlphaSell = 0.99 * result.Beta
	}

	e.fit = result
	e.lastFitNs = tsNs
	e.state = Fitted
}

// IsFitted reports whether the engine has a converged fit.
func (e *Engine) IsFitted() bool { return e.state == Fitted }

// StateValue returns the current lifecycle state.
func (e *Engine) StateValue() State { return e.state }

// OFI returns the normalized order-flow imbalance at tsNs: 0 until FITTED.
func (e *Engine) OFI(tsNs int64) float64 {
	if e.state != Fitted {
		return 0
	}
	lambdaBuy := e.buyRec.intensityAt(tsNs, e.fit.MuBuy, e.fit.AlphaBuy, e.fit.Beta)
	lambdaSell := e.sellRec.intensityAt(tsNs, e.fit.MuSell, e.fit.AlphaSell, e.fit.Beta)
	denom := math.Max(lambdaBuy+lambdaSell, epsilon)
	ofi := (lambdaBuy - lambdaSell) / denom
	return math.Max(-1, math.Min(1, ofi))
}

// Reset clears all ring and recurrence state, yielding state equivalent to a
// freshly constructed Engine.
func (e *Engine) Reset() {
	e.state = Empty
	e.buyRing = newTickRing(e.cfg.LookbackTicks)
	e.sellRing = newTickRing(e.cfg.LookbackTicks)
	e.buyRec = sideRecurrence{}
	e.sellRec = sideRecurrence{}
	e.fit = FitResult{}
	e.lastFitNs = 0
	e.ticksSinceFit = 0
}

// FixedParamsFitter always returns the operator-pinned baseline/excitation,
// the "fixed parameters" capability variant of spec.md §9.
type FixedParamsFitter struct {
	Baseline   float64
	Excitation float64
	Beta       float64
}

func (f FixedParamsFitter) Fit(buyTimesNs, sellTimesNs []int64) (FitResult, error) {
	return FitResult{
		MuBuy: f.Baseline, MuSell: f.Baseline,
		AlphaBuy: f.Excitation, AlphaSell: f.Excitation,
		Beta: f.Beta,
	}, nil
}

// EmpiricalFitter estimates µ/α/β from the observed tick rings: µ_i is the
// empirical event rate, α_i is derived from the average decay weight
// exp(-β·Δt) between consecutive same-side events, and β is the configured
// decay rate (held fixed, since estimating it jointly with α from sparse
// tick data is not reliable at this sample size).
type EmpiricalFitter struct {
	Beta          float64
	MinEvents     int
}

func (f EmpiricalFitter) Fit(buyTimesNs, sellTimesNs []int64) (FitResult, error) {
	minEvents := f.MinEvents
	if minEvents <= 0 {
		minEvents = 20
	}
	if len(buyTimesNs) < minEvents || len(sellTimesNs) < minEvents {
		return FitResult{}, fmt.Errorf("hawkes: insufficient events to fit (buy=%d sell=%d, need %d)",
			len(buyTimesNs), len(sellTimesNs), minEvents)
	}

	muBuy, branchBuy := estimateRateAndBranching(buyTimesNs, f.Beta)
	muSell, branchSell := estimateRateAndBranching(sellTimesNs, f.Beta)

	return FitResult{
		MuBuy: muBuy, MuSell: muSell,
		AlphaBuy:  branchBuy * f.Beta,
		AlphaSell: branchSell * f.Beta,
		Beta:      f.Beta,
	}, nil
}

// estimateRateAndBranching computes the empirical event rate (events per
// second) and a branching-ratio proxy: the average of exp(-beta·Δt) over
// the gaps between each event and the one immediately before it, clamped
// to [0, 0.95].
func estimateRateAndBranching(timesNs []int64, beta float64) (rate, branching float64) {
	if len(timesNs) < 2 {
		return 0, 0
	}
	spanSec := float64(timesNs[len(timesNs)-1]-timesNs[0]) / 1e9
	if spanSec <= 0 {
		return 0, 0
	}
	rate = float64(len(timesNs)) / spanSec

	var clusterSum float64
	for i := 1; i < len(timesNs); i++ {
		dt := float64(timesNs[i]-timesNs[i-1]) / 1e9
		clusterSum += math.Exp(-beta * dt)
	}
	avgCluster := clusterSum / float64(len(timesNs)-1)
	branching = math.Max(0, math.Min(0.95, avgCluster))
	return rate, branching
}
