// Package regimecls implements the regime classifier (C5): an HMM over
// log-returns, used as-is (they are not standardized before fitting or
// filtering), and a fixed 3-component GMM over rolling
// volatility, combined into a regime label, confidence, and the
// regime_weight consumed by the Giller sizer.
package regimecls

import (
	"fmt"
	"math"
)

// RegimeLabel is the HMM-state label surfaced to callers. UNKNOWN is
// reserved for the pre-fit / insufficient-data state and never appears as
// a value in a RegimeLabelMap.
type RegimeLabel string

const (
	TrendingUp   RegimeLabel = "TRENDING_UP"
	TrendingDown RegimeLabel = "TRENDING_DOWN"
	Ranging      RegimeLabel = "RANGING"
	Volatile     RegimeLabel = "VOLATILE"
	Unknown      RegimeLabel = "UNKNOWN"
)

// VolLevel bands the GMM volatility cluster.
type VolLevel string

const (
	VolLow    VolLevel = "LOW"
	VolMedium VolLevel = "MEDIUM"
	VolHigh   VolLevel = "HIGH"
)

// regimeWeightTable and volWeightTable are the spec-default multiplier
// tables (spec.md §4.5); they combine as
// regime_weight = regimeWeightTable[label] * volWeightTable[level].
var regimeWeightTable = map[RegimeLabel]float64{
	TrendingUp:   1.0,
	TrendingDown: 1.0,
	Ranging:      0.5,
	Volatile:     0.3,
}

var volWeightTable = map[VolLevel]float64{
	VolLow:    1.0,
	VolMedium: 0.7,
	VolHigh:   0.4,
}

const neutralWeight = 0.5

// Classification is the result of Predict.
type Classification struct {
	Label      RegimeLabel
	Confidence float64
	Weight     float64
	VolLevel   VolLevel
}

// Config is the immutable, validated regime classifier configuration
// (spec.md §6). RegimeLabelMap is an explicit, user-supplied lookup from
// HMM state index to label — per spec.md §9's open question, the mapping
// between a decoded HMM state and {TRENDING_UP,TRENDING_DOWN,RANGING,
// VOLATILE} is not canonical, so this implementation never guesses it.
type Config struct {
	HMMStates      int
	GMMComponents  int // must be 3; kept as an explicit field for config-surface parity with spec.md §6
	MinFitObs      int
	RefitInterval  int
	VolWindow      int // bars over which rolling volatility (stdev of returns) is computed
	RegimeLabelMap map[int]RegimeLabel
}

func (c Config) Validate() error {
	if c.HMMStates < 2 || c.HMMStates > 5 {
		return fmt.Errorf("regimecls: hmm_states must be in [2,5], got %d", c.HMMStates)
	}
	if c.GMMComponents != gmmComponents {
		return fmt.Errorf("regimecls: gmm_components must be exactly %d, got %d", gmmComponents, c.GMMComponents)
	}
	if c.MinFitObs < 1 {
		return fmt.Errorf("regimecls: min_fit_obs must be > 0")
	}
	if c.RefitInterval < 1 {
		return fmt.Errorf("regimecls: refit_interval must be > 0")
	}
	if c.VolWindow < 2 {
		return fmt.Errorf("regimecls: vol_window must be >= 2")
	}
	if len(c.RegimeLabelMap) != c.HMMStates {
		return fmt.Errorf("regimecls: regime_label_map must have exactly hmm_states (%d) entries", c.HMMStates)
	}
	for i := 0; i < c.HMMStates; i++ {
		label, ok := c.RegimeLabelMap[i]
		if !ok {
			return fmt.Errorf("regimecls: regime_label_map missing entry for state %d", i)
		}
		if _, known := regimeWeightTable[label]; !known {
			return fmt.Errorf("regimecls: regime_label_map[%d] = %q is not a valid non-UNKNOWN label", i, label)
		}
	}
	return nil
}

// DefaultRegimeLabelMap maps state 0 to RANGING and state 1 to TRENDING_UP;
// with 3 states, state 2 is VOLATILE; with 4 or more, state 2 is
// TRENDING_DOWN and states 3 and up are VOLATILE. It is
// offered as a convenience starting point; callers remain free to supply
// their own, and fitting does not impose any particular ordering on HMM
// states, so this default is a reasonable guess, not a guarantee.
func DefaultRegimeLabelMap(states int) map[int]RegimeLabel {
	m := make(map[int]RegimeLabel, states)
	switch states {
	case 2:
		m[0] = Ranging
		m[1] = TrendingUp
	case 3:
		m[0] = Ranging
		m[1] = TrendingUp
		m[2] = Volatile
	case 4:
		m[0] = Ranging
		m[1] = TrendingUp
		m[2] = TrendingDown
		m[3] = Volatile
	default:
		m[0] = Ranging
		m[1] = TrendingUp
		m[2] = TrendingDown
		m[3] = Volatile
		for i := 4; i < states; i++ {
			m[i] = Volatile
		}
	}
	return m
}

// Classifier is the streaming regime classifier. Update folds in each new
// close price; Predict returns the current classification in O(K) time
// once fitted.
type Classifier struct {
	cfg Config

	returns  []float64
	hasPrice bool
	prevLog  float64

	volWindow []float64

	barsSinceFit int
	fitted       bool

	hmm     *hmmModel
	viterbi *onlineViterbi
	gmm     *gmmModel
}

// New constructs a Classifier. Fails only on invalid config.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Update folds in the next bar's close price. Below min_fit_obs this only
// accumulates history; at min_fit_obs it triggers the initial fit; past
// that it refits every refit_interval bars.
func (c *Classifier) Update(closePrice float64) {
	if closePrice <= 0 {
		return
	}
	logPrice := math.Log(closePrice)
	if !c.hasPrice {
		c.prevLog = logPrice
		c.hasPrice = true
		return
	}
	ret := logPrice - c.prevLog
	c.prevLog = logPrice
	c.returns = append(c.returns, ret)

	c.volWindow = append(c.volWindow, ret)
	if len(c.volWindow) > c.cfg.VolWindow {
		c.volWindow = c.volWindow[1:]
	}

	if !c.fitted {
		if len(c.returns) >= c.cfg.MinFitObs {
			c.fit()
		}
		return
	}

	c.viterbi.step(ret)
	c.barsSinceFit++
	if c.barsSinceFit >= c.cfg.RefitInterval {
		c.fit()
	}
}

// fit (re)runs Baum-Welch over the full return history and the GMM over
// the rolling-volatility series of that history, then replays the online Viterbi filter
// to catch up to the latest bar.
func (c *Classifier) fit() {
	if len(c.returns) < c.cfg.HMMStates {
		return
	}
	c.hmm = fitGaussianHMM(c.returns, c.cfg.HMMStates, 15)
	c.viterbi = newOnlineViterbi(c.hmm)
	c.viterbi.seed(c.returns)

	if len(c.volWindow) >= gmmComponents {
		volSeries := rollingVol(c.returns, c.cfg.VolWindow)
		if len(volSeries) >= gmmComponents {
			c.gmm = fitGMM1D(volSeries, 15)
		}
	}

	c.fitted = c.gmm != nil
	c.barsSinceFit = 0
}

// rollingVol computes the rolling sample stdev of returns over a trailing
// window, one value per bar once the window fills.
func rollingVol(returns []float64, window int) []float64 {
	if window < 2 || len(returns) < window {
		return nil
	}
	out := make([]float64, 0, len(returns)-window+1)
	for end := window; end <= len(returns); end++ {
		chunk := returns[end-window : end]
		out = append(out, stdev(chunk))
	}
	return out
}

func stdev(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// Predict returns the current classification. Before fitting (fewer than
// min_fit_obs observations), it returns UNKNOWN with confidence 0 and the
// neutral weight, per spec.md §4.5.
func (c *Classifier) Predict() Classification {
	if !c.fitted {
		return Classification{Label: Unknown, Confidence: 0, Weight: neutralWeight, VolLevel: VolMedium}
	}

	state, confidence := c.viterbi.current()
	label := c.cfg.RegimeLabelMap[state]

	var vol float64
	if len(c.volWindow) > 0 {
		vol = stdev(c.volWindow)
	}
	level := c.gmm.classify(vol)

	weight := regimeWeightTable[label] * volWeightTable[level]
	weight = math.Max(0, math.Min(1, weight))

	return Classification{Label: label, Confidence: confidence, Weight: weight, VolLevel: level}
}

// IsFitted reports whether the classifier has completed its initial fit.
func (c *Classifier) IsFitted() bool { return c.fitted }

// Reset clears all accumulated state, yielding a classifier equivalent to
// a freshly constructed one.
func (c *Classifier) Reset() {
	c.returns = nil
	c.volWindow = nil
	c.hasPrice = false
	c.prevLog = 0
	c.barsSinceFit = 0
	c.fitted = false
	c.hmm = nil
	c.viterbi = nil
	c.gmm = nil
}
