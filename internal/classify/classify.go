// Package classify maps a bar to signed buy/sell volume (C1 of the
// orderflow toxicity bus). Three variants are selectable by config;
// classifiers carry only the previous close and the side it was given.
package classify

import (
	"errors"
	"fmt"
	"math"
)

// Method selects the classification rule.
type Method string

const (
	TickRule    Method = "tick_rule"
	BVC         Method = "bvc"
	CloseVsOpen Method = "close_vs_open"

	epsilon = 1e-12
)

// ErrInvalidInput is returned when a required field for the configured
// method is missing from the bar (e.g. high and low both zero, or
// high < low, for BVC).
var ErrInvalidInput = errors.New("classify: invalid input")

// Side is the signed direction of a classified bar.
type Side int

const (
	Sell Side = -1
	Flat Side = 0
	Buy  Side = 1
)

// Classification is the per-bar output of a Classifier.
type Classification struct {
	Side       Side
	Volume     float64
	Price      float64
	TsNs       int64
	Method     Method
	Confidence float64
}

// Config selects and validates the classification method.
type Config struct {
	Method Method
}

// Validate enforces spec.md §6's enumerated config surface.
func (c Config) Validate() error {
	switch c.Method {
	case TickRule, BVC, CloseVsOpen:
		return nil
	default:
		return fmt.Errorf("classify: invalid method %q", c.Method)
	}
}

// Classifier holds the previous bar's close and the side assigned to it.
type Classifier struct {
	cfg       Config
	prevPrice float64
	prevSide  Side
	hasPrev   bool
}

// New constructs a Classifier. Returns an error (InvalidConfig) if cfg is
// malformed.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Reset clears the classifier's single scalar of state.
func (c *Classifier) Reset() {
	c.prevPrice = 0
	c.prevSide = Flat
	c.hasPrev = false
}

// ClassifyBar classifies one bar of {ts_ns, open, high, low, close, volume}.
// Returns ErrInvalidInput when a field required by the configured method is
// missing; callers should skip the bar (log at debug) rather than treat
// this as fatal, per spec.md §7.
func (c *Classifier) ClassifyBar(tsNs int64, open, high, low, close, volume float64) (Classification, error) {
	switch c.cfg.Method {
	case TickRule:
		return c.classifyTickRule(tsNs, close, volume)
	case BVC:
		return c.classifyBVC(tsNs, open, high, low, close, volume)
	case CloseVsOpen:
		return c.classifyCloseVsOpen(tsNs, open, close, volume)
	default:
		return Classification{}, fmt.Errorf("classify: unknown method %q", c.cfg.Method)
	}
}

func (c *Classifier) classifyTickRule(tsNs int64, price, volume float64) (Classification, error) {
	if price <= 0 {
		return Classification{}, fmt.Errorf("%w: tick_rule requires price > 0", ErrInvalidInput)
	}

	side := Flat
	switch {
	case !c.hasPrev:
		side = Flat
	case price > c.prevPrice:
		side = Buy
	case price < c.prevPrice:
		side = Sell
	default:
		side = c.prevSide
	}

	c.prevPrice = price
	c.prevSide = side
	c.hasPrev = true

	return Classification{
		Side: side, Volume: volume, Price: price, TsNs: tsNs,
		Method: TickRule, Confidence: 1.0,
	}, nil
}

func (c *Classifier) classifyBVC(tsNs int64, open, high, low, close, volume float64) (Classification, error) {
	if high == 0 && low == 0 {
		return Classification{}, fmt.Errorf("%w: bvc requires high/low", ErrInvalidInput)
	}
	if high < low {
		return Classification{}, fmt.Errorf("%w: bvc requires high >= low", ErrInvalidInput)
	}

	rng := math.Max(high-low, epsilon)
	buyRatio := (close - low) / rng
	buyRatio = math.Max(0, math.Min(1, buyRatio))

	side := Sell
	if buyRatio > 0.5 {
		side = Buy
	}
	confidence := math.Abs(buyRatio-0.5) * 2

	return Classification{
		Side: side, Volume: volume, Price: close, TsNs: tsNs,
		Method: BVC, Confidence: confidence,
	}, nil
}

func (c *Classifier) classifyCloseVsOpen(tsNs int64, open, close, volume float64) (Classification, error) {
	if open <= 0 {
		return Classification{}, fmt.Errorf("%w: close_vs_open requires open > 0", ErrInvalidInput)
	}

	side := Flat
	switch {
	case close > open:
		side = Buy
	case close < open:
		side = Sell
	}

	return Classification{
		Side: side, Volume: volume, Price: close, TsNs: tsNs,
		Method: CloseVsOpen, Confidence: 1.0,
	}, nil
}
