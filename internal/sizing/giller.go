// Package sizing implements the Giller sub-linear position sizer (C6):
// size scales with the square root (by default) of signal strength, damped
// by regime weight and orderflow toxicity.
package sizing

import (
	"fmt"
	"math"
)

// Config is the immutable, validated Giller sizer configuration.
type Config struct {
	BaseSize float64
	Exponent float64 // p, default 0.5
}

// DefaultConfig returns the spec-default exponent with the given risk
// budget.
func DefaultConfig(baseSize float64) Config {
	return Config{BaseSize: baseSize, Exponent: 0.5}
}

func (c Config) Validate() error {
	if c.BaseSize <= 0 {
		return fmt.Errorf("sizing: base_size must be > 0")
	}
	if c.Exponent <= 0 {
		return fmt.Errorf("sizing: exponent must be > 0")
	}
	return nil
}

// Sizer computes Giller sub-linear position sizes.
type Sizer struct {
	cfg Config
}

// New constructs a Sizer. Fails only on invalid config.
func New(cfg Config) (*Sizer, error) {
	if cfg.Exponent == 0 {
		cfg.Exponent = 0.5
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg}, nil
}

// Size computes size = base · |signal|^p · regime_weight · (1 − toxicity).
// Per spec.md §8's universal invariant ("GillerSizer.size ≥ 0" for all
// bars), Size always returns a non-negative magnitude: the sign of signal
// decides trade direction upstream (the caller applies it to choose
// buy/sell), it does not flip the sign of the sized quantity itself.
// Clamped so toxicity >= 1 or regime_weight <= 0 collapses the size to
// exactly 0 (spec.md §4.6).
func (s *Sizer) Size(signal, regimeWeight, toxicity float64) float64 {
	regimeWeight = math.Max(0, math.Min(1, regimeWeight))
	toxicity = math.Max(0, math.Min(1, toxicity))

	if regimeWeight <= 0 || toxicity >= 1 || signal == 0 {
		return 0
	}

	magnitude := math.Pow(math.Abs(signal), s.cfg.Exponent)
	size := s.cfg.BaseSize * magnitude * regimeWeight * (1 - toxicity)
	return math.Max(0, size)
}
