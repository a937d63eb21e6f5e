// Package orderflow composes the VPIN engine and Hawkes OFI indicator into
// one facade (C4), the "Orderflow Toxicity Bus" feeding position sizing.
package orderflow

import (
	"fmt"

	"github.com/sawpanic/wfrisk/internal/classify"
	"github.com/sawpanic/wfrisk/internal/hawkes"
	"github.com/sawpanic/wfrisk/internal/vpin"
)

// Config composes the VPIN and Hawkes configs with independent enable
// flags, per spec.md §6.
type Config struct {
	VPIN        vpin.Config
	Hawkes      hawkes.Config
	EnableVPIN  bool
	EnableHawkes bool
}

func (c Config) Validate() error {
	if !c.EnableVPIN && !c.EnableHawkes {
		return fmt.Errorf("orderflow: at least one of vpin/hawkes must be enabled")
	}
	if c.EnableVPIN {
		if err := c.VPIN.Validate(); err != nil {
			return err
		}
	}
	if c.EnableHawkes {
		if err := c.Hawkes.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Bus owns exactly one VPIN engine and one Hawkes engine for a single
// instrument and forwards each bar to both (spec.md §4.4): the VPIN engine
// classifies the raw bar itself, and the bus's own classifier supplies the
// side for Hawkes. It is not shared across instruments.
type Bus struct {
	cfg Config

	cl *classify.Classifier

	v *vpin.Engine
	h *hawkes.Engine
}

// New constructs a Bus. The Hawkes side, if enabled and not using fixed
// parameters, requires a fitter capability (spec.md §9).
func New(cfg Config, hawkesFitter hawkes.Fitter) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bus{cfg: cfg}

	// The bus's classifier supplies the side for the Hawkes engine; the
	// VPIN engine owns its own internal classifier and classifies the raw
	// bar itself. Both use the same method when VPIN is enabled.
	var method classify.Method
	if cfg.EnableVPIN {
		method = cfg.VPIN.ClassificationMeth
	} else {
		method = classify.TickRule
	}
	cl, err := classify.New(classify.Config{Method: method})
	if err != nil {
		return nil, err
	}
	b.cl = cl

	if cfg.EnableVPIN {
		v, err := vpin.New(cfg.VPIN)
		if err != nil {
			return nil, err
		}
		b.v = v
	}
	if cfg.EnableHawkes {
		h, err := hawkes.New(cfg.Hawkes, hawkesFitter)
		if err != nil {
			return nil, err
		}
		b.h = h
	}

	return b, nil
}

// HandleBar forwards the bar to both owned engines.
func (b *Bus) HandleBar(tsNs int64, open, high, low, close, volume float64) {
	if b.v != nil {
		b.v.HandleBar(tsNs, open, high, low, close, volume)
	}
	if b.h != nil && volume > 0 {
		cl, err := b.cl.ClassifyBar(tsNs, open, high, low, close, volume)
		if err == nil {
			b.h.HandleTick(tsNs, hawkes.Side(cl.Side))
		}
	}
}

// Toxicity is the current VPIN value, or 0 if VPIN is disabled.
func (b *Bus) Toxicity() float64 {
	if b.v == nil {
		return 0
	}
	return b.v.Value()
}

// OFI is the current Hawkes order-flow imbalance at tsNs, or 0 if Hawkes is
// disabled.
func (b *Bus) OFI(tsNs int64) float64 {
	if b.h == nil {
		return 0
	}
	return b.h.OFI(tsNs)
}

// IsValid reports validity across enabled sides: if both are enabled, both
// must be ready; if one side is disabled, that conjunct is dropped.
func (b *Bus) IsValid() bool {
	vpinOK := b.v == nil || b.v.IsValid()
	hawkesOK := b.h == nil || b.h.IsFitted()
	return vpinOK && hawkesOK
}

// Reset clears both owned engines.
func (b *Bus) Reset() {
	if b.v != nil {
		b.v.Reset()
	}
	if b.h != nil {
		b.h.Reset()
	}
	b.cl.Reset()
}
