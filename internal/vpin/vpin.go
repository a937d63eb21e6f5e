// Package vpin implements the volume-synchronized probability of informed
// trading engine (C2): a rolling mean of per-bucket order imbalance over a
// ring of sealed volume buckets.
package vpin

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/wfrisk/internal/classify"
)

// ToxicityLevel buckets the VPIN value into a human-facing band.
type ToxicityLevel string

const (
	Low    ToxicityLevel = "LOW"
	Medium ToxicityLevel = "MEDIUM"
	High   ToxicityLevel = "HIGH"

	epsilon = 1e-12
)

// Config is the immutable, validated VPIN configuration (spec.md §6).
type Config struct {
	BucketSize         float64
	NBuckets           int
	ClassificationMeth classify.Method
	MinBucketVolume    float64
}

// Validate enforces the enumerated config surface.
func (c Config) Validate() error {
	if c.BucketSize <= 0 {
		return fmt.Errorf("vpin: bucket_size must be > 0")
	}
	if c.NBuckets < 10 || c.NBuckets > 200 {
		return fmt.Errorf("vpin: n_buckets must be in [10,200], got %d", c.NBuckets)
	}
	if c.MinBucketVolume < 0 {
		return fmt.Errorf("vpin: min_bucket_volume must be >= 0")
	}
	switch c.ClassificationMeth {
	case classify.TickRule, classify.BVC, classify.CloseVsOpen:
	default:
		return fmt.Errorf("vpin: invalid classification_method %q", c.ClassificationMeth)
	}
	return nil
}

// bucket is the mutable in-flight volume bucket.
type bucket struct {
	targetVolume       float64
	accumulatedVolume  float64
	buyVolume          float64
	sellVolume         float64
	startNs            int64
	sealed             bool
}

// Engine is the streaming VPIN computation. Owns its own Classifier (C1) and
// a bounded ring of sealed bucket OI values.
type Engine struct {
	cfg        Config
	classifier *classify.Classifier

	cur bucket

	ring      []float64 // sealed bucket OI, ring buffer of size NBuckets
	ringHead  int
	ringCount int

	bucketCount int64
}

// New constructs an Engine. Fails only on invalid config (InvalidConfig).
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := classify.New(classify.Config{Method: cfg.ClassificationMeth})
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		classifier: c,
		ring:       make([]float64, cfg.NBuckets),
	}
	e.openNewBucket(0)
	return e, nil
}

func (e *Engine) openNewBucket(startNs int64) {
	e.cur = bucket{targetVolume: e.cfg.BucketSize, startNs: startNs}
}

// HandleBar classifies the bar and folds its volume into the open bucket(s),
// sealing and ringing any buckets that reach target. Zero-volume bars are
// ignored (no bucket advances).
func (e *Engine) HandleBar(tsNs int64, open, high, low, close, volume float64) {
	if volume <= 0 {
		return
	}

	cl, err := e.classifier.ClassifyBar(tsNs, open, high, low, close, volume)
	if err != nil {
		log.Debug().Err(err).Msg("vpin: skipping bar, classifier rejected input")
		return
	}

	remaining := volume
	for remaining > epsilon {
		room := e.cur.targetVolume - e.cur.accumulatedVolume
		take := remaining
		if take > room {
			take = room
		}

		switch cl.Side {
		case classify.Buy:
			e.cur.buyVolume += take
		case classify.Sell:
			e.cur.sellVolume += take
		default:
			e.cur.buyVolume += take / 2
			e.cur.sellVolume += take / 2
		}
		e.cur.accumulatedVolume += take
		remaining -= take

		if e.cur.accumulatedVolume+epsilon >= e.cur.targetVolume {
			e.sealCurrentBucket(tsNs)
			e.openNewBucket(tsNs)
		}
	}
}

func (e *Engine) sealCurrentBucket(endNs int64) {
	total := e.cur.buyVolume + e.cur.sellVolume
	var oi float64
	if total >= e.cfg.MinBucketVolume && total > epsilon {
		oi = absf(e.cur.buyVolume-e.cur.sellVolume) / total
	}

	e.ring[e.ringHead] = oi
	e.ringHead = (e.ringHead + 1) % len(e.ring)
	if e.ringCount < len(e.ring) {
		e.ringCount++
	}
	e.bucketCount++
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Value returns the rolling mean OI over the last NBuckets sealed buckets,
// or 0 if the ring is not yet full.
func (e *Engine) Value() float64 {
	if !e.IsValid() {
		return 0
	}
	var sum float64
	for _, v := range e.ring {
		sum += v
	}
	return sum / float64(len(e.ring))
}

// IsValid reports whether the ring has accumulated a full window.
func (e *Engine) IsValid() bool {
	return e.ringCount >= len(e.ring)
}

// ToxicityLevel bands the current Value().
func (e *Engine) ToxicityLevel() ToxicityLevel {
	v := e.Value()
	switch {
	case v >= 0.7:
		return High
	case v >= 0.3:
		return Medium
	default:
		return Low
	}
}

// BucketCount returns the total number of sealed buckets observed.
func (e *Engine) BucketCount() int64 { return e.bucketCount }

// Reset clears the ring and the current bucket, yielding state equivalent
// to a freshly constructed Engine.
func (e *Engine) Reset() {
	e.ring = make([]float64, e.cfg.NBuckets)
	e.ringHead = 0
	e.ringCount = 0
	e.bucketCount = 0
	e.classifier.Reset()
	e.openNewBucket(0)
}
