// Package telemetry registers the Prometheus gauges and counters exported
// by the live-path components (VPIN/OFI, sizer, daily tracker) and the
// offline validator. Grounded on internal/metrics.Collector's shape
// (named metric groups guarded by a single struct) but backed by real
// prometheus/client_golang collectors instead of hand-rolled fields.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric this module exports. Construct one per
// process with NewRegistry and pass it down to the components that need
// it; nil is a valid *Registry (every method is a no-op), so wiring
// telemetry is optional.
type Registry struct {
	reg *prometheus.Registry

	VPINValue          *prometheus.GaugeVec
	VPINToxic          *prometheus.GaugeVec
	HawkesOFI          *prometheus.GaugeVec
	HawkesBranchingRatio *prometheus.GaugeVec
	SizerSize          *prometheus.GaugeVec
	RegimeWeight       *prometheus.GaugeVec
	DailyPnLTotal      *prometheus.GaugeVec
	LimitTriggeredTotal *prometheus.CounterVec
	ValidatorRunsTotal *prometheus.CounterVec
	ValidatorRobustness prometheus.Gauge
	ValidatorWallTimeS prometheus.Gauge
}

// NewRegistry constructs and registers every collector against a fresh
// prometheus.Registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		VPINValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "orderflow",
			Name:      "vpin_value",
			Help:      "Current VPIN toxicity estimate in [0,1], by instrument.",
		}, []string{"instrument"}),
		VPINToxic: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "orderflow",
			Name:      "vpin_toxic",
			Help:      "1 if VPIN classifies the instrument as HIGH toxicity, else 0.",
		}, []string{"instrument"}),
		HawkesOFI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "orderflow",
			Name:      "hawkes_ofi",
			Help:      "Current Hawkes order-flow imbalance in [-1,1], by instrument.",
		}, []string{"instrument"}),
		HawkesBranchingRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "orderflow",
			Name:      "hawkes_branching_ratio",
			Help:      "Fitted Hawkes branching ratio alpha/beta, by instrument.",
		}, []string{"instrument"}),
		SizerSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "sizing",
			Name:      "giller_size",
			Help:      "Last computed Giller sizer output, by strategy.",
		}, []string{"strategy"}),
		RegimeWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "regime",
			Name:      "weight",
			Help:      "Current regime_weight multiplier in [0,1], by instrument.",
		}, []string{"instrument"}),
		DailyPnLTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "daypnl",
			Name:      "total",
			Help:      "realized + unrealized PnL for the day, by key.",
		}, []string{"key"}),
		LimitTriggeredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfrisk",
			Subsystem: "daypnl",
			Name:      "limit_triggered_total",
			Help:      "Count of daily loss limit trips, by key.",
		}, []string{"key"}),
		ValidatorRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfrisk",
			Subsystem: "walkforward",
			Name:      "runs_total",
			Help:      "Count of walk-forward validation runs, by verdict.",
		}, []string{"verdict"}),
		ValidatorRobustness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "walkforward",
			Name:      "robustness_score",
			Help:      "robustness_score of the most recent validation run.",
		}),
		ValidatorWallTimeS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wfrisk",
			Subsystem: "walkforward",
			Name:      "wall_time_seconds",
			Help:      "Wall-clock duration of the most recent validation run.",
		}),
	}

	reg.MustRegister(
		r.VPINValue, r.VPINToxic, r.HawkesOFI, r.HawkesBranchingRatio,
		r.SizerSize, r.RegimeWeight, r.DailyPnLTotal, r.LimitTriggeredTotal,
		r.ValidatorRunsTotal, r.ValidatorRobustness, r.ValidatorWallTimeS,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler
// (promhttp.HandlerFor(reg.Gatherer(), ...)).
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func (r *Registry) ObserveVPIN(instrument string, value float64, toxic bool) {
	if r == nil {
		return
	}
	r.VPINValue.WithLabelValues(instrument).Set(value)
	t := 0.0
	if toxic {
		t = 1.0
	}
	r.VPINToxic.WithLabelValues(instrument).Set(t)
}

func (r *Registry) ObserveHawkes(instrument string, ofi, branchingRatio float64) {
	if r == nil {
		return
	}
	r.HawkesOFI.WithLabelValues(instrument).Set(ofi)
	r.HawkesBranchingRatio.WithLabelValues(instrument).Set(branchingRatio)
}

func (r *Registry) ObserveSize(strategy string, size float64) {
	if r == nil {
		return
	}
	r.SizerSize.WithLabelValues(strategy).Set(size)
}

func (r *Registry) ObserveRegimeWeight(instrument string, weight float64) {
	if r == nil {
		return
	}
	r.RegimeWeight.WithLabelValues(instrument).Set(weight)
}

func (r *Registry) ObserveDailyPnL(key string, total float64) {
	if r == nil {
		return
	}
	r.DailyPnLTotal.WithLabelValues(key).Set(total)
}

func (r *Registry) IncLimitTriggered(key string) {
	if r == nil {
		return
	}
	r.LimitTriggeredTotal.WithLabelValues(key).Inc()
}

func (r *Registry) ObserveValidatorRun(verdict string, robustnessScore, wallTimeS float64) {
	if r == nil {
		return
	}
	r.ValidatorRunsTotal.WithLabelValues(verdict).Inc()
	r.ValidatorRobustness.Set(robustnessScore)
	r.ValidatorWallTimeS.Set(wallTimeS)
}
