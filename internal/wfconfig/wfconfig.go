// Package wfconfig loads and validates the YAML configuration surface
// enumerated in spec.md §6. Grounded on internal/gates/thresholds.go's
// LoadRegimeThresholds pattern: read the file, unmarshal with yaml.v3,
// then run every sub-config's own Validate().
package wfconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/wfrisk/internal/classify"
	"github.com/sawpanic/wfrisk/internal/daypnl"
	"github.com/sawpanic/wfrisk/internal/hawkes"
	"github.com/sawpanic/wfrisk/internal/orderflow"
	"github.com/sawpanic/wfrisk/internal/regimecls"
	"github.com/sawpanic/wfrisk/internal/sizing"
	"github.com/sawpanic/wfrisk/internal/vpin"
	"github.com/sawpanic/wfrisk/internal/walkforward"
)

// yamlVPIN/yamlHawkes/etc mirror the domain Config structs with yaml tags
// and the matching-by-name snake_case the enumerated config surface uses;
// the domain packages themselves stay free of a yaml dependency.
type yamlVPIN struct {
	BucketSize         float64 `yaml:"bucket_size"`
	NBuckets           int     `yaml:"n_buckets"`
	ClassificationMeth string  `yaml:"classification_method"`
	MinBucketVolume    float64 `yaml:"min_bucket_volume"`
}

type yamlHawkes struct {
	DecayRate       float64 `yaml:"decay_rate"`
	LookbackTicks   int     `yaml:"lookback_ticks"`
	RefitInterval   int     `yaml:"refit_interval"`
	UseFixedParams  bool    `yaml:"use_fixed_params"`
	FixedBaseline   float64 `yaml:"fixed_baseline"`
	FixedExcitation float64 `yaml:"fixed_excitation"`
}

type yamlOrderflow struct {
	VPIN         yamlVPIN   `yaml:"vpin"`
	Hawkes       yamlHawkes `yaml:"hawkes"`
	EnableVPIN   bool       `yaml:"enable_vpin"`
	EnableHawkes bool       `yaml:"enable_hawkes"`
}

type yamlRegime struct {
	HMMStates     int `yaml:"hmm_states"`
	GMMComponents int `yaml:"gmm_components"`
	MinFitObs     int `yaml:"min_fit_obs"`
	RefitInterval int `yaml:"refit_interval"`
	VolWindow     int `yaml:"vol_window"`
	// RegimeLabelMap maps an HMM state index to a label string; required
	// (spec.md §9's open question: the mapping must be explicit, not
	// guessed).
	RegimeLabelMap map[int]string `yaml:"regime_label_map"`
}

type yamlGiller struct {
	BaseSize float64 `yaml:"base_size"`
	Exponent float64 `yaml:"exponent"`
}

type yamlDailyLoss struct {
	DailyLossLimit        float64 `yaml:"daily_loss_limit"`
	DailyLossPct          float64 `yaml:"daily_loss_pct"`
	ResetTimeUTC          string  `yaml:"reset_time_utc"`
	PerStrategy           bool    `yaml:"per_strategy"`
	ClosePositionsOnLimit bool    `yaml:"close_positions_on_limit"`
	WarningThresholdPct   float64 `yaml:"warning_threshold_pct"`
}

type yamlWalkForward struct {
	DataStart               string  `yaml:"data_start"` // RFC3339 date
	DataEnd                 string  `yaml:"data_end"`
	TrainMonths             int     `yaml:"train_months"`
	TestMonths              int     `yaml:"test_months"`
	StepMonths              int     `yaml:"step_months"`
	EmbargoBeforeDays       int     `yaml:"embargo_before_days"`
	EmbargoAfterDays        int     `yaml:"embargo_after_days"`
	MinWindows              int     `yaml:"min_windows"`
	MinProfitableWindowsPct float64 `yaml:"min_profitable_windows_pct"`
	MinTestSharpe           float64 `yaml:"min_test_sharpe"`
	MaxDrawdownThreshold    float64 `yaml:"max_drawdown_threshold"`
	MinRobustnessScore      float64 `yaml:"min_robustness_score"`
	Seed                    int64   `yaml:"seed"`
	NumTrials               int     `yaml:"num_trials"`
	MaxParallelWindows      int     `yaml:"max_parallel_windows"`
	PBOPermutations         int     `yaml:"pbo_permutations"`
}

// raw is the on-disk shape of the full config surface.
type raw struct {
	Orderflow  yamlOrderflow   `yaml:"orderflow"`
	Regime     yamlRegime      `yaml:"regime"`
	Giller     yamlGiller      `yaml:"giller"`
	DailyLoss  yamlDailyLoss   `yaml:"daily_loss"`
	WalkForward yamlWalkForward `yaml:"walk_forward"`
}

// AppConfig is the fully validated, in-memory config surface (spec.md §6).
type AppConfig struct {
	Orderflow   orderflow.Config
	Giller      sizing.Config
	DailyLoss   daypnl.DailyLossConfig
	Regime      regimecls.Config
	WalkForward walkforward.Config
}

// Load reads path, parses it as YAML, translates it into the domain
// Config structs, and validates every one of them. All config errors are
// fatal at start-up (spec.md §7's InvalidConfig kind).
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wfconfig: read %s: %w", path, err)
	}

	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wfconfig: parse %s: %w", path, err)
	}

	cfg, err := translate(r)
	if err != nil {
		return nil, fmt.Errorf("wfconfig: %s: %w", path, err)
	}
	return cfg, nil
}

func translate(r raw) (*AppConfig, error) {
	of := orderflow.Config{
		VPIN: vpin.Config{
			BucketSize:         r.Orderflow.VPIN.BucketSize,
			NBuckets:           r.Orderflow.VPIN.NBuckets,
			ClassificationMeth: classify.Method(r.Orderflow.VPIN.ClassificationMeth),
			MinBucketVolume:    r.Orderflow.VPIN.MinBucketVolume,
		},
		Hawkes: hawkes.Config{
			DecayRate:       r.Orderflow.Hawkes.DecayRate,
			LookbackTicks:   r.Orderflow.Hawkes.LookbackTicks,
			RefitInterval:   r.Orderflow.Hawkes.RefitInterval,
			UseFixedParams:  r.Orderflow.Hawkes.UseFixedParams,
			FixedBaseline:   r.Orderflow.Hawkes.FixedBaseline,
			FixedExcitation: r.Orderflow.Hawkes.FixedExcitation,
		},
		EnableVPIN:   r.Orderflow.EnableVPIN,
		EnableHawkes: r.Orderflow.EnableHawkes,
	}
	if err := of.Validate(); err != nil {
		return nil, fmt.Errorf("orderflow: %w", err)
	}

	regimeLabels := make(map[int]regimecls.RegimeLabel, len(r.Regime.RegimeLabelMap))
	for state, label := range r.Regime.RegimeLabelMap {
		regimeLabels[state] = regimecls.RegimeLabel(label)
	}
	regime := regimecls.Config{
		HMMStates:      r.Regime.HMMStates,
		GMMComponents:  r.Regime.GMMComponents,
		MinFitObs:      r.Regime.MinFitObs,
		RefitInterval:  r.Regime.RefitInterval,
		VolWindow:      r.Regime.VolWindow,
		RegimeLabelMap: regimeLabels,
	}
	if err := regime.Validate(); err != nil {
		return nil, fmt.Errorf("regime: %w", err)
	}

	giller := sizing.Config{BaseSize: r.Giller.BaseSize, Exponent: r.Giller.Exponent}
	if err := giller.Validate(); err != nil {
		return nil, fmt.Errorf("giller: %w", err)
	}

	dailyLoss := daypnl.DailyLossConfig{
		DailyLossLimit:        r.DailyLoss.DailyLossLimit,
		DailyLossPct:          r.DailyLoss.DailyLossPct,
		ResetTimeUTC:          r.DailyLoss.ResetTimeUTC,
		PerStrategy:           r.DailyLoss.PerStrategy,
		ClosePositionsOnLimit: r.DailyLoss.ClosePositionsOnLimit,
		WarningThresholdPct:   r.DailyLoss.WarningThresholdPct,
	}
	if err := dailyLoss.Validate(); err != nil {
		return nil, fmt.Errorf("daily_loss: %w", err)
	}

	dataStart, err := time.Parse("2006-01-02", r.WalkForward.DataStart)
	if err != nil {
		return nil, fmt.Errorf("walk_forward: invalid data_start %q: %w", r.WalkForward.DataStart, err)
	}
	dataEnd, err := time.Parse("2006-01-02", r.WalkForward.DataEnd)
	if err != nil {
		return nil, fmt.Errorf("walk_forward: invalid data_end %q: %w", r.WalkForward.DataEnd, err)
	}

	wf := walkforward.Config{
		DataStart:               dataStart.UTC(),
		DataEnd:                 dataEnd.UTC(),
		TrainMonths:             r.WalkForward.TrainMonths,
		TestMonths:              r.WalkForward.TestMonths,
		StepMonths:              r.WalkForward.StepMonths,
		EmbargoBeforeDays:       r.WalkForward.EmbargoBeforeDays,
		EmbargoAfterDays:        r.WalkForward.EmbargoAfterDays,
		MinWindows:              r.WalkForward.MinWindows,
		MinProfitableWindowsPct: r.WalkForward.MinProfitableWindowsPct,
		MinTestSharpe:           r.WalkForward.MinTestSharpe,
		MaxDrawdownThreshold:    r.WalkForward.MaxDrawdownThreshold,
		MinRobustnessScore:      r.WalkForward.MinRobustnessScore,
		Seed:                    r.WalkForward.Seed,
		NumTrials:               r.WalkForward.NumTrials,
		MaxParallelWindows:      r.WalkForward.MaxParallelWindows,
		PBOPermutations:         r.WalkForward.PBOPermutations,
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("walk_forward: %w", err)
	}

	return &AppConfig{
		Orderflow:   of,
		Giller:      giller,
		DailyLoss:   dailyLoss,
		Regime:      regime,
		WalkForward: wf,
	}, nil
}
