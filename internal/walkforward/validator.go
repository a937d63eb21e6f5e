// Package walkforward implements the walk-forward validator (C9): it
// generates purged/embargoed train/test windows, drives an external
// strategy evaluator over each, and aggregates the results into a
// robustness-scored pass/fail verdict (spec.md §4.9).
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/wfrisk/internal/robustness"
)

// ErrInsufficientData is returned when the configured data span cannot
// produce cfg.MinWindows windows.
var ErrInsufficientData = errors.New("walkforward: insufficient data")

const epsilon = 1e-9

// WindowMetrics is what the external evaluator returns for a single
// train or test range (spec.md §3).
type WindowMetrics struct {
	Sharpe      float64
	Calmar      float64
	MaxDrawdown float64 // in [0,1]
	TotalReturn float64
	WinRate     float64 // in [0,1]
	TradeCount  int
}

// WindowResult pairs a Window with its train/test metrics and the
// resulting train->test Sharpe degradation.
type WindowResult struct {
	Window      Window
	Train       WindowMetrics
	Test        WindowMetrics
	Degradation float64
	Failed      bool
}

// WalkForwardResult is the full output of Validate (spec.md §3).
type WalkForwardResult struct {
	Config                Config
	Windows               []WindowResult
	RobustnessScore        float64
	Passed                 bool
	ProfitableWindowsPct   float64
	AvgTestSharpe          float64
	AvgTestReturn          float64
	WorstDrawdown          float64
	DeflatedSharpe         float64
	PBO                    float64
	NumTrials              int
	WallTimeS              float64
	Diagnostic             string
}

// Evaluator is the host-supplied strategy backtest function (spec.md §6's
// "Strategy evaluator" capability). Implementations must be safe to call
// concurrently when Config.MaxParallelWindows > 1.
type Evaluator interface {
	Evaluate(ctx context.Context, start, end time.Time) (WindowMetrics, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(ctx context.Context, start, end time.Time) (WindowMetrics, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, start, end time.Time) (WindowMetrics, error) {
	return f(ctx, start, end)
}

// Validator runs the walk-forward procedure for a fixed Config.
type Validator struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker
}

// New constructs a Validator. The evaluator call is wrapped in a circuit
// breaker so an evaluator that fails 5 times in a row trips open instead of
// being called for every remaining window. The breaker does not time out a
// call that hangs.
func New(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "walkforward-evaluator",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Validator{cfg: cfg, cb: cb}, nil
}

// Validate runs the full window-generation, evaluation, and scoring
// pipeline against code (spec.md §4.9). WallTimeS is measured with the
// real clock. ctx cancellation is honored between windows.
func (v *Validator) Validate(ctx context.Context, code string, evaluator Evaluator) (WalkForwardResult, error) {
	start := time.Now()

	windows, err := buildWindows(v.cfg)
	if err != nil {
		return WalkForwardResult{}, err
	}

	results, evalErrCount := v.evaluateWindows(ctx, code, evaluator, windows)

	result := v.aggregate(results)
	result.Config = v.cfg
	result.WallTimeS = time.Since(start).Seconds()

	if evalErrCount*2 > len(windows) {
		result.Passed = false
		result.Diagnostic = fmt.Sprintf("walkforward: %d/%d window evaluations failed, exceeding half", evalErrCount, len(windows))
	}
	return result, nil
}

func (v *Validator) evaluateWindows(ctx context.Context, code string, evaluator Evaluator, windows []Window) ([]WindowResult, int) {
	results := make([]WindowResult, len(windows))
	failCount := 0

	if v.cfg.MaxParallelWindows > 1 {
		return v.evaluateParallel(ctx, evaluator, windows)
	}

	for i, w := range windows {
		if ctx.Err() != nil {
			break
		}
		r, failed := v.evaluateOne(ctx, evaluator, w)
		results[i] = r
		if failed {
			failCount++
		}
	}
	return results, failCount
}

func (v *Validator) evaluateParallel(ctx context.Context, evaluator Evaluator, windows []Window) ([]WindowResult, int) {
	results := make([]WindowResult, len(windows))
	limiter := rate.NewLimiter(rate.Limit(v.cfg.MaxParallelWindows), v.cfg.MaxParallelWindows)
	inFlight := make(chan struct{}, v.cfg.MaxParallelWindows)

	var wg sync.WaitGroup
	var mu sync.Mutex
	failCount := 0

	for i, w := range windows {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		inFlight <- struct{}{}
		wg.Add(1)
		go func(i int, w Window) {
			defer wg.Done()
			defer func() { <-inFlight }()
			r, failed := v.evaluateOne(ctx, evaluator, w)
			mu.Lock()
			results[i] = r
			if failed {
				failCount++
			}
			mu.Unlock()
		}(i, w)
	}
	wg.Wait()
	return results, failCount
}

// evaluateOne runs the per-window protocol (spec.md §4.9): evaluate train,
// evaluate test, compute degradation. A failed evaluator call is recorded
// as a zero-trade window, not propagated (spec.md §7 EvaluatorFailure).
func (v *Validator) evaluateOne(ctx context.Context, evaluator Evaluator, w Window) (WindowResult, bool) {
	train, trainErr := v.callEvaluator(ctx, evaluator, w.TrainStart, w.TrainEnd)
	test, testErr := v.callEvaluator(ctx, evaluator, w.TestStart, w.TestEnd)

	if trainErr != nil || testErr != nil {
		log.Warn().Int("window_id", w.ID).AnErr("train_err", trainErr).AnErr("test_err", testErr).
			Msg("walkforward: evaluator failure, recording zero-trade window")
		return WindowResult{Window: w, Failed: true}, true
	}

	degradation := test.Sharpe / math.Max(train.Sharpe, epsilon)
	return WindowResult{Window: w, Train: train, Test: test, Degradation: degradation}, false
}

func (v *Validator) callEvaluator(ctx context.Context, evaluator Evaluator, start, end time.Time) (WindowMetrics, error) {
	out, err := v.cb.Execute(func() (interface{}, error) {
		return evaluator.Evaluate(ctx, start, end)
	})
	if err != nil {
		return WindowMetrics{}, err
	}
	return out.(WindowMetrics), nil
}

func (v *Validator) aggregate(results []WindowResult) WalkForwardResult {
	n := len(results)
	if n == 0 {
		return WalkForwardResult{}
	}

	testReturns := make([]float64, n)
	trainSharpes := make([]float64, n)
	testSharpes := make([]float64, n)

	profitable := 0
	aboveMinSharpe := 0
	sumTestSharpe, sumTestReturn, worstDD := 0.0, 0.0, 0.0

	for i, r := range results {
		testReturns[i] = r.Test.TotalReturn
		trainSharpes[i] = r.Train.Sharpe
		testSharpes[i] = r.Test.Sharpe

		if r.Test.TotalReturn > 0 {
			profitable++
		}
		if r.Test.Sharpe >= v.cfg.MinTestSharpe {
			aboveMinSharpe++
		}
		sumTestSharpe += r.Test.Sharpe
		sumTestReturn += r.Test.TotalReturn
		worstDD = math.Max(worstDD, r.Test.MaxDrawdown)
	}

	consistency := robustness.Consistency(testReturns)
	profitabilityScore := robustness.Profitability(testReturns)
	degradation, _ := robustness.Degradation(trainSharpes, testSharpes)
	score := robustness.Score(consistency, profitabilityScore, degradation)

	numTrials := v.cfg.NumTrials
	if numTrials <= 0 {
		numTrials = n
	}
	avgTestSharpe := sumTestSharpe / float64(n)
	dsr := robustness.DSR(avgTestSharpe, numTrials)

	pbo, _ := robustness.PBO(trainSharpes, testSharpes, v.cfg.PBOPermutations, v.cfg.Seed)

	profitableWindowsPct := float64(profitable) / float64(n)

	passed := score >= v.cfg.MinRobustnessScore &&
		profitableWindowsPct >= v.cfg.MinProfitableWindowsPct &&
		worstDD <= v.cfg.MaxDrawdownThreshold &&
		aboveMinSharpe > n/2

	return WalkForwardResult{
		Windows:              results,
		RobustnessScore:       score,
		Passed:                passed,
		ProfitableWindowsPct:  profitableWindowsPct,
		AvgTestSharpe:         avgTestSharpe,
		AvgTestReturn:         sumTestReturn / float64(n),
		WorstDrawdown:         worstDD,
		DeflatedSharpe:        dsr,
		PBO:                   pbo,
		NumTrials:             numTrials,
	}
}
