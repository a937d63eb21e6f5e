// Package robustness implements the walk-forward robustness metrics (C10):
// consistency, profitability, train/test degradation, the composite
// robustness score, deflated Sharpe ratio, and probability of backtest
// overfitting (spec.md §4.10).
package robustness

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const epsilon = 1e-9

// Consistency rewards low dispersion relative to the average magnitude of
// per-window returns: 1 - min(stdev/mean(|r|), 1).
func Consistency(windowReturns []float64) float64 {
	if len(windowReturns) == 0 {
		return 0
	}
	meanAbs := 0.0
	for _, r := range windowReturns {
		meanAbs += math.Abs(r)
	}
	meanAbs /= float64(len(windowReturns))

	ratio := stdev(windowReturns) / math.Max(meanAbs, epsilon)
	return 1 - math.Min(ratio, 1)
}

// Profitability is the fraction of windows with a positive return.
func Profitability(windowReturns []float64) float64 {
	if len(windowReturns) == 0 {
		return 0
	}
	n := 0
	for _, r := range windowReturns {
		if r > 0 {
			n++
		}
	}
	return float64(n) / float64(len(windowReturns))
}

// Degradation averages, across windows, how much of the in-sample Sharpe
// survives out-of-sample: mean(min(test/max(train,eps), 1)). A window whose
// test Sharpe matches or beats its train Sharpe contributes 1; one that
// collapses contributes something close to 0.
func Degradation(trainSharpes, testSharpes []float64) (float64, error) {
	if len(trainSharpes) != len(testSharpes) {
		return 0, fmt.Errorf("robustness: train/test length mismatch (%d vs %d)", len(trainSharpes), len(testSharpes))
	}
	if len(trainSharpes) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i := range trainSharpes {
		ratio := testSharpes[i] / math.Max(trainSharpes[i], epsilon)
		sum += math.Min(ratio, 1)
	}
	return sum / float64(len(trainSharpes)), nil
}

// Score combines consistency, profitability, and degradation into the
// spec's 0-100 composite robustness score: 100*(0.3C + 0.4P + 0.3D).
func Score(consistency, profitability, degradation float64) float64 {
	return 100 * (0.3*consistency + 0.4*profitability + 0.3*degradation)
}

// Phi is the standard normal CDF.
func Phi(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// PhiInv is the standard normal inverse CDF (probit), valid for p in (0,1).
func PhiInv(p float64) float64 {
	p = math.Max(epsilon, math.Min(1-epsilon, p))
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// DSR computes the deflated Sharpe ratio for an observed Sharpe ratio sr
// estimated from n windows: Phi^-1(Phi(sr) - ln(n)/sqrt(n)). The penalty
// ln(n)/sqrt(n) is 0 at n=1, largest near n=e^2 (about 7.4), and shrinks
// slowly beyond that.
func DSR(sr float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	adjusted := Phi(sr) - math.Log(float64(n))/math.Sqrt(float64(n))
	return PhiInv(adjusted)
}

// PBO estimates the probability of backtest overfitting by repeatedly
// permuting window order, splitting the permutation in half, and checking
// whether the first half's median train Sharpe exceeds the second half's
// median test Sharpe. A strategy whose out-of-sample performance tracks its
// in-sample performance (low degradation) rarely satisfies that inequality
// by construction; one whose in-sample Sharpe is inflated relative to noisy
// out-of-sample performance satisfies it almost always.
//
// permutations defaults to 100 when <= 0. Each permutation draws its own RNG
// seeded from seed+m so results are reproducible without permutations
// sharing a single stream.
func PBO(trainSharpes, testSharpes []float64, permutations int, seed int64) (float64, error) {
	n := len(trainSharpes)
	if n != len(testSharpes) {
		return 0, fmt.Errorf("robustness: train/test length mismatch (%d vs %d)", n, len(testSharpes))
	}
	if permutations <= 0 {
		permutations = 100
	}
	half := n / 2
	if half == 0 {
		return 0, nil
	}

	count := 0
	for m := 0; m < permutations; m++ {
		rng := rand.New(rand.NewSource(seed + int64(m)))
		perm := rng.Perm(n)

		isVals := make([]float64, 0, half)
		oosVals := make([]float64, 0, n-half)
		for i, idx := range perm {
			if i < half {
				isVals = append(isVals, trainSharpes[idx])
			} else {
				oosVals = append(oosVals, testSharpes[idx])
			}
		}
		if median(isVals) > median(oosVals) {
			count++
		}
	}
	return float64(count) / float64(permutations), nil
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
