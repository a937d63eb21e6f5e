package regimecls

import "math"

// hmmModel holds the fitted parameters of a 1-D Gaussian hidden Markov
// model: K emission Gaussians, a K×K transition matrix, and an initial
// state distribution.
type hmmModel struct {
	k      int
	pi     []float64
	trans  [][]float64
	means  []float64
	vars   []float64
}

func gaussianPDF(x, mean, variance float64) float64 {
	if variance < 1e-9 {
		variance = 1e-9
	}
	diff := x - mean
	return math.Exp(-diff*diff/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}

// kmeans1D performs a small number of Lloyd iterations over 1-D data,
// seeding centroids from evenly spaced quantiles. It is used only to
// initialize the Baum-Welch EM below and the GMM EM in gmm.go, not as the
// final fit.
func kmeans1D(data []float64, k, iters int) (means, vars []float64) {
	sorted := append([]float64(nil), data...)
	sortFloats(sorted)

	means = make([]float64, k)
	for i := 0; i < k; i++ {
		idx := (i + 1) * (len(sorted) - 1) / (k + 1)
		means[i] = sorted[idx]
	}

	assign := make([]int, len(data))
	for iter := 0; iter < iters; iter++ {
		for i, x := range data {
			best, bestDist := 0, math.Inf(1)
			for j, m := range means {
				d := (x - m) * (x - m)
				if d < bestDist {
					bestDist, best = d, j
				}
			}
			assign[i] = best
		}
		sums := make([]float64, k)
		counts := make([]int, k)
		for i, x := range data {
			sums[assign[i]] += x
			counts[assign[i]]++
		}
		for j := range means {
			if counts[j] > 0 {
				means[j] = sums[j] / float64(counts[j])
			}
		}
	}

	vars = make([]float64, k)
	counts := make([]int, k)
	for i, x := range data {
		d := x - means[assign[i]]
		vars[assign[i]] += d * d
		counts[assign[i]]++
	}
	for j := range vars {
		if counts[j] > 1 {
			vars[j] /= float64(counts[j])
		} else {
			vars[j] = 1e-4
		}
	}
	return means, vars
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// fitGaussianHMM fits a K-state Gaussian HMM to obs via scaled Baum-Welch
// EM (Rabiner's scaling scheme), seeded from a k-means split of obs.
func fitGaussianHMM(obs []float64, k, iters int) *hmmModel {
	means, vars := kmeans1D(obs, k, 25)

	trans := make([][]float64, k)
	for i := range trans {
		trans[i] = make([]float64, k)
		for j := range trans[i] {
			if i == j {
				trans[i][j] = 0.85
			} else {
				trans[i][j] = 0.15 / float64(k-1)
			}
		}
	}
	pi := make([]float64, k)
	for i := range pi {
		pi[i] = 1.0 / float64(k)
	}

	n := len(obs)
	for iter := 0; iter < iters; iter++ {
		b := make([][]float64, n)
		for t := 0; t < n; t++ {
			b[t] = make([]float64, k)
			for i := 0; i < k; i++ {
				b[t][i] = gaussianPDF(obs[t], means[i], vars[i])
			}
		}

		alpha := make([][]float64, n)
		c := make([]float64, n)
		alpha[0] = make([]float64, k)
		for i := 0; i < k; i++ {
			alpha[0][i] = pi[i] * b[0][i]
			c[0] += alpha[0][i]
		}
		c[0] = safeDiv(c[0])
		for i := range alpha[0] {
			alpha[0][i] /= c[0]
		}
		for t := 1; t < n; t++ {
			alpha[t] = make([]float64, k)
			for i := 0; i < k; i++ {
				var sum float64
				for j := 0; j < k; j++ {
					sum += alpha[t-1][j] * trans[j][i]
				}
				alpha[t][i] = sum * b[t][i]
				c[t] += alpha[t][i]
			}
			c[t] = safeDiv(c[t])
			for i := range alpha[t] {
				alpha[t][i] /= c[t]
			}
		}

		beta := make([][]float64, n)
		beta[n-1] = make([]float64, k)
		for i := range beta[n-1] {
			beta[n-1][i] = 1
		}
		for t := n - 2; t >= 0; t-- {
			beta[t] = make([]float64, k)
			for i := 0; i < k; i++ {
				var sum float64
				for j := 0; j < k; j++ {
					sum += trans[i][j] * b[t+1][j] * beta[t+1][j]
				}
				beta[t][i] = sum / c[t+1]
			}
		}

		gamma := make([][]float64, n)
		for t := 0; t < n; t++ {
			gamma[t] = make([]float64, k)
			var total float64
			for i := 0; i < k; i++ {
				gamma[t][i] = alpha[t][i] * beta[t][i]
				total += gamma[t][i]
			}
			total = safeDiv(total)
			for i := range gamma[t] {
				gamma[t][i] /= total
			}
		}

		xiSum := make([][]float64, k)
		for i := range xiSum {
			xiSum[i] = make([]float64, k)
		}
		gammaSumExclLast := make([]float64, k)
		for t := 0; t < n-1; t++ {
			for i := 0; i < k; i++ {
				gammaSumExclLast[i] += gamma[t][i]
				for j := 0; j < k; j++ {
					xiSum[i][j] += alpha[t][i] * trans[i][j] * b[t+1][j] * beta[t+1][j] / c[t+1]
				}
			}
		}

		for i := 0; i < k; i++ {
			pi[i] = gamma[0][i]
			denom := safeDiv(gammaSumExclLast[i])
			for j := 0; j < k; j++ {
				trans[i][j] = xiSum[i][j] / denom
			}
		}

		for i := 0; i < k; i++ {
			var sumG, sumGX float64
			for t := 0; t < n; t++ {
				sumG += gamma[t][i]
				sumGX += gamma[t][i] * obs[t]
			}
			sumG = safeDiv(sumG)
			means[i] = sumGX / sumG
		}
		for i := 0; i < k; i++ {
			var sumG, sumGV float64
			for t := 0; t < n; t++ {
				d := obs[t] - means[i]
				sumG += gamma[t][i]
				sumGV += gamma[t][i] * d * d
			}
			sumG = safeDiv(sumG)
			v := sumGV / sumG
			if v < 1e-6 {
				v = 1e-6
			}
			vars[i] = v
		}
	}

	return &hmmModel{k: k, pi: pi, trans: trans, means: means, vars: vars}
}

func safeDiv(x float64) float64 {
	if x < 1e-300 {
		return 1e-300
	}
	return x
}

// onlineViterbi tracks the running max-log-probability path ending in each
// state, updated in O(K²) per observation rather than rescanning the full
// history — the same avoid-O(N)-rescan shape used by the Hawkes intensity
// recurrence.
type onlineViterbi struct {
	model *hmmModel
	delta []float64 // log-domain
}

func newOnlineViterbi(m *hmmModel) *onlineViterbi {
	return &onlineViterbi{model: m}
}

// seed replays the full observation window once to establish the initial
// delta vector; used right after a (re)fit.
func (v *onlineViterbi) seed(obs []float64) {
	k := v.model.k
	v.delta = make([]float64, k)
	for i := 0; i < k; i++ {
		v.delta[i] = math.Log(safeDiv(v.model.pi[i])) + math.Log(safeDiv(gaussianPDF(obs[0], v.model.means[i], v.model.vars[i])))
	}
	for t := 1; t < len(obs); t++ {
		v.step(obs[t])
	}
}

// step folds one new observation into the running Viterbi state.
func (v *onlineViterbi) step(x float64) {
	k := v.model.k
	next := make([]float64, k)
	maxDelta := math.Inf(-1)
	for _, d := range v.delta {
		if d > maxDelta {
			maxDelta = d
		}
	}
	for j := 0; j < k; j++ {
		best := math.Inf(-1)
		for i := 0; i < k; i++ {
			// Re-base by maxDelta before taking logs of the transition
			// matrix to keep the running value numerically stable over
			// long streams without changing the argmax.
			cand := (v.delta[i] - maxDelta) + math.Log(safeDiv(v.model.trans[i][j]))
			if cand > best {
				best = cand
			}
		}
		next[j] = best + math.Log(safeDiv(gaussianPDF(x, v.model.means[j], v.model.vars[j])))
	}
	v.delta = next
}

// current returns the most likely state and its softmax-normalized
// confidence among the K running path scores.
func (v *onlineViterbi) current() (state int, confidence float64) {
	maxDelta := math.Inf(-1)
	state = 0
	for i, d := range v.delta {
		if d > maxDelta {
			maxDelta, state = d, i
		}
	}
	var sumExp float64
	for _, d := range v.delta {
		sumExp += math.Exp(d - maxDelta)
	}
	confidence = 1.0 / sumExp
	return state, confidence
}
