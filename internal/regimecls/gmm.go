package regimecls

import "math"

const gmmComponents = 3

// gmmModel is a fitted 3-component 1-D Gaussian mixture over rolling
// volatility, used to band the current bar into LOW/MEDIUM/HIGH.
type gmmModel struct {
	weights [gmmComponents]float64
	means   [gmmComponents]float64
	vars    [gmmComponents]float64
	// order[i] is the component index of the i-th ranked (ascending mean)
	// component, so order[0] is LOW, order[1] MEDIUM, order[2] HIGH.
	order [gmmComponents]int
}

// fitGMM1D fits a 3-component Gaussian mixture via EM, seeded from a
// k-means split of data.
func fitGMM1D(data []float64, iters int) *gmmModel {
	means, vars := kmeans1D(data, gmmComponents, 25)
	weights := [gmmComponents]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	var m [gmmComponents]float64
	var v [gmmComponents]float64
	copy(m[:], means)
	copy(v[:], vars)

	n := len(data)
	resp := make([][gmmComponents]float64, n)

	for iter := 0; iter < iters; iter++ {
		// E-step.
		for t, x := range data {
			var total float64
			for c := 0; c < gmmComponents; c++ {
				resp[t][c] = weights[c] * gaussianPDF(x, m[c], v[c])
				total += resp[t][c]
			}
			total = safeDiv(total)
			for c := 0; c < gmmComponents; c++ {
				resp[t][c] /= total
			}
		}
		// M-step.
		for c := 0; c < gmmComponents; c++ {
			var nC, sumX float64
			for t, x := range data {
				nC += resp[t][c]
				sumX += resp[t][c] * x
			}
			nC = safeDiv(nC)
			mean := sumX / nC
			var sumV float64
			for t, x := range data {
				d := x - mean
				sumV += resp[t][c] * d * d
			}
			variance := sumV / nC
			if variance < 1e-6 {
				variance = 1e-6
			}
			m[c] = mean
			v[c] = variance
			weights[c] = nC / float64(n)
		}
	}

	model := &gmmModel{weights: weights, means: m, vars: v}
	model.order = rankAscending(m)
	return model
}

func rankAscending(means [gmmComponents]float64) [gmmComponents]int {
	idx := [gmmComponents]int{0, 1, 2}
	for i := 1; i < gmmComponents; i++ {
		for j := i; j > 0 && means[idx[j-1]] > means[idx[j]]; j-- {
			idx[j-1], idx[j] = idx[j], idx[j-1]
		}
	}
	return idx
}

// classify returns the most responsible component's volatility band.
func (m *gmmModel) classify(x float64) VolLevel {
	best, bestResp := 0, math.Inf(-1)
	for c := 0; c < gmmComponents; c++ {
		r := m.weights[c] * gaussianPDF(x, m.means[c], m.vars[c])
		if r > bestResp {
			bestResp, best = r, c
		}
	}
	for rank, compIdx := range m.order {
		if compIdx == best {
			switch rank {
			case 0:
				return VolLow
			case 1:
				return VolMedium
			default:
				return VolHigh
			}
		}
	}
	return VolMedium
}
