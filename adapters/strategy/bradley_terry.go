package strategy

import (
	"math"

	"mpcal/domain/ranking"
	"mpcal/ports"
)

// bradleyTerryModel holds MM-estimated worths in dense universe slots
type bradleyTerryModel struct {
	slots  map[int]int
	worths []float64
}

// energy is the negative log-likelihood of every pair o implies:
// -Σ_{a before b} log(w_a / (w_a + w_b)).
func (bt *bradleyTerryModel) energy(o ranking.Ordering) float64 {
	known := make([]int, 0, len(o))
	for _, idx := range o {
		if s, ok := bt.slots[idx]; ok {
			known = append(known, s)
		}
	}

	nll := 0.0
	for i := 0; i < len(known); i++ {
		wi := bt.worths[known[i]]
		for j := i + 1; j < len(known); j++ {
			nll -= math.Log(wi / (wi + bt.worths[known[j]]))
		}
	}
	return nll
}

func buildBradleyTerry(rows []ranking.Ordering, universe []int, _ ports.FitConfig) energyModel {
	slots := positionIndex(universe)
	return &bradleyTerryModel{
		slots:  slots,
		worths: estimateBradleyTerry(preferenceCounts(rows, slots), defaultMMSweeps),
	}
}

// estimateBradleyTerry runs the Minorization-Maximization updates
//
//	w_i = W_i / Σ_j n_ij / (w_i + w_j)
//
// Each competitor starts with one pseudo win and one pseudo loss against
// every other, which keeps all worths strictly positive even for elements
// that never win.
func estimateBradleyTerry(wins [][]float64, sweeps int) []float64 {
	n := len(wins)
	worths := make([]float64, n)
	for i := range worths {
		worths[i] = 1.0
	}
	if n < 2 {
		return worths
	}

	totalWins := make([]float64, n)
	for i := 0; i < n; i++ {
		totalWins[i] = float64(n - 1)
		for j := 0; j < n; j++ {
			totalWins[i] += wins[i][j]
		}
	}

	next := make([]float64, n)
	for sweep := 0; sweep < sweeps; sweep++ {
		for i := 0; i < n; i++ {
			denom := 0.0
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				matches := wins[i][j] + wins[j][i] + 2
				denom += matches / (worths[i] + worths[j])
			}
			next[i] = totalWins[i] / denom
		}
		if normalizeWorths(next, worths) < mmTolerance {
			break
		}
	}
	return worths
}

// normalizeWorths rescales next to mean 1, copies it into worths and returns
// the largest absolute change.
func normalizeWorths(next, worths []float64) float64 {
	sum := 0.0
	for _, w := range next {
		sum += w
	}
	scale := float64(len(next)) / sum

	delta := 0.0
	for i, w := range next {
		w *= scale
		if d := math.Abs(w - worths[i]); d > delta {
			delta = d
		}
		worths[i] = w
	}
	return delta
}
