package calibration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// averageRanks converts values to 1-based ranks, averaging tied groups
func averageRanks(data []float64) []float64 {
	n := len(data)
	type pair struct {
		value float64
		index int
	}

	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{value: v, index: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		avg := float64(i+1) + float64(j-i-1)/2.0
		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avg
		}
		i = j
	}
	return ranks
}

func isConstant(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}

// spearman returns Pearson correlation of average ranks and its two-sided
// Student t p-value. degenerate is true when either input is constant or
// shorter than two, in which case rho and p are NaN.
func spearman(x, y []float64) (rho, p float64, degenerate bool) {
	if len(x) != len(y) || len(x) < 2 || isConstant(x) || isConstant(y) {
		return math.NaN(), math.NaN(), true
	}

	rho = stat.Correlation(averageRanks(x), averageRanks(y), nil)
	if rho > 1 {
		rho = 1
	} else if rho < -1 {
		rho = -1
	}
	return rho, spearmanPValue(rho, len(x)), false
}

func spearmanPValue(rho float64, n int) float64 {
	if n < 3 {
		return 1.0
	}
	if math.Abs(rho) == 1 {
		return 0.0
	}
	df := float64(n - 2)
	t := rho * math.Sqrt(df/(1-rho*rho))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}
