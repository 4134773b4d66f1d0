package strategy

import (
	"math"
	"sort"

	"mpcal/domain/core"
	"mpcal/domain/ranking"
	"mpcal/ports"
)

// energyModel scores a full or partial ordering of the fitted universe
type energyModel interface {
	energy(o ranking.Ordering) float64
}

// fittedState is the opaque state every strategy in this package returns
type fittedState struct {
	model     energyModel
	universe  []int
	orderings []ranking.Ordering
	best      ranking.Ordering
}

var _ ports.FittedStrategy = (*fittedState)(nil)

func newFittedState(model energyModel, universe []int, orderings []ranking.Ordering) *fittedState {
	f := &fittedState{model: model, universe: universe, orderings: orderings}

	bestEnergy := math.Inf(1)
	for _, o := range orderings {
		if e := model.energy(o); e < bestEnergy {
			bestEnergy = e
			f.best = o
		}
	}
	if f.best == nil && len(orderings) > 0 {
		f.best = orderings[0]
	}
	return f
}

func (f *fittedState) SampledCombinedOrderings() []ranking.Ordering {
	out := make([]ranking.Ordering, len(f.orderings))
	for i, o := range f.orderings {
		out[i] = o.Clone()
	}
	return out
}

func (f *fittedState) UniqueElements() []int {
	out := make([]int, len(f.universe))
	copy(out, f.universe)
	return out
}

func (f *fittedState) Energy(o ranking.Ordering) float64 {
	return f.model.energy(o)
}

func (f *fittedState) Best() ranking.Ordering {
	return f.best.Clone()
}

// usableUniverse returns the rows and sorted universe of m, or an
// insufficient-data error when no row has a present cell.
func usableUniverse(name string, m *ranking.Matrix) ([]ranking.Ordering, []int, error) {
	if m == nil {
		return nil, nil, core.NewInsufficientDataError(name, "no partial ranking matrix")
	}
	rows := m.UsableRows()
	if len(rows) == 0 {
		return nil, nil, core.NewInsufficientDataError(name, "no usable partial rankings")
	}
	return rows, m.UniqueElements(), nil
}

// positionIndex maps universe elements to dense 0..n-1 slots
func positionIndex(universe []int) map[int]int {
	idx := make(map[int]int, len(universe))
	for i, u := range universe {
		idx[u] = i
	}
	return idx
}

// preferenceCounts builds wins[a][b] = number of rows ranking a above b, in
// dense universe slots.
func preferenceCounts(rows []ranking.Ordering, slots map[int]int) [][]float64 {
	n := len(slots)
	wins := make([][]float64, n)
	for i := range wins {
		wins[i] = make([]float64, n)
	}
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			a := slots[row[i]]
			for j := i + 1; j < len(row); j++ {
				wins[a][slots[row[j]]]++
			}
		}
	}
	return wins
}

// initialOrdering ranks the universe by mean relative position across rows
// (0 = top, 1 = bottom). Elements never seen in a multi-element row sit in
// the middle; ties keep index order.
func initialOrdering(rows []ranking.Ordering, universe []int) ranking.Ordering {
	sum := make(map[int]float64, len(universe))
	count := make(map[int]float64, len(universe))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		denom := float64(len(row) - 1)
		for pos, idx := range row {
			sum[idx] += float64(pos) / denom
			count[idx]++
		}
	}

	score := make(map[int]float64, len(universe))
	for _, u := range universe {
		if count[u] == 0 {
			score[u] = 0.5
			continue
		}
		score[u] = sum[u] / count[u]
	}

	out := ranking.Ordering(append([]int(nil), universe...))
	sortStableBy(out, func(a, b int) bool { return score[a] < score[b] })
	return out
}

func sortStableBy(o ranking.Ordering, less func(a, b int) bool) {
	sort.SliceStable(o, func(i, j int) bool { return less(o[i], o[j]) })
}
