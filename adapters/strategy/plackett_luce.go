package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"mpcal/domain/ranking"
	"mpcal/ports"
)

// PlackettLuce fits Plackett-Luce worths by MM and draws consensus orderings
// directly from the fitted model.
type PlackettLuce struct{}

var _ ports.Strategy = (*PlackettLuce)(nil)

// NewPlackettLuce creates the PL strategy
func NewPlackettLuce() *PlackettLuce {
	return &PlackettLuce{}
}

func (pl *PlackettLuce) Name() string { return NamePlackettLuce }

// choiceStage is one selection of the top element from the remaining set
type choiceStage struct {
	chosen    int
	remaining []int
}

type plackettLuceModel struct {
	slots  map[int]int
	worths []float64
}

// energy is the negative PL log-likelihood of o over fitted elements
func (m *plackettLuceModel) energy(o ranking.Ordering) float64 {
	known := make([]float64, 0, len(o))
	for _, idx := range o {
		if s, ok := m.slots[idx]; ok {
			known = append(known, m.worths[s])
		}
	}

	nll := 0.0
	suffix := 0.0
	for t := len(known) - 1; t >= 0; t-- {
		suffix += known[t]
		nll += math.Log(suffix) - math.Log(known[t])
	}
	return nll
}

// Fit estimates worths then draws SampleCount orderings via the Gumbel-max
// construction of sequential PL sampling.
func (pl *PlackettLuce) Fit(ctx context.Context, m *ranking.Matrix, cfg ports.FitConfig, rng *rand.Rand) (ports.FittedStrategy, error) {
	rows, universe, err := usableUniverse(NamePlackettLuce, m)
	if err != nil {
		return nil, err
	}

	slots := positionIndex(universe)
	sweeps := cfg.Iterations
	if sweeps < 1 {
		sweeps = defaultMMSweeps
	}
	model := &plackettLuceModel{
		slots:  slots,
		worths: estimatePlackettLuce(choiceStages(rows, slots), len(universe), sweeps),
	}

	count := cfg.SampleCount
	if count < 1 {
		count = 1
	}
	samples := make([]ranking.Ordering, 0, count)
	for k := 0; k < count; k++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("plackett-luce sampling interrupted: %w", err)
		}
		samples = append(samples, drawPlackettLuce(universe, model.worths, rng))
	}
	return newFittedState(model, universe, samples), nil
}

func choiceStages(rows []ranking.Ordering, slots map[int]int) []choiceStage {
	var stages []choiceStage
	for _, row := range rows {
		dense := make([]int, len(row))
		for i, idx := range row {
			dense[i] = slots[idx]
		}
		for t := 0; t < len(dense)-1; t++ {
			stages = append(stages, choiceStage{chosen: dense[t], remaining: dense[t:]})
		}
	}
	return stages
}

// estimatePlackettLuce is Hunter's MM for Plackett-Luce. A pseudo pairwise
// stage in each direction for every pair keeps the worths positive and
// identifiable when some element is never chosen.
func estimatePlackettLuce(stages []choiceStage, n int, sweeps int) []float64 {
	worths := make([]float64, n)
	for i := range worths {
		worths[i] = 1.0
	}
	if n < 2 {
		return worths
	}

	wins := make([]float64, n)
	for i := range wins {
		wins[i] = float64(n - 1)
	}
	for _, s := range stages {
		wins[s.chosen]++
	}

	denom := make([]float64, n)
	next := make([]float64, n)
	for sweep := 0; sweep < sweeps; sweep++ {
		for i := range denom {
			denom[i] = 0
		}
		for _, s := range stages {
			total := 0.0
			for _, j := range s.remaining {
				total += worths[j]
			}
			for _, j := range s.remaining {
				denom[j] += 1 / total
			}
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pair := 2 / (worths[i] + worths[j])
				denom[i] += pair
				denom[j] += pair
			}
		}
		for i := range next {
			next[i] = wins[i] / denom[i]
		}
		if normalizeWorths(next, worths) < mmTolerance {
			break
		}
	}
	return worths
}

// drawPlackettLuce sorts universe by log w + Gumbel noise, which is an exact
// draw from the PL distribution.
func drawPlackettLuce(universe []int, worths []float64, rng *rand.Rand) ranking.Ordering {
	keys := make([]float64, len(universe))
	for i := range universe {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		keys[i] = math.Log(worths[i]) - math.Log(-math.Log(u))
	}

	order := make([]int, len(universe))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] > keys[order[b]] })

	out := make(ranking.Ordering, len(order))
	for i, slot := range order {
		out[i] = universe[slot]
	}
	return out
}
