package strategy

import (
	"context"
	"math/rand"

	"mpcal/domain/ranking"
	"mpcal/ports"
)

// Strategy names as written in configuration
const (
	NamePlackettLuce = "PL"
	NameBradleyTerry = "BT"
	NamePairwise     = "Pairwise"
	NameMallowsTau   = "Mallows_Tau"
	NameMallows      = "Mallows"
)

const (
	defaultMMSweeps    = 100
	mmTolerance        = 1e-9
	defaultTemperature = 1.0
)

// EnergyStrategy fits an energy model to the rows and samples consensus
// orderings from exp(-energy) with a Metropolis-Hastings chain.
type EnergyStrategy struct {
	name   string
	kernel swapKernel
	build  func(rows []ranking.Ordering, universe []int, cfg ports.FitConfig) energyModel
}

var _ ports.Strategy = (*EnergyStrategy)(nil)

// NewBradleyTerry samples from the Bradley-Terry likelihood of every implied pair
func NewBradleyTerry() *EnergyStrategy {
	return &EnergyStrategy{name: NameBradleyTerry, kernel: randomSwap, build: buildBradleyTerry}
}

// NewPairwise penalises each violated pair by the share of rows disagreeing with it
func NewPairwise() *EnergyStrategy {
	return &EnergyStrategy{name: NamePairwise, kernel: adjacentSwap, build: buildPairwise}
}

// NewMallowsTau is the Mallows model under Kendall distance
func NewMallowsTau() *EnergyStrategy {
	return &EnergyStrategy{name: NameMallowsTau, kernel: adjacentSwap, build: buildMallowsTau}
}

// NewMallows is the Mallows model under Spearman footrule distance
func NewMallows() *EnergyStrategy {
	return &EnergyStrategy{name: NameMallows, kernel: randomSwap, build: buildMallowsFootrule}
}

func (s *EnergyStrategy) Name() string { return s.name }

// Fit builds the model and runs the chain from the mean-position ordering
func (s *EnergyStrategy) Fit(ctx context.Context, m *ranking.Matrix, cfg ports.FitConfig, rng *rand.Rand) (ports.FittedStrategy, error) {
	rows, universe, err := usableUniverse(s.name, m)
	if err != nil {
		return nil, err
	}

	model := s.build(rows, universe, cfg)
	sampler := &chainSampler{model: model, kernel: s.kernel}
	samples, err := sampler.sample(ctx, initialOrdering(rows, universe), cfg, rng)
	if err != nil {
		return nil, err
	}
	return newFittedState(model, universe, samples), nil
}

func temperature(cfg ports.FitConfig) float64 {
	if cfg.Temperature <= 0 {
		return defaultTemperature
	}
	return cfg.Temperature
}

// preferenceModel charges weight[b][a]*scale for every pair placed a before b
type preferenceModel struct {
	slots  map[int]int
	weight [][]float64
	scale  float64
}

func (p *preferenceModel) energy(o ranking.Ordering) float64 {
	known := make([]int, 0, len(o))
	for _, idx := range o {
		if s, ok := p.slots[idx]; ok {
			known = append(known, s)
		}
	}

	total := 0.0
	for i := 0; i < len(known); i++ {
		for j := i + 1; j < len(known); j++ {
			total += p.weight[known[j]][known[i]]
		}
	}
	return total * p.scale
}

// buildMallowsTau: Σ_rows Kendall(o, row) equals the number of row
// preferences o violates, so the energy reads straight off the counts.
func buildMallowsTau(rows []ranking.Ordering, universe []int, cfg ports.FitConfig) energyModel {
	slots := positionIndex(universe)
	return &preferenceModel{
		slots:  slots,
		weight: preferenceCounts(rows, slots),
		scale:  1 / temperature(cfg),
	}
}

func buildPairwise(rows []ranking.Ordering, universe []int, _ ports.FitConfig) energyModel {
	slots := positionIndex(universe)
	wins := preferenceCounts(rows, slots)

	n := len(universe)
	weight := make([][]float64, n)
	for a := range weight {
		weight[a] = make([]float64, n)
		for b := 0; b < n; b++ {
			if total := wins[a][b] + wins[b][a]; total > 0 {
				weight[a][b] = wins[a][b] / total
			}
		}
	}
	return &preferenceModel{slots: slots, weight: weight, scale: 1}
}

// footruleModel sums Spearman footrule distances to every row
type footruleModel struct {
	rows  []ranking.Ordering
	scale float64
}

func (f *footruleModel) energy(o ranking.Ordering) float64 {
	total := 0
	for _, row := range f.rows {
		total += ranking.FootruleDistance(o, row)
	}
	return float64(total) * f.scale
}

func buildMallowsFootrule(rows []ranking.Ordering, _ []int, cfg ports.FitConfig) energyModel {
	return &footruleModel{rows: rows, scale: 1 / temperature(cfg)}
}
