package ports

import (
	"context"
	"math/rand"

	"mpcal/domain/ranking"
)

// FitConfig carries the sampler controls shared by every strategy
type FitConfig struct {
	Iterations  int     // MCMC iterations or MM sweeps
	Shuffles    int     // swaps per proposal
	BurnIn      int     // iterations discarded before sampling
	Thinning    int     // keep every Nth post burn-in state
	SampleCount int     // consensus orderings to keep
	RandomPerms int     // random-permutation probes used by diagnostics
	Temperature float64 // energy scale for Mallows-style models
}

// Strategy is a rank-aggregation model that can be fitted to partial rankings
type Strategy interface {
	Name() string
	// Fit consumes the matrix and returns a fitted state. Identical rng state
	// yields identical results. Returns core.ErrInsufficientData when no row
	// carries a present cell.
	Fit(ctx context.Context, m *ranking.Matrix, cfg FitConfig, rng *rand.Rand) (FittedStrategy, error)
}

// FittedStrategy is the opaque state produced by Strategy.Fit
type FittedStrategy interface {
	// SampledCombinedOrderings returns the consensus orderings the strategy
	// treats as canonical after fitting.
	SampledCombinedOrderings() []ranking.Ordering
	// UniqueElements returns the sorted universe the strategy operated over
	UniqueElements() []int
	// Energy scores an ordering; lower means more consistent with the
	// evidence. Finite for every permutation of UniqueElements.
	Energy(o ranking.Ordering) float64
	// Best returns the lowest-energy consensus ordering
	Best() ranking.Ordering
}

// StrategyRegistry resolves configured strategy names
type StrategyRegistry interface {
	Get(name string) (Strategy, error)
	Names() []string
}
