package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"mpcal/domain/ranking"
	"mpcal/ports"
)

// swapKernel selects how a proposal perturbs the current permutation
type swapKernel int

const (
	// adjacentSwap exchanges neighbours; each swap moves Kendall distance by one
	adjacentSwap swapKernel = iota
	// randomSwap exchanges two uniformly chosen positions
	randomSwap
)

const ctxCheckEvery = 256

// chainSampler is a Metropolis-Hastings sampler over permutations targeting
// exp(-energy).
type chainSampler struct {
	model  energyModel
	kernel swapKernel
}

// sample runs the chain from start and returns the last SampleCount thinned
// post burn-in states (at least one state is always returned).
func (s *chainSampler) sample(ctx context.Context, start ranking.Ordering, cfg ports.FitConfig, rng *rand.Rand) ([]ranking.Ordering, error) {
	current := start.Clone()
	if len(current) < 2 {
		return []ranking.Ordering{current}, nil
	}

	iterations := cfg.Iterations
	if iterations < 1 {
		iterations = 1
	}
	shuffles := cfg.Shuffles
	if shuffles < 1 {
		shuffles = 1
	}
	thinning := cfg.Thinning
	if thinning < 1 {
		thinning = 1
	}
	keep := cfg.SampleCount
	if keep < 1 {
		keep = 1
	}

	currentEnergy := s.model.energy(current)
	samples := make([]ranking.Ordering, 0, keep)
	proposal := make(ranking.Ordering, len(current))

	for it := 0; it < iterations; it++ {
		if it%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("sampler interrupted at iteration %d: %w", it, err)
			}
		}

		copy(proposal, current)
		s.perturb(proposal, shuffles, rng)
		proposalEnergy := s.model.energy(proposal)

		// Always consume one uniform so the stream advances identically
		// regardless of the acceptance path.
		u := rng.Float64()
		if proposalEnergy <= currentEnergy || u < math.Exp(currentEnergy-proposalEnergy) {
			current, proposal = proposal, current
			currentEnergy = proposalEnergy
		}

		if it < cfg.BurnIn || (it-cfg.BurnIn)%thinning != 0 {
			continue
		}
		if len(samples) == keep {
			copy(samples, samples[1:])
			samples = samples[:keep-1]
		}
		samples = append(samples, current.Clone())
	}

	if len(samples) == 0 {
		samples = append(samples, current.Clone())
	}
	return samples, nil
}

func (s *chainSampler) perturb(o ranking.Ordering, shuffles int, rng *rand.Rand) {
	n := len(o)
	for k := 0; k < shuffles; k++ {
		switch s.kernel {
		case adjacentSwap:
			i := rng.Intn(n - 1)
			o[i], o[i+1] = o[i+1], o[i]
		default:
			i := rng.Intn(n)
			j := rng.Intn(n - 1)
			if j >= i {
				j++
			}
			o[i], o[j] = o[j], o[i]
		}
	}
}
