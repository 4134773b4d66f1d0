package calibration

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"mpcal/domain/core"
	"mpcal/domain/ranking"
	"mpcal/ports"
)

// MinConfidentPerms is the K below which a statistic is flagged low-confidence
const MinConfidentPerms = 30

// Result is the calibration statistic for one fitted strategy
type Result struct {
	Rho           float64   `json:"spearman_rho"`
	PValue        float64   `json:"spearman_p"`
	TruthRho      float64   `json:"truth_rho"`
	NRandomPerms  int       `json:"n_random_perms"`
	LowConfidence bool      `json:"low_confidence"`
	Degenerate    bool      `json:"degenerate"`
	Energies      []float64 `json:"-"`
	MeanDistances []float64 `json:"-"`
}

// Evaluator correlates strategy energy with rank distance to reference
// orderings over uniformly random permutations.
type Evaluator struct {
	randomPerms int
}

// NewEvaluator creates an evaluator drawing k random permutations
func NewEvaluator(k int) *Evaluator {
	return &Evaluator{randomPerms: k}
}

// Evaluate draws K permutations of fitted.UniqueElements() from rng, scores
// each by energy and by mean Kendall distance to references, and returns the
// Spearman correlation of the two. Nil references default to the strategy's
// own consensus orderings. A non-nil truth adds TruthRho computed against the
// true ordering; otherwise TruthRho is NaN.
func (e *Evaluator) Evaluate(ctx context.Context, fitted ports.FittedStrategy, rng *rand.Rand, references []ranking.Ordering, truth ranking.Ordering) (*Result, error) {
	if e.randomPerms < 1 {
		return nil, core.NewValidationError("n_random_perms", "must be positive")
	}
	if len(references) == 0 {
		references = fitted.SampledCombinedOrderings()
	}
	if len(references) == 0 {
		return nil, core.NewInsufficientDataError("calibration", "no reference orderings")
	}

	universe := fitted.UniqueElements()
	perms := make([]ranking.Ordering, e.randomPerms)
	for k := range perms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("calibration interrupted: %w", err)
		}
		perm := make(ranking.Ordering, len(universe))
		for i, p := range rng.Perm(len(universe)) {
			perm[i] = universe[p]
		}
		perms[k] = perm
	}

	energies := make([]float64, len(perms))
	distances := make([]float64, len(perms))
	var truthDistances []float64
	if truth != nil {
		truthDistances = make([]float64, len(perms))
	}
	for k, perm := range perms {
		energies[k] = fitted.Energy(perm)
		distances[k] = AverageKendallDistance(perm, references)
		if truth != nil {
			truthDistances[k] = float64(ranking.KendallTauDistance(perm, truth))
		}
	}

	rho, p, degenerate := spearman(energies, distances)
	result := &Result{
		Rho:           rho,
		PValue:        p,
		TruthRho:      math.NaN(),
		NRandomPerms:  len(perms),
		LowConfidence: len(perms) < MinConfidentPerms,
		Degenerate:    degenerate,
		Energies:      energies,
		MeanDistances: distances,
	}
	if truth != nil {
		result.TruthRho, _, _ = spearman(energies, truthDistances)
	}
	return result, nil
}

// AverageKendallDistance is the mean discordant-pair count between o and
// each reference
func AverageKendallDistance(o ranking.Ordering, references []ranking.Ordering) float64 {
	if len(references) == 0 {
		return 0
	}
	total := 0
	for _, ref := range references {
		total += ranking.KendallTauDistance(o, ref)
	}
	return float64(total) / float64(len(references))
}

// Sharpness is the mean normalized Kendall tau over all pairs of orderings:
// 1 when every consensus ordering agrees, near 0 for unrelated orderings.
// A single ordering is perfectly sharp.
func Sharpness(orderings []ranking.Ordering) float64 {
	if len(orderings) < 2 {
		return 1.0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(orderings); i++ {
		for j := i + 1; j < len(orderings); j++ {
			total += ranking.NormalizedKendallTau(orderings[i], orderings[j])
			pairs++
		}
	}
	return total / float64(pairs)
}
