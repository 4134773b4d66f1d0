package testkit

import (
	"fmt"
	"math/rand"

	"mpcal/domain/ranking"
)

// GeneratorConfig configures synthetic partial rankings drawn around a known order
type GeneratorConfig struct {
	Rows      int     // partial rankings per unit
	MinLength int     // shortest partial ranking
	MaxLength int     // longest partial ranking; width of the padded matrix
	Noise     float64 // probability of swapping each adjacent pair once
	Subjects  int     // staged subjects per unit
}

// DefaultGeneratorConfig returns small, mildly noisy units
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Rows: 12, MinLength: 3, MaxLength: 5, Noise: 0.1, Subjects: 20}
}

// PartialRankingGenerator produces units whose rows are noisy restrictions
// of a ground-truth order
type PartialRankingGenerator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewPartialRankingGenerator creates a generator over a seeded stream
func NewPartialRankingGenerator(config GeneratorConfig, seed int64) *PartialRankingGenerator {
	return &PartialRankingGenerator{config: config, rng: rand.New(rand.NewSource(seed))}
}

// Truth returns a random full ordering of n biomarker indices
func (g *PartialRankingGenerator) Truth(n int) ranking.Ordering {
	return ranking.Ordering(g.rng.Perm(n))
}

// Matrix draws rows: a random subset of truth, kept in true relative order,
// then perturbed by adjacent swaps with probability Noise.
func (g *PartialRankingGenerator) Matrix(truth ranking.Ordering) (*ranking.Matrix, error) {
	if g.config.MinLength < 1 || g.config.MaxLength < g.config.MinLength {
		return nil, fmt.Errorf("invalid length range [%d, %d]", g.config.MinLength, g.config.MaxLength)
	}
	maxLen := g.config.MaxLength
	if maxLen > len(truth) {
		maxLen = len(truth)
	}
	minLen := g.config.MinLength
	if minLen > maxLen {
		minLen = maxLen
	}

	positions := truth.Positions()
	rows := make([]ranking.Ordering, g.config.Rows)
	for r := range rows {
		length := minLen + g.rng.Intn(maxLen-minLen+1)
		picks := g.rng.Perm(len(truth))[:length]

		row := make(ranking.Ordering, length)
		for i, p := range picks {
			row[i] = truth[p]
		}
		sortStable(row, positions)

		for i := 0; i+1 < len(row); i++ {
			if g.rng.Float64() < g.config.Noise {
				row[i], row[i+1] = row[i+1], row[i]
			}
		}
		rows[r] = row
	}
	return ranking.FromOrderings(rows)
}

// Unit draws a complete unit for stem
func (g *PartialRankingGenerator) Unit(stem string, truth ranking.Ordering) (*ranking.UnitData, error) {
	m, err := g.Matrix(truth)
	if err != nil {
		return nil, err
	}
	stages := make(ranking.StageAssignment, g.config.Subjects)
	for s := 0; s < g.config.Subjects; s++ {
		stages[fmt.Sprintf("subject_%d", s)] = g.rng.Intn(len(truth) + 1)
	}
	return &ranking.UnitData{
		Stem:             stem,
		Matrix:           m,
		TrueOrder:        truth.Clone(),
		Stages:           stages,
		NPartialRankings: m.NumRows(),
	}, nil
}

func sortStable(row ranking.Ordering, positions map[int]int) {
	for i := 1; i < len(row); i++ {
		for j := i; j > 0 && positions[row[j-1]] > positions[row[j]]; j-- {
			row[j-1], row[j] = row[j], row[j-1]
		}
	}
}
