package testkit

import (
	"context"
	"math/rand"
	"path/filepath"

	"mpcal/adapters/jsonstore"
	"mpcal/domain/core"
	"mpcal/domain/ranking"
	"mpcal/ports"
)

// TestKit provides fixtures for partial-ranking pipelines
type TestKit struct {
	rng *RNGAdapter
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rng: &RNGAdapter{}}
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// RNGAdapter implements ports.RNGPort with math/rand sources
type RNGAdapter struct{}

var _ ports.RNGPort = (*RNGAdapter)(nil)

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// Stream derives an independent stream for one experiment unit from the base
// seed and the unit stem
func (r *RNGAdapter) Stream(ctx context.Context, unitStem string, baseSeed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(core.DeriveSeed(baseSeed, unitStem))), nil
}

// sourceUnit is the on-disk shape of one stem in a data source file
type sourceUnit struct {
	OrderingArray    [][]int        `json:"ordering_array"`
	TrueOrder        map[string]int `json:"true_order"`
	TrueStages       map[string]int `json:"true_stages"`
	NPartialRankings int            `json:"n_partial_rankings"`
}

// WriteSourceFile writes units in the data source input format under dir.
// true_order is written as biomarker name -> 1-based position.
func (t *TestKit) WriteSourceFile(dir, source string, index *ranking.BiomarkerIndex, units []*ranking.UnitData) (string, error) {
	doc := make(map[string]sourceUnit, len(units))
	for _, u := range units {
		doc[u.Stem] = sourceUnit{
			OrderingArray:    u.Matrix.Padded(),
			TrueOrder:        index.NamePositions(u.TrueOrder),
			TrueStages:       u.Stages,
			NPartialRankings: u.NPartialRankings,
		}
	}
	path := filepath.Join(dir, jsonstore.SourceFileName(source))
	return path, jsonstore.WriteJSON(path, doc)
}
