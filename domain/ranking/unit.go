package ranking

import (
	"mpcal/domain/core"
)

// StageAssignment maps a synthetic subject id to its integer disease stage.
type StageAssignment map[string]int

// UnitData is the Partial Ranking Store for one experiment unit: the padded
// partial rankings, the ground-truth ordering and per-subject stages. All
// fields are read-only reference data.
type UnitData struct {
	Stem             string
	Matrix           *Matrix
	TrueOrder        Ordering
	Stages           StageAssignment
	NPartialRankings int
}

// Validate checks that the ground truth is a permutation and that the
// rankings only reference indices inside it.
func (u *UnitData) Validate(universeSize int) error {
	if u.Matrix == nil {
		return core.NewValidationError("ordering_array", "missing")
	}
	if universeSize > 0 {
		all := make([]int, universeSize)
		for i := range all {
			all[i] = i
		}
		if len(u.TrueOrder) > 0 && !u.TrueOrder.IsPermutationOf(all) {
			return core.NewValidationError("true_order", "not a permutation of the biomarker universe")
		}
		for _, idx := range u.Matrix.UniqueElements() {
			if idx >= universeSize {
				return core.NewValidationError("ordering_array", "index outside the biomarker universe")
			}
		}
	}
	return nil
}

// NumSubjects returns the number of staged subjects
func (u *UnitData) NumSubjects() int {
	return len(u.Stages)
}

// MaxStage returns the highest stage label (0 when no subjects)
func (u *UnitData) MaxStage() int {
	max := 0
	for _, s := range u.Stages {
		if s > max {
			max = s
		}
	}
	return max
}
