package experiment

import (
	"fmt"
)

// Grid is the combinatorial set of experiment units declared in configuration.
// Iteration order follows the declared list order so sweeps are reproducible.
type Grid struct {
	JS          []int
	RS          []float64
	Experiments []string
	NVariants   int
}

// Size returns the number of units in the grid
func (g Grid) Size() int {
	return len(g.JS) * len(g.RS) * len(g.Experiments) * g.NVariants
}

// Units enumerates every key in J, R, E, M order
func (g Grid) Units() []UnitKey {
	out := make([]UnitKey, 0, g.Size())
	for _, j := range g.JS {
		for _, r := range g.RS {
			for _, e := range g.Experiments {
				for m := 0; m < g.NVariants; m++ {
					out = append(out, UnitKey{J: j, R: r, E: e, M: m})
				}
			}
		}
	}
	return out
}

// Check reports why a parsed key falls outside the declared value sets, or
// nil when every field is valid.
func (g Grid) Check(k UnitKey) error {
	if !containsInt(g.JS, k.J) {
		return fmt.Errorf("invalid J value %d", k.J)
	}
	if !containsFloat(g.RS, k.R) {
		return fmt.Errorf("invalid R value %s", FormatR(k.R))
	}
	if !containsString(g.Experiments, k.E) {
		return fmt.Errorf("invalid experiment %s", k.E)
	}
	if k.M < 0 || k.M >= g.NVariants {
		return fmt.Errorf("invalid M value %d", k.M)
	}
	return nil
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsFloat(values []float64, v float64) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
