package ranking

import (
	"sort"
)

// Ordering is a sequence of biomarker indices where position equals rank.
type Ordering []int

// Clone returns an independent copy
func (o Ordering) Clone() Ordering {
	out := make(Ordering, len(o))
	copy(out, o)
	return out
}

// Positions maps each index to its 0-based position
func (o Ordering) Positions() map[int]int {
	pos := make(map[int]int, len(o))
	for i, idx := range o {
		pos[idx] = i
	}
	return pos
}

// Equal reports element-wise equality
func (o Ordering) Equal(other Ordering) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPermutationOf reports whether o contains exactly the elements of universe
func (o Ordering) IsPermutationOf(universe []int) bool {
	if len(o) != len(universe) {
		return false
	}
	want := make(map[int]bool, len(universe))
	for _, u := range universe {
		want[u] = true
	}
	seen := make(map[int]bool, len(o))
	for _, idx := range o {
		if !want[idx] || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// Restrict keeps only the elements of o present in keep, preserving order
func (o Ordering) Restrict(keep map[int]int) Ordering {
	out := make(Ordering, 0, len(o))
	for _, idx := range o {
		if _, ok := keep[idx]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// KendallTauDistance counts discordant pairs between a and b over their
// common elements. Elements present in only one ordering are ignored.
func KendallTauDistance(a, b Ordering) int {
	posB := b.Positions()
	shared := make(Ordering, 0, len(a))
	for _, idx := range a {
		if _, ok := posB[idx]; ok {
			shared = append(shared, idx)
		}
	}

	discordant := 0
	for i := 0; i < len(shared); i++ {
		pi := posB[shared[i]]
		for j := i + 1; j < len(shared); j++ {
			if pi > posB[shared[j]] {
				discordant++
			}
		}
	}
	return discordant
}

// SharedPairs returns the number of element pairs common to a and b
func SharedPairs(a, b Ordering) int {
	posB := b.Positions()
	n := 0
	for _, idx := range a {
		if _, ok := posB[idx]; ok {
			n++
		}
	}
	return n * (n - 1) / 2
}

// NormalizedKendallTau maps the discordant-pair count into [-1, 1]: 1 for
// identical relative order, -1 for fully reversed. Orderings sharing fewer
// than two elements score 0.
func NormalizedKendallTau(a, b Ordering) float64 {
	pairs := SharedPairs(a, b)
	if pairs == 0 {
		return 0
	}
	return 1 - 2*float64(KendallTauDistance(a, b))/float64(pairs)
}

// FootruleDistance is the Spearman footrule over common elements: the sum of
// absolute position differences after restricting both orderings.
func FootruleDistance(a, b Ordering) int {
	posA := a.Positions()
	posB := b.Positions()
	ra := a.Restrict(posB)
	rb := b.Restrict(posA)
	rpos := rb.Positions()

	total := 0
	for i, idx := range ra {
		d := i - rpos[idx]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total
}

// MeanAbsolutePositionError is the mean |pos_a(x) - pos_b(x)| over the common
// elements, measured in the full (unrestricted) orderings.
func MeanAbsolutePositionError(a, b Ordering) float64 {
	posB := b.Positions()
	total, n := 0, 0
	for i, idx := range a {
		j, ok := posB[idx]
		if !ok {
			continue
		}
		d := i - j
		if d < 0 {
			d = -d
		}
		total += d
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
