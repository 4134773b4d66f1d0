package ranking

import (
	"fmt"
	"sort"

	"mpcal/domain/core"
)

// BiomarkerIndex is the fixed bijection between biomarker names and dense
// indices 0..N-1. Names are sorted alphabetically once at construction and
// the index is never mutated afterwards.
type BiomarkerIndex struct {
	names []string
	index map[string]int
}

// NewBiomarkerIndex builds the index from an unordered set of names.
// Duplicate and empty names are rejected.
func NewBiomarkerIndex(names []string) (*BiomarkerIndex, error) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, name := range sorted {
		if name == "" {
			return nil, core.NewValidationError("biomarkers", "empty biomarker name")
		}
		if _, dup := index[name]; dup {
			return nil, core.NewValidationError("biomarkers", fmt.Sprintf("duplicate biomarker %q", name))
		}
		index[name] = i
	}
	return &BiomarkerIndex{names: sorted, index: index}, nil
}

// Len returns N
func (b *BiomarkerIndex) Len() int {
	return len(b.names)
}

// Index returns the integer index of a biomarker name
func (b *BiomarkerIndex) Index(name string) (int, error) {
	i, ok := b.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownBiomarker, name)
	}
	return i, nil
}

// Name returns the biomarker name at index i
func (b *BiomarkerIndex) Name(i int) (string, error) {
	if i < 0 || i >= len(b.names) {
		return "", fmt.Errorf("%w: index %d", core.ErrUnknownBiomarker, i)
	}
	return b.names[i], nil
}

// Names returns a copy of the sorted names
func (b *BiomarkerIndex) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// NamePositions renders an ordering as biomarker name -> 1-based position.
// Indices outside the map are skipped.
func (b *BiomarkerIndex) NamePositions(o Ordering) map[string]int {
	out := make(map[string]int, len(o))
	for pos, idx := range o {
		if name, err := b.Name(idx); err == nil {
			out[name] = pos + 1
		}
	}
	return out
}

// OrderingFromPositions converts a name -> position mapping into an ordering
// sorted by position (ties broken by name).
func (b *BiomarkerIndex) OrderingFromPositions(positions map[string]float64) (Ordering, error) {
	type entry struct {
		name string
		pos  float64
	}
	entries := make([]entry, 0, len(positions))
	for name, pos := range positions {
		entries = append(entries, entry{name: name, pos: pos})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].pos != entries[j].pos {
			return entries[i].pos < entries[j].pos
		}
		return entries[i].name < entries[j].name
	})

	out := make(Ordering, 0, len(entries))
	for _, e := range entries {
		idx, err := b.Index(e.name)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}
