package ranking

import (
	"fmt"

	"mpcal/domain/core"
)

// AbsentSentinel is the wire-format marker for an empty cell. It never
// appears in memory: cells carry an explicit Present flag instead.
const AbsentSentinel = -1

// Cell is one slot of a padded partial ranking: either a biomarker index or absent.
type Cell struct {
	Index   int
	Present bool
}

// At returns a present cell holding idx
func At(idx int) Cell {
	return Cell{Index: idx, Present: true}
}

// Absent returns an empty cell
func Absent() Cell {
	return Cell{}
}

// Wire returns the JSON encoding of the cell (index or -1)
func (c Cell) Wire() int {
	if !c.Present {
		return AbsentSentinel
	}
	return c.Index
}

// Matrix is a rectangular R x Lmax table of partial rankings. Within a row,
// present cells are a strict order (position = rank) without repetition and
// all absent cells trail the present ones.
type Matrix struct {
	rows  [][]Cell
	width int
}

// NewMatrix validates and pads rows of cells into a Matrix.
func NewMatrix(rows [][]Cell) (*Matrix, error) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	out := make([][]Cell, len(rows))
	for r, row := range rows {
		seen := make(map[int]bool, len(row))
		padded := make([]Cell, width)
		gap := false
		for c, cell := range row {
			if !cell.Present {
				gap = true
				continue
			}
			if gap {
				return nil, core.NewMatrixError(r, fmt.Sprintf("present cell at column %d follows padding", c))
			}
			if cell.Index < 0 {
				return nil, core.NewMatrixError(r, fmt.Sprintf("negative index %d", cell.Index))
			}
			if seen[cell.Index] {
				return nil, core.NewMatrixError(r, fmt.Sprintf("index %d repeated", cell.Index))
			}
			seen[cell.Index] = true
			padded[c] = cell
		}
		out[r] = padded
	}
	return &Matrix{rows: out, width: width}, nil
}

// FromPadded decodes the wire format where -1 marks an absent cell. Any
// other negative value is rejected rather than silently treated as padding.
func FromPadded(padded [][]int) (*Matrix, error) {
	rows := make([][]Cell, len(padded))
	for r, row := range padded {
		cells := make([]Cell, len(row))
		for c, v := range row {
			switch {
			case v == AbsentSentinel:
				cells[c] = Absent()
			case v < 0:
				return nil, core.NewMatrixError(r, fmt.Sprintf("invalid value %d at column %d", v, c))
			default:
				cells[c] = At(v)
			}
		}
		rows[r] = cells
	}
	return NewMatrix(rows)
}

// FromOrderings builds a matrix from unpadded partial rankings.
func FromOrderings(orderings []Ordering) (*Matrix, error) {
	rows := make([][]Cell, len(orderings))
	for r, o := range orderings {
		cells := make([]Cell, len(o))
		for c, idx := range o {
			cells[c] = At(idx)
		}
		rows[r] = cells
	}
	return NewMatrix(rows)
}

// Padded returns the wire format with -1 padding
func (m *Matrix) Padded() [][]int {
	out := make([][]int, len(m.rows))
	for r, row := range m.rows {
		wire := make([]int, len(row))
		for c, cell := range row {
			wire[c] = cell.Wire()
		}
		out[r] = wire
	}
	return out
}

// NumRows returns R
func (m *Matrix) NumRows() int {
	return len(m.rows)
}

// Width returns Lmax
func (m *Matrix) Width() int {
	return m.width
}

// Cell returns the cell at (r, c)
func (m *Matrix) Cell(r, c int) Cell {
	return m.rows[r][c]
}

// Row returns the present indices of row r in rank order
func (m *Matrix) Row(r int) Ordering {
	row := m.rows[r]
	out := make(Ordering, 0, len(row))
	for _, cell := range row {
		if cell.Present {
			out = append(out, cell.Index)
		}
	}
	return out
}

// Rows returns every row as an unpadded ordering, including empty ones
func (m *Matrix) Rows() []Ordering {
	out := make([]Ordering, len(m.rows))
	for r := range m.rows {
		out[r] = m.Row(r)
	}
	return out
}

// UsableRows returns the rows that contain at least one present cell
func (m *Matrix) UsableRows() []Ordering {
	out := make([]Ordering, 0, len(m.rows))
	for r := range m.rows {
		if row := m.Row(r); len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

// PresentCount returns the number of non-absent cells
func (m *Matrix) PresentCount() int {
	n := 0
	for _, row := range m.rows {
		for _, cell := range row {
			if cell.Present {
				n++
			}
		}
	}
	return n
}

// UniqueElements returns the sorted distinct indices appearing anywhere
func (m *Matrix) UniqueElements() []int {
	seen := make(map[int]bool)
	for _, row := range m.rows {
		for _, cell := range row {
			if cell.Present {
				seen[cell.Index] = true
			}
		}
	}
	return sortedKeys(seen)
}

// AverageRowLength is the mean number of present cells per row (0 for no rows)
func (m *Matrix) AverageRowLength() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	return float64(m.PresentCount()) / float64(len(m.rows))
}
