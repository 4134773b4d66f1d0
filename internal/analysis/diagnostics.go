package analysis

import (
	"mpcal/domain/ranking"
)

// Diagnostics summarises how much a set of partial rankings agree and overlap
type Diagnostics struct {
	NumRows              int     `json:"n_partial_rankings"`
	AveragePartialLength float64 `json:"average_partial_ranking_length"`
	OverlapRate          float64 `json:"overlap_rate"`
	PairwiseOverlap      float64 `json:"pairwise_overlap"`
	Conflict             float64 `json:"conflict"`
	ComparableRowPairs   int     `json:"comparable_row_pairs"`
}

// RankingAnalyzer computes conflict and overlap diagnostics
type RankingAnalyzer struct{}

// NewRankingAnalyzer creates a new analyzer
func NewRankingAnalyzer() *RankingAnalyzer {
	return &RankingAnalyzer{}
}

// Analyze computes every diagnostic for a matrix
func (a *RankingAnalyzer) Analyze(m *ranking.Matrix) Diagnostics {
	conflict, pairs := a.conflict(m)
	return Diagnostics{
		NumRows:              m.NumRows(),
		AveragePartialLength: m.AverageRowLength(),
		OverlapRate:          a.OverlapRate(m),
		PairwiseOverlap:      a.PairwiseOverlap(m),
		Conflict:             conflict,
		ComparableRowPairs:   pairs,
	}
}

// OverlapRate treats every present cell as one flat multiset and returns
// (#distinct indices seen more than once) / (#distinct indices). A matrix
// without present cells has rate 0.
func (a *RankingAnalyzer) OverlapRate(m *ranking.Matrix) float64 {
	counts := make(map[int]int)
	for r := 0; r < m.NumRows(); r++ {
		for c := 0; c < m.Width(); c++ {
			if cell := m.Cell(r, c); cell.Present {
				counts[cell.Index]++
			}
		}
	}
	if len(counts) == 0 {
		return 0.0
	}

	repeated := 0
	for _, n := range counts {
		if n > 1 {
			repeated++
		}
	}
	return float64(repeated) / float64(len(counts))
}

// Conflict is the mean, over row pairs sharing at least two elements, of
// the fraction of shared element pairs whose relative order differs.
// Rows with fewer than two present cells never form a comparable pair.
func (a *RankingAnalyzer) Conflict(m *ranking.Matrix) float64 {
	conflict, _ := a.conflict(m)
	return conflict
}

func (a *RankingAnalyzer) conflict(m *ranking.Matrix) (float64, int) {
	rows := orderableRows(m)

	total := 0.0
	comparable := 0
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			shared := ranking.SharedPairs(rows[i], rows[j])
			if shared == 0 {
				continue
			}
			total += float64(ranking.KendallTauDistance(rows[i], rows[j])) / float64(shared)
			comparable++
		}
	}
	if comparable == 0 {
		return 0.0, 0
	}
	return total / float64(comparable), comparable
}

// PairwiseOverlap is the mean Jaccard similarity of the element sets of
// every pair of non-empty rows. Unlike OverlapRate it is scoped per pair, so
// one biomarker recurring in many rows does not dominate.
func (a *RankingAnalyzer) PairwiseOverlap(m *ranking.Matrix) float64 {
	rows := m.UsableRows()
	if len(rows) < 2 {
		return 0.0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(rows); i++ {
		setI := rows[i].Positions()
		for j := i + 1; j < len(rows); j++ {
			inter := 0
			for _, idx := range rows[j] {
				if _, ok := setI[idx]; ok {
					inter++
				}
			}
			union := len(rows[i]) + len(rows[j]) - inter
			total += float64(inter) / float64(union)
			pairs++
		}
	}
	return total / float64(pairs)
}

func orderableRows(m *ranking.Matrix) []ranking.Ordering {
	out := make([]ranking.Ordering, 0, m.NumRows())
	for _, row := range m.Rows() {
		if len(row) >= 2 {
			out = append(out, row)
		}
	}
	return out
}
