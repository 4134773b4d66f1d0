package analysis

import (
	"testing"

	"mpcal/domain/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix(t *testing.T, padded [][]int) *ranking.Matrix {
	t.Helper()
	m, err := ranking.FromPadded(padded)
	require.NoError(t, err)
	return m
}

func TestOverlapRate(t *testing.T) {
	a := NewRankingAnalyzer()

	tests := []struct {
		name   string
		padded [][]int
		want   float64
	}{
		{"all sentinel", [][]int{{-1, -1}, {-1, -1}}, 0.0},
		{"no rows", [][]int{}, 0.0},
		{"identical full rows", [][]int{{0, 1, 2, 3}, {0, 1, 2, 3}, {0, 1, 2, 3}}, 1.0},
		{"disjoint rows", [][]int{{0, 1}, {2, 3}}, 0.0},
		{"half repeated", [][]int{{0, 1, -1}, {1, 2, 3}}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.OverlapRate(matrix(t, tt.padded)))
		})
	}
}

func TestConflict(t *testing.T) {
	a := NewRankingAnalyzer()

	tests := []struct {
		name   string
		padded [][]int
		want   float64
	}{
		{"agreeing rows", [][]int{{0, 1, 2}, {0, 2, -1}}, 0.0},
		{"fully reversed", [][]int{{0, 1, 2}, {2, 1, 0}}, 1.0},
		{"short rows are skipped", [][]int{{0, -1}, {1, -1}, {-1, -1}}, 0.0},
		{"rows sharing one element only", [][]int{{0, 1}, {1, 2}}, 0.0},
		{"mixed", [][]int{{0, 1, 2}, {1, 0, 2}, {0, 1, 2}}, (1.0/3 + 0 + 1.0/3) / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, a.Conflict(matrix(t, tt.padded)), 1e-12)
		})
	}
}

func TestPairwiseOverlap(t *testing.T) {
	a := NewRankingAnalyzer()

	assert.Equal(t, 0.0, a.PairwiseOverlap(matrix(t, [][]int{{0, 1}})))
	assert.InDelta(t, 1.0, a.PairwiseOverlap(matrix(t, [][]int{{0, 1}, {1, 0}})), 1e-12)
	assert.InDelta(t, 1.0/3.0, a.PairwiseOverlap(matrix(t, [][]int{{0, 1}, {1, 2}})), 1e-12)
}

func TestAnalyze(t *testing.T) {
	a := NewRankingAnalyzer()
	d := a.Analyze(matrix(t, [][]int{{0, 1, 2}, {2, 1, -1}, {-1, -1, -1}}))

	assert.Equal(t, 3, d.NumRows)
	assert.InDelta(t, 5.0/3.0, d.AveragePartialLength, 1e-12)
	assert.Equal(t, 1, d.ComparableRowPairs)
	assert.InDelta(t, 1.0, d.Conflict, 1e-12)
	assert.InDelta(t, 2.0/3.0, d.OverlapRate, 1e-12)
}
