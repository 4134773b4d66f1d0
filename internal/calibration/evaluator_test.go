package calibration

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"mpcal/domain/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// distanceFitted scores an ordering by its Kendall distance to a fixed centre
type distanceFitted struct {
	centre ranking.Ordering
	scale  float64
}

func (d *distanceFitted) SampledCombinedOrderings() []ranking.Ordering {
	return []ranking.Ordering{d.centre.Clone()}
}
func (d *distanceFitted) UniqueElements() []int { return []int{0, 1, 2, 3, 4, 5, 6} }
func (d *distanceFitted) Energy(o ranking.Ordering) float64 {
	return d.scale * float64(ranking.KendallTauDistance(o, d.centre))
}
func (d *distanceFitted) Best() ranking.Ordering { return d.centre.Clone() }

type MockFitted struct {
	mock.Mock
}

func (m *MockFitted) SampledCombinedOrderings() []ranking.Ordering {
	args := m.Called()
	return args.Get(0).([]ranking.Ordering)
}
func (m *MockFitted) UniqueElements() []int {
	args := m.Called()
	return args.Get(0).([]int)
}
func (m *MockFitted) Energy(o ranking.Ordering) float64 {
	args := m.Called(o)
	return args.Get(0).(float64)
}
func (m *MockFitted) Best() ranking.Ordering {
	args := m.Called()
	return args.Get(0).(ranking.Ordering)
}

func TestEvaluate_PerfectlyCalibratedEnergy(t *testing.T) {
	fitted := &distanceFitted{centre: ranking.Ordering{0, 1, 2, 3, 4, 5, 6}, scale: 0.5}

	res, err := NewEvaluator(200).Evaluate(context.Background(), fitted, rand.New(rand.NewSource(1)), nil, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Rho, 1e-12)
	assert.InDelta(t, 0.0, res.PValue, 1e-12)
	assert.False(t, res.LowConfidence)
	assert.False(t, res.Degenerate)
	assert.True(t, math.IsNaN(res.TruthRho))
	assert.Len(t, res.Energies, 200)
}

func TestEvaluate_ReversedReferenceIsAntiCorrelated(t *testing.T) {
	fitted := &distanceFitted{centre: ranking.Ordering{0, 1, 2, 3, 4, 5, 6}, scale: 1}
	reversed := []ranking.Ordering{{6, 5, 4, 3, 2, 1, 0}}

	res, err := NewEvaluator(100).Evaluate(context.Background(), fitted, rand.New(rand.NewSource(9)), reversed, ranking.Ordering{0, 1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.InDelta(t, -1.0, res.Rho, 1e-12)
	assert.InDelta(t, 1.0, res.TruthRho, 1e-12)
}

func TestEvaluate_SameSeedSameStatistic(t *testing.T) {
	fitted := &distanceFitted{centre: ranking.Ordering{3, 1, 0, 2, 6, 5, 4}, scale: 1}
	refs := []ranking.Ordering{{0, 1, 2, 3, 4, 5, 6}, {1, 0, 2, 3, 4, 6, 5}}
	e := NewEvaluator(50)

	a, err := e.Evaluate(context.Background(), fitted, rand.New(rand.NewSource(77)), refs, nil)
	require.NoError(t, err)
	b, err := e.Evaluate(context.Background(), fitted, rand.New(rand.NewSource(77)), refs, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Rho, b.Rho)
	assert.Equal(t, a.Energies, b.Energies)
}

func TestEvaluate_LowConfidenceAndDegenerate(t *testing.T) {
	fitted := new(MockFitted)
	fitted.On("UniqueElements").Return([]int{0, 1, 2, 3})
	fitted.On("SampledCombinedOrderings").Return([]ranking.Ordering{{0, 1, 2, 3}})
	fitted.On("Energy", mock.Anything).Return(2.5)

	res, err := NewEvaluator(10).Evaluate(context.Background(), fitted, rand.New(rand.NewSource(3)), nil, nil)
	require.NoError(t, err)

	assert.True(t, res.LowConfidence)
	assert.True(t, res.Degenerate)
	assert.True(t, math.IsNaN(res.Rho))
	assert.Equal(t, 10, res.NRandomPerms)
	fitted.AssertNumberOfCalls(t, "Energy", 10)
}

func TestEvaluate_RejectsZeroPerms(t *testing.T) {
	fitted := &distanceFitted{centre: ranking.Ordering{0, 1, 2, 3, 4, 5, 6}, scale: 1}
	_, err := NewEvaluator(0).Evaluate(context.Background(), fitted, rand.New(rand.NewSource(1)), nil, nil)
	assert.Error(t, err)
}

func TestSpearman(t *testing.T) {
	tests := []struct {
		name       string
		x, y       []float64
		want       float64
		degenerate bool
	}{
		{"monotone", []float64{1, 2, 3, 4}, []float64{10, 20, 30, 40}, 1.0, false},
		{"ties use average ranks", []float64{1, 2, 3, 4, 5}, []float64{5, 6, 7, 8, 7}, 8 / math.Sqrt(95), false},
		{"constant input", []float64{1, 1, 1}, []float64{1, 2, 3}, math.NaN(), true},
		{"single point", []float64{1}, []float64{2}, math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, _, degenerate := spearman(tt.x, tt.y)
			assert.Equal(t, tt.degenerate, degenerate)
			if tt.degenerate {
				assert.True(t, math.IsNaN(rho))
				return
			}
			assert.InDelta(t, tt.want, rho, 1e-12)
		})
	}
}

func TestSharpness(t *testing.T) {
	assert.Equal(t, 1.0, Sharpness([]ranking.Ordering{{0, 1, 2}}))
	assert.InDelta(t, 1.0, Sharpness([]ranking.Ordering{{0, 1, 2}, {0, 1, 2}}), 1e-12)
	assert.InDelta(t, -1.0, Sharpness([]ranking.Ordering{{0, 1, 2}, {2, 1, 0}}), 1e-12)
}
