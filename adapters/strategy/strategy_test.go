package strategy

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"mpcal/domain/core"
	"mpcal/domain/ranking"
	"mpcal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = ports.FitConfig{
	Iterations:  400,
	Shuffles:    1,
	BurnIn:      50,
	Thinning:    5,
	SampleCount: 10,
	RandomPerms: 50,
	Temperature: 1.0,
}

// consistentMatrix returns rows that all agree with 0 < 1 < ... < 5
func consistentMatrix(t *testing.T) *ranking.Matrix {
	t.Helper()
	m, err := ranking.FromPadded([][]int{
		{0, 1, 2, 3},
		{2, 3, 4, 5},
		{0, 2, 4, -1},
		{1, 3, 5, -1},
		{0, 5, -1, -1},
		{1, 2, 3, 4},
		{0, 1, 4, 5},
		{3, 4, 5, -1},
	})
	require.NoError(t, err)
	return m
}

func allStrategies() []ports.Strategy {
	return []ports.Strategy{NewPlackettLuce(), NewBradleyTerry(), NewPairwise(), NewMallowsTau(), NewMallows()}
}

func TestFit_InsufficientData(t *testing.T) {
	empty, err := ranking.FromPadded([][]int{{-1, -1}, {-1, -1}})
	require.NoError(t, err)

	for _, s := range allStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Fit(context.Background(), empty, testConfig, rand.New(rand.NewSource(1)))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInsufficientData)
		})
	}
}

func TestFit_DeterministicForSameSeed(t *testing.T) {
	m := consistentMatrix(t)

	for _, s := range allStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			a, err := s.Fit(context.Background(), m, testConfig, rand.New(rand.NewSource(42)))
			require.NoError(t, err)
			b, err := s.Fit(context.Background(), m, testConfig, rand.New(rand.NewSource(42)))
			require.NoError(t, err)

			assert.Equal(t, a.SampledCombinedOrderings(), b.SampledCombinedOrderings())
			assert.Equal(t, a.Best(), b.Best())
		})
	}
}

func TestFit_EnergyFiniteForAnyPermutation(t *testing.T) {
	m := consistentMatrix(t)
	rng := rand.New(rand.NewSource(7))

	for _, s := range allStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			fitted, err := s.Fit(context.Background(), m, testConfig, rand.New(rand.NewSource(3)))
			require.NoError(t, err)

			universe := fitted.UniqueElements()
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, universe)

			for k := 0; k < 50; k++ {
				perm := make(ranking.Ordering, len(universe))
				for i, p := range rng.Perm(len(universe)) {
					perm[i] = universe[p]
				}
				e := fitted.Energy(perm)
				assert.False(t, math.IsNaN(e) || math.IsInf(e, 0), "energy %v for %v", e, perm)
				assert.GreaterOrEqual(t, e, 0.0)
			}
		})
	}
}

func TestFit_ConsensusTracksAgreement(t *testing.T) {
	m := consistentMatrix(t)
	truth := ranking.Ordering{0, 1, 2, 3, 4, 5}
	reversed := ranking.Ordering{5, 4, 3, 2, 1, 0}

	for _, s := range allStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			fitted, err := s.Fit(context.Background(), m, testConfig, rand.New(rand.NewSource(11)))
			require.NoError(t, err)

			assert.Less(t, fitted.Energy(truth), fitted.Energy(reversed))
			best := fitted.Best()
			assert.True(t, best.IsPermutationOf(truth))
			assert.Greater(t, ranking.NormalizedKendallTau(best, truth), 0.3)
			assert.Len(t, fitted.SampledCombinedOrderings(), testConfig.SampleCount)
		})
	}
}

func TestMallowsTau_EnergyIsKendallSum(t *testing.T) {
	m := consistentMatrix(t)
	cfg := testConfig
	cfg.Temperature = 10.0
	model := buildMallowsTau(m.UsableRows(), m.UniqueElements(), cfg)

	o := ranking.Ordering{3, 0, 5, 1, 4, 2}
	want := 0
	for _, row := range m.UsableRows() {
		want += ranking.KendallTauDistance(o, row)
	}
	assert.InDelta(t, float64(want)/10.0, model.energy(o), 1e-12)
}

func TestPairwise_WeightsByDisagreementShare(t *testing.T) {
	m, err := ranking.FromPadded([][]int{{0, 1}, {0, 1}, {0, 1}, {1, 0}})
	require.NoError(t, err)
	model := buildPairwise(m.UsableRows(), m.UniqueElements(), testConfig)

	assert.InDelta(t, 0.25, model.energy(ranking.Ordering{0, 1}), 1e-12)
	assert.InDelta(t, 0.75, model.energy(ranking.Ordering{1, 0}), 1e-12)
}

func TestEstimateWorths_OrderFollowsWins(t *testing.T) {
	m, err := ranking.FromPadded([][]int{{0, 1, 2}, {0, 1, 2}, {0, 2, -1}, {1, 2, -1}})
	require.NoError(t, err)
	rows := m.UsableRows()
	slots := positionIndex(m.UniqueElements())

	bt := estimateBradleyTerry(preferenceCounts(rows, slots), defaultMMSweeps)
	assert.Greater(t, bt[0], bt[1])
	assert.Greater(t, bt[1], bt[2])

	pl := estimatePlackettLuce(choiceStages(rows, slots), len(slots), defaultMMSweeps)
	assert.Greater(t, pl[0], pl[1])
	assert.Greater(t, pl[1], pl[2])
	for _, w := range pl {
		assert.Greater(t, w, 0.0)
	}
}

func TestChainSampler_KeepsLastThinnedStates(t *testing.T) {
	m := consistentMatrix(t)
	sampler := &chainSampler{
		model:  buildMallowsTau(m.UsableRows(), m.UniqueElements(), testConfig),
		kernel: adjacentSwap,
	}
	cfg := ports.FitConfig{Iterations: 100, Shuffles: 2, BurnIn: 10, Thinning: 2, SampleCount: 5}

	samples, err := sampler.sample(context.Background(), ranking.Ordering{0, 1, 2, 3, 4, 5}, cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Len(t, samples, 5)
	for _, s := range samples {
		assert.True(t, s.IsPermutationOf([]int{0, 1, 2, 3, 4, 5}))
	}

	t.Run("burn-in longer than chain keeps final state", func(t *testing.T) {
		short := ports.FitConfig{Iterations: 5, BurnIn: 50, SampleCount: 3}
		samples, err := sampler.sample(context.Background(), ranking.Ordering{0, 1, 2}, short, rand.New(rand.NewSource(5)))
		require.NoError(t, err)
		assert.Len(t, samples, 1)
	})

	t.Run("cancelled context stops the chain", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sampler.sample(ctx, ranking.Ordering{0, 1, 2}, cfg, rand.New(rand.NewSource(5)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"PL", "BT", "Pairwise", "Mallows_Tau", "Mallows"}, r.Names())

	s, err := r.Get("Mallows_Tau")
	require.NoError(t, err)
	assert.Equal(t, "Mallows_Tau", s.Name())

	_, err = r.Get("mallows_tau")
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)
}
