package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpcal/internal/errors"
)

const sampleYAML = `
seed: 7
mcmc_iterations: 200
burn_in: 0
sample_count: 20
n_random_perms: 40
js: [50, 200]
rs: [0.1, 0.25]
experiment_names: [ExpA, ExpB]
n_variants: 2
strategies: [PL, Mallows_Tau]
data_sources: [BT, Mallows_Tau_T10.0]
experiment_titles:
  ExpA:
    title: "Exp 1: Uniform"
    number: 1
write_xlsx: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 200, cfg.Sampler.Iterations)
	assert.Equal(t, 0, cfg.Sampler.BurnIn)
	assert.Equal(t, DefaultShuffles, cfg.Sampler.Shuffles)
	assert.Equal(t, []int{50, 200}, cfg.Grid.JS)
	assert.Equal(t, []float64{0.1, 0.25}, cfg.Grid.RS)
	assert.Equal(t, []string{"PL", "Mallows_Tau"}, cfg.Strategies)
	assert.Equal(t, 2*2*2*2, cfg.Grid.Grid().Size())
	assert.False(t, cfg.Output.WriteXLSX)
	assert.True(t, cfg.Output.WriteResults)
	assert.Equal(t, DefaultOutputDir, cfg.Paths.OutputDir)

	assert.Equal(t, "Exp 1: Uniform", cfg.Title("ExpA").Title)
	assert.Equal(t, 1, cfg.Title("ExpA").Number)
	assert.Equal(t, "ExpB", cfg.Title("ExpB").Title)

	fit := cfg.Sampler.FitConfig()
	assert.Equal(t, 20, fit.SampleCount)
	assert.Equal(t, 40, fit.RandomPerms)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("MPCAL_SEED", "99")
	t.Setenv("MPCAL_JS", "10, 20,30")
	t.Setenv("MPCAL_STRATEGIES", "BT")
	t.Setenv("MPCAL_WRITE_XLSX", "yes")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, []int{10, 20, 30}, cfg.Grid.JS)
	assert.Equal(t, []string{"BT"}, cfg.Strategies)
	assert.True(t, cfg.Output.WriteXLSX)
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	t.Setenv("MPCAL_N_RANDOM_PERMS", "lots")

	_, err := Load(writeConfig(t, "js: []\nexperiment_names: [Exp_A]\nn_variants: 0\n"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	msg := err.Error()
	for _, want := range []string{
		"MPCAL_N_RANDOM_PERMS must be a valid integer",
		"js must not be empty",
		"rs must not be empty",
		`experiment name "Exp_A"`,
		"n_variants must be positive",
		"data_sources must not be empty",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
