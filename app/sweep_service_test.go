package app

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpcal/adapters/jsonstore"
	"mpcal/adapters/strategy"
	"mpcal/adapters/tabular"
	"mpcal/domain/core"
	"mpcal/domain/experiment"
	"mpcal/domain/ranking"
	"mpcal/internal"
	apperrors "mpcal/internal/errors"
	"mpcal/internal/report"
	"mpcal/internal/testkit"
	"mpcal/ports"
)

const testSeed = 53

var testGrid = experiment.Grid{JS: []int{50}, RS: []float64{0.1}, Experiments: []string{"ExpA"}, NVariants: 2}

func testFitConfig() ports.FitConfig {
	return ports.FitConfig{
		Iterations:  400,
		Shuffles:    1,
		BurnIn:      100,
		Thinning:    2,
		SampleCount: 20,
		RandomPerms: 30,
		Temperature: 1,
	}
}

// sweepFixture is a temporary workspace with one data source file per source
type sweepFixture struct {
	root    string
	dataDir string
	outDir  string
	metaDir string
	report  string
	kit     *testkit.TestKit
}

func newSweepFixture(t *testing.T, sources ...string) *sweepFixture {
	t.Helper()
	root := t.TempDir()
	f := &sweepFixture{
		root:    root,
		dataDir: filepath.Join(root, "data"),
		outDir:  filepath.Join(root, "algo_results"),
		metaDir: filepath.Join(root, "mp_metadata"),
		report:  filepath.Join(root, "reports"),
		kit:     testkit.NewTestKit(),
	}
	require.NoError(t, os.MkdirAll(f.dataDir, 0o755))

	index, err := ranking.NewBiomarkerIndex(jsonstore.SyntheticNames(6))
	require.NoError(t, err)
	gen := testkit.NewPartialRankingGenerator(testkit.DefaultGeneratorConfig(), 7)
	for _, source := range sources {
		var units []*ranking.UnitData
		for _, key := range testGrid.Units() {
			u, err := gen.Unit(key.Stem(), gen.Truth(6))
			require.NoError(t, err)
			units = append(units, u)
		}
		_, err := f.kit.WriteSourceFile(f.dataDir, source, index, units)
		require.NoError(t, err)
	}
	return f
}

func (f *sweepFixture) service(t *testing.T, sources, strategies []string, metrics *report.Metrics) *SweepService {
	t.Helper()
	svc, err := NewSweepService(SweepDeps{
		Source:    jsonstore.NewFileSource(f.dataDir, nil, ""),
		Registry:  strategy.NewRegistry(),
		Sink:      jsonstore.NewResultStore(f.outDir),
		Table:     tabular.NewRecordWriter(false),
		Metadata:  tabular.NewRecordWriter(false),
		Documents: jsonstore.WriteJSON,
		Metrics:   metrics,
		Logger:    internal.NewLogger(internal.LogLevelError),
	}, SweepOptions{
		Grid:        testGrid,
		Sources:     sources,
		Strategies:  strategies,
		Fit:         testFitConfig(),
		Titles:      map[string]experiment.Title{"ExpA": {Title: "Baseline", Number: 1}},
		Seed:        testSeed,
		ConfigHash:  "hash",
		CodeVersion: "test",
		ReportDir:   f.report,
		MetadataDir: f.metaDir,
	})
	require.NoError(t, err)
	return svc
}

func (f *sweepFixture) rng(t *testing.T) ports.RNGPort {
	return f.kit.RNGAdapter()
}

func TestNewSweepService_UnknownStrategy(t *testing.T) {
	_, err := NewSweepService(SweepDeps{Registry: strategy.NewRegistry()}, SweepOptions{Strategies: []string{"PL", "Nope"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestSweepService_Run(t *testing.T) {
	f := newSweepFixture(t, "Random")
	metrics := report.NewMetrics()
	svc := f.service(t, []string{"Random"}, []string{"PL", "BT"}, metrics)

	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	require.Len(t, result.Records, 4)
	assert.Empty(t, result.Failures)
	assert.NoError(t, result.Manifest.Validate())

	for _, r := range result.Records {
		assert.Equal(t, "Random", r.Source)
		assert.Equal(t, "Baseline", r.ExperimentTitle)
		assert.Equal(t, 1, r.ExperimentNumber)
		assert.Equal(t, 30, r.NRandomPerms)
		assert.False(t, r.LowConfidence)
		assert.GreaterOrEqual(t, r.Conflict, 0.0)
		assert.LessOrEqual(t, r.Conflict, 1.0)
		assert.GreaterOrEqual(t, r.KendallsTau, -1.0)
		assert.LessOrEqual(t, r.KendallsTau, 1.0)
		assert.False(t, math.IsNaN(r.TruthRho))
		assert.True(t, math.IsNaN(r.Separation), "random framework has no reference")

		path := jsonstore.NewResultStore(f.outDir).ResultPath(r.Source, r.Strategy, r.Key)
		doc, err := jsonstore.ReadUnitResult(path)
		require.NoError(t, err)
		assert.InDelta(t, r.KendallsTau, doc.KendallsTau, 1e-12)
		assert.NotEmpty(t, doc.OrderWithHighestLL)
	}

	for _, name := range []string{SweepTableFile, ManifestFile, SweepFailuresFile} {
		assert.FileExists(t, filepath.Join(f.report, name))
	}
	for _, key := range testGrid.Units() {
		assert.FileExists(t, filepath.Join(f.metaDir, key.Stem()+".csv"))
	}

	table, err := tabular.ReadTable(filepath.Join(f.report, SweepTableFile))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 4)
}

func TestSweepService_Deterministic(t *testing.T) {
	f := newSweepFixture(t, "Random")
	svc := f.service(t, []string{"Random"}, []string{"PL", "Mallows_Tau"}, nil)

	run := func() []experiment.Record {
		rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
		require.NoError(t, err)
		result, err := svc.Run(context.Background(), rng)
		require.NoError(t, err)
		return result.Records
	}

	first, second := run(), run()
	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].Row(), second[i].Row())
	}
}

func TestSweepService_ReferenceFramework(t *testing.T) {
	f := newSweepFixture(t, "BT")
	svc := f.service(t, []string{"BT"}, []string{"PL"}, nil)

	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	for _, r := range result.Records {
		assert.False(t, math.IsNaN(r.Sharpness))
		assert.GreaterOrEqual(t, r.Sharpness, -1.0)
		assert.LessOrEqual(t, r.Sharpness, 1.0)
	}
}

func TestSweepService_MissingSourceIsSkipped(t *testing.T) {
	f := newSweepFixture(t, "Random")
	svc := f.service(t, []string{"Absent", "Random"}, []string{"PL"}, nil)

	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	assert.Len(t, result.Records, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Absent", result.Failures[0].Source)
	assert.Equal(t, apperrors.CodeMissingData, result.Failures[0].Code)

	body, err := os.ReadFile(filepath.Join(f.report, SweepFailuresFile))
	require.NoError(t, err)
	var failures []SweepFailure
	require.NoError(t, json.Unmarshal(body, &failures))
	assert.Len(t, failures, 1)
}

func TestSweepService_RunUnit(t *testing.T) {
	f := newSweepFixture(t, "Random")
	svc := f.service(t, []string{"Random"}, []string{"PL", "BT"}, nil)
	stem := testGrid.Units()[1].Stem()

	rng, err := f.rng(t).Stream(context.Background(), stem, testSeed)
	require.NoError(t, err)
	result, err := svc.RunUnit(context.Background(), stem, rng)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	for _, r := range result.Records {
		assert.Equal(t, stem, r.Key.Stem())
	}

	_, err = svc.RunUnit(context.Background(), "not_a_stem", rng)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnparseableID, apperrors.GetCode(err))
}

func TestSweepService_UnknownStemInSource(t *testing.T) {
	f := newSweepFixture(t, "Random")
	svc := f.service(t, []string{"Random"}, []string{"PL"}, nil)

	rng, err := f.rng(t).Stream(context.Background(), "j50_r0.1_EExpB_m0", testSeed)
	require.NoError(t, err)
	result, err := svc.RunUnit(context.Background(), "j50_r0.1_EExpB_m0", rng)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, apperrors.CodeMissingData, result.Failures[0].Code)
}

func TestSweepService_Cancelled(t *testing.T) {
	f := newSweepFixture(t, "Random")
	svc := f.service(t, []string{"Random"}, []string{"PL"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rng, err := f.rng(t).SeededStream(ctx, "sweep", testSeed)
	require.NoError(t, err)
	_, err = svc.Run(ctx, rng)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepService_AllAbsentUnitFailsWithoutStoppingSweep(t *testing.T) {
	f := newSweepFixture(t)
	index, err := ranking.NewBiomarkerIndex(jsonstore.SyntheticNames(6))
	require.NoError(t, err)

	gen := testkit.NewPartialRankingGenerator(testkit.DefaultGeneratorConfig(), 11)
	truth := gen.Truth(6)
	empty, err := ranking.FromPadded([][]int{{-1, -1, -1}, {-1, -1, -1}})
	require.NoError(t, err)
	keys := testGrid.Units()
	valid, err := gen.Unit(keys[1].Stem(), truth)
	require.NoError(t, err)
	units := []*ranking.UnitData{
		{Stem: keys[0].Stem(), Matrix: empty, TrueOrder: truth, Stages: ranking.StageAssignment{}, NPartialRankings: 2},
		valid,
	}
	_, err = f.kit.WriteSourceFile(f.dataDir, "PL", index, units)
	require.NoError(t, err)

	svc := f.service(t, []string{"PL"}, []string{"PL", "BT"}, nil)
	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	require.Len(t, result.Failures, 2)
	for _, failure := range result.Failures {
		assert.Equal(t, keys[0].Stem(), failure.Stem)
		assert.Equal(t, apperrors.CodeInsufficientData, failure.Code)
	}

	require.Len(t, result.Records, 2)
	for _, r := range result.Records {
		assert.Equal(t, keys[1], r.Key)
		assert.False(t, math.IsNaN(r.Separation), "PL source fits its generating framework")
		assert.False(t, math.IsNaN(r.Sharpness))
	}
	_, err = os.Stat(jsonstore.NewResultStore(f.outDir).ResultPath("PL", "PL", keys[0]))
	assert.True(t, os.IsNotExist(err), "no result file for a failed unit")
}

func TestSweepService_UnitFailureCodes(t *testing.T) {
	f := newSweepFixture(t)
	body := `{
  "j50_r0.1_EExpA_m0": {
    "ordering_array": [[0, 1, 2], [2, 1, -1]],
    "true_order": [0, 0, 1]
  }
}`
	require.NoError(t, os.MkdirAll(f.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, jsonstore.SourceFileName("Random")), []byte(body), 0o644))

	svc := f.service(t, []string{"Random"}, []string{"PL"}, nil)
	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	assert.Empty(t, result.Records)
	codes := make(map[string]string)
	for _, failure := range result.Failures {
		codes[failure.Stem] = failure.Code
	}
	assert.Equal(t, map[string]string{
		"j50_r0.1_EExpA_m0": apperrors.CodeValidationError,
		"j50_r0.1_EExpA_m1": apperrors.CodeMissingData,
	}, codes)
}

// temperatureRecorder remembers the temperature of every fit and then
// reports that it cannot be fitted
type temperatureRecorder struct {
	temperatures []float64
}

func (r *temperatureRecorder) Name() string { return "Recorder" }

func (r *temperatureRecorder) Fit(ctx context.Context, m *ranking.Matrix, cfg ports.FitConfig, rng *rand.Rand) (ports.FittedStrategy, error) {
	r.temperatures = append(r.temperatures, cfg.Temperature)
	return nil, core.NewInsufficientDataError(r.Name(), "recording only")
}

func TestSweepService_SourceTemperatureAppliesToInference(t *testing.T) {
	sources := []string{"Random_T10.0", "Random"}
	f := newSweepFixture(t, sources...)

	recorder := &temperatureRecorder{}
	registry := strategy.NewRegistry()
	registry.Register(recorder)

	svc, err := NewSweepService(SweepDeps{
		Source:   jsonstore.NewFileSource(f.dataDir, nil, ""),
		Registry: registry,
		Logger:   internal.NewLogger(internal.LogLevelError),
	}, SweepOptions{
		Grid:       testGrid,
		Sources:    sources,
		Strategies: []string{recorder.Name()},
		Fit:        testFitConfig(),
	})
	require.NoError(t, err)

	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	result, err := svc.Run(context.Background(), rng)
	require.NoError(t, err)

	assert.Len(t, result.Failures, 4)
	assert.Equal(t, []float64{10, 10, 1, 1}, recorder.temperatures)
}

func TestSweepService_MissingSourceCountsSkippedUnits(t *testing.T) {
	f := newSweepFixture(t, "Random")
	metrics := report.NewMetrics()
	metricsFile := filepath.Join(f.root, "mpcal.prom")

	svc, err := NewSweepService(SweepDeps{
		Source:   jsonstore.NewFileSource(f.dataDir, nil, ""),
		Registry: strategy.NewRegistry(),
		Metrics:  metrics,
		Logger:   internal.NewLogger(internal.LogLevelError),
	}, SweepOptions{
		Grid:        testGrid,
		Sources:     []string{"Absent"},
		Strategies:  []string{"PL", "BT"},
		Fit:         testFitConfig(),
		MetricsFile: metricsFile,
	})
	require.NoError(t, err)

	rng, err := f.rng(t).SeededStream(context.Background(), "sweep", testSeed)
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), rng)
	require.NoError(t, err)

	body, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	for _, line := range []string{
		`mpcal_units_total{status="skipped",strategy="PL"} 2`,
		`mpcal_units_total{status="skipped",strategy="BT"} 2`,
	} {
		assert.True(t, strings.Contains(string(body), line), line)
	}
}
