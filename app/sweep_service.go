package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"mpcal/domain/core"
	"mpcal/domain/experiment"
	"mpcal/domain/ranking"
	"mpcal/internal"
	"mpcal/internal/analysis"
	"mpcal/internal/calibration"
	apperrors "mpcal/internal/errors"
	"mpcal/internal/report"
	"mpcal/ports"
)

// Output file names written by the sweep
const (
	SweepTableFile    = "sweep_results.csv"
	SweepFailuresFile = "sweep_failures.json"
	ManifestFile      = "manifest.json"
)

// SweepOptions is the immutable run configuration of a sweep
type SweepOptions struct {
	Grid        experiment.Grid
	Sources     []string
	Strategies  []string
	Fit         ports.FitConfig
	Titles      map[string]experiment.Title
	Seed        int64
	ConfigHash  core.ConfigHash
	CodeVersion string

	// ReportDir receives the table, failures and manifest; empty disables them
	ReportDir string
	// MetadataDir receives one <stem>.csv per unit; empty disables them
	MetadataDir string
	MetricsFile string
}

// SweepFailure records a unit or strategy that produced no record
type SweepFailure struct {
	Source   string `json:"source"`
	Strategy string `json:"strategy,omitempty"`
	Stem     string `json:"stem,omitempty"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// SweepResult contains the complete output of a sweep
type SweepResult struct {
	Manifest  *experiment.Manifest `json:"manifest"`
	Records   []experiment.Record  `json:"-"`
	Failures  []SweepFailure       `json:"failures"`
	RuntimeMs int64                `json:"runtime_ms"`
}

// DocumentWriter persists auxiliary JSON documents
type DocumentWriter func(path string, v interface{}) error

// SweepService drives analysis, fitting and calibration over the experiment grid
type SweepService struct {
	source    ports.UnitSource
	registry  ports.StrategyRegistry
	sink      ports.ResultSink
	table     ports.TableWriter
	metadata  ports.TableWriter
	documents DocumentWriter
	analyzer  *analysis.RankingAnalyzer
	evaluator *calibration.Evaluator
	metrics   *report.Metrics
	logger    *internal.Logger
	opts      SweepOptions
}

// SweepDeps groups the collaborators of a SweepService. Sink, Table,
// Metadata, Documents and Metrics may be nil to disable that output.
type SweepDeps struct {
	Source    ports.UnitSource
	Registry  ports.StrategyRegistry
	Sink      ports.ResultSink
	Table     ports.TableWriter
	Metadata  ports.TableWriter
	Documents DocumentWriter
	Metrics   *report.Metrics
	Logger    *internal.Logger
}

// NewSweepService validates that every configured strategy is registered
func NewSweepService(deps SweepDeps, opts SweepOptions) (*SweepService, error) {
	for _, name := range opts.Strategies {
		if _, err := deps.Registry.Get(name); err != nil {
			return nil, apperrors.Wrap(apperrors.ConfigInvalid(err.Error()), "strategy not available")
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SweepService{
		source:    deps.Source,
		registry:  deps.Registry,
		sink:      deps.Sink,
		table:     deps.Table,
		metadata:  deps.Metadata,
		documents: deps.Documents,
		analyzer:  analysis.NewRankingAnalyzer(),
		evaluator: calibration.NewEvaluator(opts.Fit.RandomPerms),
		metrics:   deps.Metrics,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Run processes every grid unit of every source in configuration order.
// rng is consumed in a fixed order so a seed reproduces the whole sweep.
func (s *SweepService) Run(ctx context.Context, rng *rand.Rand) (*SweepResult, error) {
	return s.run(ctx, s.opts.Grid.Units(), rng)
}

// RunUnit processes a single stem for every source; this is the unit of work
// of one launched process.
func (s *SweepService) RunUnit(ctx context.Context, stem string, rng *rand.Rand) (*SweepResult, error) {
	key, err := experiment.ParseKey(stem)
	if err != nil {
		return nil, apperrors.UnparseableID(stem, err)
	}
	return s.run(ctx, []experiment.UnitKey{key}, rng)
}

func (s *SweepService) run(ctx context.Context, keys []experiment.UnitKey, rng *rand.Rand) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{
		Manifest: experiment.NewManifest(s.opts.Seed, s.opts.ConfigHash, s.opts.CodeVersion, s.opts.Grid, s.opts.Sources, s.opts.Strategies),
	}
	s.logger.Info("sweep %s (config %s): %d units x %d sources x %d strategies",
		result.Manifest.RunID, core.Hash(s.opts.ConfigHash).Short(), len(keys), len(s.opts.Sources), len(s.opts.Strategies))

	for _, source := range s.opts.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.source.LoadSource(ctx, source)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("skipping data source %s: %v", source, err)
			for _, name := range s.opts.Strategies {
				for range keys {
					s.recordOutcome(name, report.StatusSkipped)
				}
			}
			result.Failures = append(result.Failures, SweepFailure{
				Source: source,
				Code:   apperrors.CodeMissingData,
				Reason: err.Error(),
			})
			continue
		}

		for _, key := range keys {
			records, failures, err := s.runUnit(ctx, source, data, key, rng)
			if err != nil {
				return nil, err
			}
			result.Records = append(result.Records, records...)
			result.Failures = append(result.Failures, failures...)
		}
	}

	result.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("sweep %s finished: %d records, %d failures in %dms", result.Manifest.RunID, len(result.Records), len(result.Failures), result.RuntimeMs)

	if err := s.writeOutputs(ctx, keys, result); err != nil {
		return result, err
	}
	return result, nil
}

// reference holds the surrogate ground truth from a data source's generating framework
type reference struct {
	orderings  []ranking.Ordering
	separation float64
	sharpness  float64
}

// runUnit returns the records of one unit of one source. Only context
// cancellation and output write failures are returned as errors; everything
// else is reported as a failure and skipped.
func (s *SweepService) runUnit(ctx context.Context, source string, data ports.SourceData, key experiment.UnitKey, rng *rand.Rand) ([]experiment.Record, []SweepFailure, error) {
	stem := key.Stem()
	unit, err := data.Unit(stem)
	if err != nil {
		code := apperrors.CodeValidationError
		if core.IsNotFoundError(err) {
			code = apperrors.CodeMissingData
		}
		err = apperrors.WithCode(code, err)
		s.logger.Warn("%s/%s: %v", source, stem, err)
		return nil, []SweepFailure{{Source: source, Stem: stem, Code: apperrors.GetCode(err), Reason: err.Error()}}, nil
	}

	diag := s.analyzer.Analyze(unit.Matrix)
	s.logger.Debug("%s/%s: conflict=%.4f overlap=%.4f rows=%d", source, stem, diag.Conflict, diag.OverlapRate, diag.NumRows)

	ref, err := s.reference(ctx, source, unit, rng)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		s.logger.Warn("%s/%s: reference framework unavailable, using each strategy's own consensus: %v", source, stem, err)
		ref = &reference{separation: math.NaN(), sharpness: math.NaN()}
	}

	title := experiment.Title{Title: key.E}
	if t, ok := s.opts.Titles[key.E]; ok {
		title = t
	}

	var records []experiment.Record
	var failures []SweepFailure
	for _, name := range s.opts.Strategies {
		record, err := s.evaluate(ctx, source, data.Biomarkers(), unit, key, name, ref, rng)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Code == apperrors.CodeOutputWriteFailed {
				return nil, nil, err
			}
			s.recordOutcome(name, report.StatusFailure)
			s.logger.Warn("%s/%s/%s: %v", source, stem, name, err)
			failures = append(failures, SweepFailure{
				Source:   source,
				Strategy: name,
				Stem:     stem,
				Code:     apperrors.GetCode(err),
				Reason:   err.Error(),
			})
			continue
		}

		record.ExperimentTitle = title.Title
		record.ExperimentNumber = title.Number
		record.NPartialRankings = unit.NPartialRankings
		record.AveragePartialLength = diag.AveragePartialLength
		record.Conflict = diag.Conflict
		record.OverlapRate = diag.OverlapRate
		record.PairwiseOverlap = diag.PairwiseOverlap
		records = append(records, *record)
		s.recordOutcome(name, report.StatusSuccess)
	}
	return records, failures, nil
}

// reference fits the data source's generating framework when it is a
// registered strategy. Random and unknown frameworks yield no orderings.
func (s *SweepService) reference(ctx context.Context, source string, unit *ranking.UnitData, rng *rand.Rand) (*reference, error) {
	framework := experiment.ParseFramework(source)
	none := &reference{separation: math.NaN(), sharpness: math.NaN()}
	if framework.IsRandom() {
		return none, nil
	}
	strategy, err := s.registry.Get(framework.Name)
	if err != nil {
		return none, nil
	}

	fitted, err := strategy.Fit(ctx, unit.Matrix, s.fitConfig(source), rng)
	if err != nil {
		return nil, err
	}
	cal, err := s.evaluator.Evaluate(ctx, fitted, rng, nil, nil)
	if err != nil {
		return nil, err
	}

	orderings := fitted.SampledCombinedOrderings()
	return &reference{
		orderings:  orderings,
		separation: cal.Rho,
		sharpness:  calibration.Sharpness(orderings),
	}, nil
}

func (s *SweepService) evaluate(ctx context.Context, source string, index *ranking.BiomarkerIndex, unit *ranking.UnitData, key experiment.UnitKey, name string, ref *reference, rng *rand.Rand) (*experiment.Record, error) {
	strategy, err := s.registry.Get(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigInvalid(err.Error()), "unknown strategy")
	}

	started := time.Now()
	fitted, err := strategy.Fit(ctx, unit.Matrix, s.fitConfig(source), rng)
	if err != nil {
		if core.IsInsufficientData(err) {
			return nil, apperrors.InsufficientData(name, err)
		}
		return nil, apperrors.Wrapf(err, "fitting %s", name)
	}

	cal, err := s.evaluator.Evaluate(ctx, fitted, rng, ref.orderings, unit.TrueOrder)
	if err != nil {
		return nil, apperrors.Wrapf(err, "calibrating %s", name)
	}
	if s.metrics != nil {
		s.metrics.ObserveFit(name, time.Since(started).Seconds(), cal.Rho)
	}

	best := fitted.Best()
	tau, mae := math.NaN(), math.NaN()
	if len(unit.TrueOrder) > 0 {
		tau = ranking.NormalizedKendallTau(best, unit.TrueOrder)
		mae = ranking.MeanAbsolutePositionError(best, unit.TrueOrder)
	}

	record := &experiment.Record{
		Source:            source,
		Key:               key,
		Strategy:          name,
		SpearmanRho:       cal.Rho,
		SpearmanP:         cal.PValue,
		TruthRho:          cal.TruthRho,
		NRandomPerms:      cal.NRandomPerms,
		LowConfidence:     cal.LowConfidence,
		Degenerate:        cal.Degenerate,
		Separation:        ref.separation,
		Sharpness:         ref.sharpness,
		KendallsTau:       tau,
		MeanAbsoluteError: mae,
	}

	if s.sink != nil {
		if math.IsNaN(tau) {
			return nil, apperrors.MissingData("ground-truth ordering for "+key.Stem(), core.ErrDataNotFound)
		}
		doc := ports.UnitResult{
			KendallsTau:        tau,
			MeanAbsoluteError:  mae,
			OrderWithHighestLL: index.NamePositions(best),
			Energy:             fitted.Energy(best),
		}
		if !math.IsNaN(cal.Rho) {
			rho := cal.Rho
			doc.SpearmanRho = &rho
		}
		if err := s.sink.WriteUnitResult(ctx, source, name, key, doc); err != nil {
			return nil, apperrors.OutputWriteFailed(key.ResultFilename(), err)
		}
	}
	return record, nil
}

// fitConfig applies the data source's `_T<temp>` suffix, when present, to
// every strategy fitted on that source
func (s *SweepService) fitConfig(source string) ports.FitConfig {
	cfg := s.opts.Fit
	if framework := experiment.ParseFramework(source); framework.HasTemperature {
		cfg.Temperature = framework.Temperature
	}
	return cfg
}

func (s *SweepService) recordOutcome(strategy, status string) {
	if s.metrics != nil {
		s.metrics.IncUnit(strategy, status)
	}
}

func (s *SweepService) writeOutputs(ctx context.Context, keys []experiment.UnitKey, result *SweepResult) error {
	if s.metadata != nil && s.opts.MetadataDir != "" {
		byStem := make(map[string][]experiment.Record)
		for _, r := range result.Records {
			byStem[r.Key.Stem()] = append(byStem[r.Key.Stem()], r)
		}
		for _, key := range keys {
			records, ok := byStem[key.Stem()]
			if !ok {
				continue
			}
			path := filepath.Join(s.opts.MetadataDir, key.Stem()+".csv")
			if err := s.metadata.WriteRecords(ctx, path, records); err != nil {
				return apperrors.OutputWriteFailed(path, err)
			}
		}
	}

	if s.opts.ReportDir != "" {
		if s.table != nil {
			sorted := append([]experiment.Record(nil), result.Records...)
			experiment.SortRecords(sorted)
			path := filepath.Join(s.opts.ReportDir, SweepTableFile)
			if err := s.table.WriteRecords(ctx, path, sorted); err != nil {
				return apperrors.OutputWriteFailed(path, err)
			}
		}
		if s.documents != nil {
			if err := s.documents(filepath.Join(s.opts.ReportDir, ManifestFile), result.Manifest); err != nil {
				return apperrors.OutputWriteFailed(ManifestFile, err)
			}
			if err := s.documents(filepath.Join(s.opts.ReportDir, SweepFailuresFile), result.Failures); err != nil {
				return apperrors.OutputWriteFailed(SweepFailuresFile, err)
			}
		}
	}

	if s.metrics != nil && s.opts.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
			return apperrors.OutputWriteFailed(s.opts.MetricsFile, err)
		}
	}
	return nil
}

// String summarises a failure for logs
func (f SweepFailure) String() string {
	return fmt.Sprintf("%s/%s/%s [%s] %s", f.Source, f.Strategy, f.Stem, f.Code, f.Reason)
}
