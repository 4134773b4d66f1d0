package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"mpcal/domain/core"
	"mpcal/domain/experiment"
	"mpcal/internal"
	apperrors "mpcal/internal/errors"
	"mpcal/internal/report"
	"mpcal/ports"
)

// Reconciliation output names, relative to the report directory
const (
	MissingFilesFile    = "missing_files.txt"
	NACombinationsFile  = "na_combinations.txt"
	FailedFilesFile     = "failed_files.txt"
	CalibrationFile     = "all_calibration.csv"
	MissingFilesHeader  = "Data_Framework,Algorithm,Filename"
	FailedFilesHeader   = "Path, Reason"
	logFilePrefix       = "eval_"
	reconcileReportName = "Reconciliation report"
)

// Buckets a found result file can land in
const (
	BucketValid             = "valid"
	BucketUnparseable       = "unparseable"
	BucketInvalidParameters = "invalid_parameters"
	BucketInvalidSchema     = "invalid_schema"
)

var logExtensions = []string{".err", ".out", ".log"}

// ReconcileOptions configures a reconciliation pass
type ReconcileOptions struct {
	Grid       experiment.Grid
	Sources    []string
	Strategies []string
	Titles     map[string]experiment.Title

	ReportDir    string
	ResultsFile  string // file name of the aggregated table inside ReportDir
	MetadataDir  string
	LogsDir      string
	ErrorLogsDir string
	MetricsFile  string
}

// MissingFile is one expected result file that was not found
type MissingFile struct {
	Source   string `json:"source"`
	Strategy string `json:"strategy"`
	Filename string `json:"filename"`
}

// InvalidFile is one found result file that could not be used
type InvalidFile struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Reason string `json:"reason"`
}

// ReconcileResult is the outcome of comparing expected and found results
type ReconcileResult struct {
	Expected       int
	Found          int
	Records        []experiment.Record
	Missing        []MissingFile
	Invalid        []InvalidFile
	NACombinations []string
	CopiedLogs     []string
	RuntimeMs      int64
}

// Count returns the number of found files in a bucket
func (r *ReconcileResult) Count(bucket string) int {
	if bucket == BucketValid {
		return len(r.Records)
	}
	n := 0
	for _, f := range r.Invalid {
		if f.Bucket == bucket {
			n++
		}
	}
	return n
}

// ReconcileService compares the expected result grid with the files a sweep
// produced and writes the aggregated table and diagnostic reports.
type ReconcileService struct {
	catalog   ports.ResultCatalog
	table     ports.TableWriter
	artifacts ports.ArtifactStore
	metrics   *report.Metrics
	logger    *internal.Logger
	opts      ReconcileOptions
}

// NewReconcileService creates a reconcile service. metrics may be nil.
func NewReconcileService(catalog ports.ResultCatalog, table ports.TableWriter, artifacts ports.ArtifactStore, metrics *report.Metrics, logger *internal.Logger, opts ReconcileOptions) *ReconcileService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReconcileService{
		catalog:   catalog,
		table:     table,
		artifacts: artifacts,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

type foundKey struct {
	source, strategy, filename string
}

type calibrationKey struct {
	source, strategy, stem string
}

// Run reconciles every (source, strategy) pair. Individual bad files are
// recorded and never abort the pass; only output write failures are returned.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileResult, error) {
	start := time.Now()
	result := &ReconcileResult{}

	calibration := s.loadCalibration()

	found := make(map[foundKey]bool)
	for _, source := range s.opts.Sources {
		for _, strategy := range s.opts.Strategies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			names, err := s.catalog.ListResultFiles(source, strategy)
			if err != nil {
				s.logger.Warn("cannot list results for %s/%s: %v", source, strategy, err)
				continue
			}
			for _, name := range names {
				found[foundKey{source, strategy, name}] = true
				result.Found++
				s.classify(source, strategy, name, calibration, result)
			}
		}
	}

	naStems := make(map[string]bool)
	for _, source := range s.opts.Sources {
		for _, strategy := range s.opts.Strategies {
			for _, key := range s.opts.Grid.Units() {
				result.Expected++
				name := key.ResultFilename()
				if found[foundKey{source, strategy, name}] {
					continue
				}
				result.Missing = append(result.Missing, MissingFile{Source: source, Strategy: strategy, Filename: name})
				naStems[key.Stem()] = true
			}
		}
	}
	for stem := range naStems {
		result.NACombinations = append(result.NACombinations, stem)
	}
	sort.Strings(result.NACombinations)
	experiment.SortRecords(result.Records)

	s.logger.Info("reconcile: expected=%d found=%d valid=%d missing=%d invalid=%d",
		result.Expected, result.Found, len(result.Records), len(result.Missing), len(result.Invalid))

	if err := s.writeOutputs(ctx, result); err != nil {
		return result, err
	}
	result.RuntimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// classify places one found file into exactly one bucket
func (s *ReconcileService) classify(source, strategy, name string, calibration map[calibrationKey]experiment.Record, result *ReconcileResult) {
	path := s.catalog.ResultFilePath(source, strategy, name)
	invalid := func(bucket string, err error) {
		s.logger.Debug("%s: %s: %v", path, bucket, err)
		result.Invalid = append(result.Invalid, InvalidFile{Path: path, Bucket: bucket, Reason: err.Error()})
		s.countFile(bucket)
	}

	key, err := experiment.ParseResultFilename(name)
	if err != nil {
		invalid(BucketUnparseable, apperrors.UnparseableID(name, err))
		return
	}
	if err := s.opts.Grid.Check(key); err != nil {
		invalid(BucketInvalidParameters, err)
		return
	}
	doc, err := s.catalog.ReadResult(path)
	if err != nil {
		if errors.Is(err, core.ErrMalformedResult) {
			err = apperrors.MalformedResult(path, err)
		}
		invalid(BucketInvalidSchema, err)
		return
	}

	record, ok := calibration[calibrationKey{source, strategy, key.Stem()}]
	if !ok {
		record = experiment.Record{
			AveragePartialLength: math.NaN(),
			Conflict:             math.NaN(),
			OverlapRate:          math.NaN(),
			PairwiseOverlap:      math.NaN(),
			SpearmanRho:          math.NaN(),
			SpearmanP:            math.NaN(),
			TruthRho:             math.NaN(),
			Separation:           math.NaN(),
			Sharpness:            math.NaN(),
		}
		if doc.SpearmanRho != nil {
			record.SpearmanRho = *doc.SpearmanRho
		}
	}
	record.Source = source
	record.Strategy = strategy
	record.Key = key
	record.KendallsTau = doc.KendallsTau
	record.MeanAbsoluteError = doc.MeanAbsoluteError
	if t, ok := s.opts.Titles[key.E]; ok {
		record.ExperimentTitle = t.Title
		record.ExperimentNumber = t.Number
	}
	result.Records = append(result.Records, record)
	s.countFile(BucketValid)
}

// loadCalibration reads the per-unit metadata tables written by sweeps.
// A missing or unreadable directory yields an empty join.
func (s *ReconcileService) loadCalibration() map[calibrationKey]experiment.Record {
	out := make(map[calibrationKey]experiment.Record)
	if s.opts.MetadataDir == "" {
		return out
	}
	headers, rows, skipped, err := s.artifacts.MergeTables(s.opts.MetadataDir)
	if err != nil {
		s.logger.Warn("no calibration metadata: %v", err)
		return out
	}
	for _, name := range skipped {
		s.logger.Warn("skipping unreadable metadata file %s", name)
	}
	for _, row := range rows {
		r, err := experiment.RecordFromRow(headers, row)
		if err != nil {
			s.logger.Debug("skipping metadata row: %v", err)
			continue
		}
		out[calibrationKey{r.Source, r.Strategy, r.Key.Stem()}] = r
	}

	if s.opts.ReportDir != "" && len(rows) > 0 {
		path := filepath.Join(s.opts.ReportDir, CalibrationFile)
		if err := s.artifacts.WriteTable(path, headers, rows); err != nil {
			s.logger.Warn("failed to write %s: %v", path, err)
		}
	}
	return out
}

func (s *ReconcileService) countFile(bucket string) {
	if s.metrics != nil {
		s.metrics.IncResultFile(bucket)
	}
}

func (s *ReconcileService) writeOutputs(ctx context.Context, result *ReconcileResult) error {
	if s.metrics != nil {
		s.metrics.SetMissing(len(result.Missing))
	}
	if s.opts.ReportDir == "" {
		return nil
	}

	name := s.opts.ResultsFile
	if name == "" {
		name = "all_results.csv"
	}
	resultsPath := filepath.Join(s.opts.ReportDir, name)
	if err := s.table.WriteRecords(ctx, resultsPath, result.Records); err != nil {
		return apperrors.OutputWriteFailed(resultsPath, err)
	}

	missing := make([]string, len(result.Missing))
	for i, m := range result.Missing {
		missing[i] = fmt.Sprintf("%s,%s,%s", m.Source, m.Strategy, m.Filename)
	}
	failed := make([]string, len(result.Invalid))
	for i, f := range result.Invalid {
		failed[i] = fmt.Sprintf("%s, %s", f.Path, f.Reason)
	}

	lists := []struct {
		file, header string
		lines        []string
	}{
		{MissingFilesFile, MissingFilesHeader, missing},
		{NACombinationsFile, "", result.NACombinations},
		{FailedFilesFile, FailedFilesHeader, failed},
	}
	for _, l := range lists {
		path := filepath.Join(s.opts.ReportDir, l.file)
		if err := s.artifacts.WriteLines(path, l.header, l.lines); err != nil {
			return apperrors.OutputWriteFailed(path, err)
		}
	}

	s.collectLogs(result)

	rep := &report.Report{
		Title:       reconcileReportName,
		GeneratedAt: time.Now(),
		Counts: []report.Count{
			{Label: "expected", Value: result.Expected},
			{Label: "found", Value: result.Found},
			{Label: BucketValid, Value: result.Count(BucketValid)},
			{Label: "missing", Value: len(result.Missing)},
			{Label: BucketUnparseable, Value: result.Count(BucketUnparseable)},
			{Label: BucketInvalidParameters, Value: result.Count(BucketInvalidParameters)},
			{Label: BucketInvalidSchema, Value: result.Count(BucketInvalidSchema)},
		},
		Strategies: report.SummarizeStrategies(result.Records),
	}
	if len(result.NACombinations) > 0 {
		rep.Notes = append(rep.Notes, fmt.Sprintf("%d experiment units have at least one missing result; see %s.", len(result.NACombinations), NACombinationsFile))
	}
	if err := rep.Write(s.opts.ReportDir); err != nil {
		return apperrors.OutputWriteFailed(s.opts.ReportDir, err)
	}

	if s.metrics != nil && s.opts.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
			return apperrors.OutputWriteFailed(s.opts.MetricsFile, err)
		}
	}
	return nil
}

// collectLogs copies the per-unit logs of every unit with a missing result
// into the error-log directory
func (s *ReconcileService) collectLogs(result *ReconcileResult) {
	if s.opts.LogsDir == "" || s.opts.ErrorLogsDir == "" {
		return
	}
	for _, stem := range result.NACombinations {
		for _, ext := range logExtensions {
			name := logFilePrefix + stem + ext
			copied, err := s.artifacts.CopyFile(filepath.Join(s.opts.LogsDir, name), filepath.Join(s.opts.ErrorLogsDir, name))
			if err != nil {
				s.logger.Warn("failed to copy log %s: %v", name, err)
				continue
			}
			if copied {
				result.CopiedLogs = append(result.CopiedLogs, name)
			}
		}
	}
}
