package ports

import (
	"context"

	"mpcal/domain/experiment"
)

// UnitResult is the per (unit x strategy) document written for reconciliation
type UnitResult struct {
	KendallsTau        float64        `json:"kendalls_tau"`
	MeanAbsoluteError  float64        `json:"mean_absolute_error"`
	OrderWithHighestLL map[string]int `json:"order_with_highest_ll"`
	SpearmanRho        *float64       `json:"spearman_rho,omitempty"`
	Energy             float64        `json:"energy"`
}

// ResultSink persists per-unit result documents
type ResultSink interface {
	WriteUnitResult(ctx context.Context, source, strategy string, key experiment.UnitKey, result UnitResult) error
}

// TableWriter persists the aggregated long-format table
type TableWriter interface {
	WriteRecords(ctx context.Context, path string, records []experiment.Record) error
}

// ResultCatalog lists and reads result documents for reconciliation
type ResultCatalog interface {
	// ListResultFiles returns the *_results.json names of one pair; a
	// missing directory yields none
	ListResultFiles(source, strategy string) ([]string, error)
	ResultFilePath(source, strategy, filename string) string
	// ReadResult returns an error wrapping core.ErrMalformedResult when the
	// document is unreadable or lacks a required field
	ReadResult(path string) (UnitResult, error)
}

// ArtifactStore writes the flat-file side outputs of reconciliation
type ArtifactStore interface {
	// WriteLines writes an optional header line followed by one line per entry
	WriteLines(path, header string, lines []string) error
	// MergeTables concatenates every CSV in dir under the union of their
	// headers. Files that cannot be read are returned as skipped.
	MergeTables(dir string) (headers []string, rows [][]string, skipped []string, err error)
	WriteTable(path string, headers []string, rows [][]string) error
	// CopyFile copies src to dst; a missing src returns false without error
	CopyFile(src, dst string) (bool, error)
}
