package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mpcal/domain/core"
	"mpcal/domain/experiment"
	"mpcal/ports"
)

// ResultsDirName is the leaf directory holding per-unit result files
const ResultsDirName = "results"

// requiredResultFields must be present in every valid result document
var requiredResultFields = []string{"kendalls_tau", "mean_absolute_error"}

// ResultStore reads and writes <outputDir>/<source>/<strategy>/results/<stem>_results.json
type ResultStore struct {
	outputDir string
}

var _ ports.ResultSink = (*ResultStore)(nil)

// NewResultStore creates a store rooted at outputDir
func NewResultStore(outputDir string) *ResultStore {
	return &ResultStore{outputDir: outputDir}
}

// ResultsDir returns the directory of one (source, strategy) pair
func (s *ResultStore) ResultsDir(source, strategy string) string {
	return filepath.Join(s.outputDir, source, strategy, ResultsDirName)
}

// ResultPath returns the file path for one unit result
func (s *ResultStore) ResultPath(source, strategy string, key experiment.UnitKey) string {
	return filepath.Join(s.ResultsDir(source, strategy), key.ResultFilename())
}

// WriteUnitResult writes one result document, creating directories as needed
func (s *ResultStore) WriteUnitResult(ctx context.Context, source, strategy string, key experiment.UnitKey, result ports.UnitResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteJSON(s.ResultPath(source, strategy, key), result)
}

// ListResultFiles returns the sorted *_results.json names of one
// (source, strategy) pair. A missing directory yields no names.
func (s *ResultStore) ListResultFiles(source, strategy string) ([]string, error) {
	entries, err := os.ReadDir(s.ResultsDir(source, strategy))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), experiment.ResultSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadUnitResult decodes a result file. Invalid JSON or a required field
// that is missing, null or not a number yields an error wrapping core.ErrMalformedResult.
func ReadUnitResult(path string) (ports.UnitResult, error) {
	var result ports.UnitResult

	body, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("%w: %v", core.ErrMalformedResult, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return result, fmt.Errorf("%w: invalid JSON: %v", core.ErrMalformedResult, err)
	}
	for _, name := range requiredResultFields {
		raw, ok := fields[name]
		if !ok {
			return result, fmt.Errorf("%w: missing key %s", core.ErrMalformedResult, name)
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return result, fmt.Errorf("%w: %s is not a number: %v", core.ErrMalformedResult, name, err)
		}
		if v == nil {
			return result, fmt.Errorf("%w: %s is null", core.ErrMalformedResult, name)
		}
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("%w: %v", core.ErrMalformedResult, err)
	}
	return result, nil
}

// WriteJSON writes v as indented JSON, creating parent directories
func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var _ ports.ResultCatalog = (*ResultStore)(nil)

// ResultFilePath joins a file name onto the results directory of a pair
func (s *ResultStore) ResultFilePath(source, strategy, filename string) string {
	return filepath.Join(s.ResultsDir(source, strategy), filename)
}

// ReadResult implements ports.ResultCatalog
func (s *ResultStore) ReadResult(path string) (ports.UnitResult, error) {
	return ReadUnitResult(path)
}
