package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mpcal/domain/core"
	"mpcal/domain/ranking"
	"mpcal/ports"
)

// SourceFilePrefix is prepended to the data source name to form the input file name
const SourceFilePrefix = "true_order_and_stages_"

// SourceFileName returns the input file name of a data source
func SourceFileName(source string) string {
	return SourceFilePrefix + source + ".json"
}

// rawUnit is one stem entry of an input file. true_order and true_stages
// accept both object and array encodings so they are decoded lazily.
type rawUnit struct {
	OrderingArray    [][]int         `json:"ordering_array"`
	TrueOrder        json.RawMessage `json:"true_order"`
	TrueStages       json.RawMessage `json:"true_stages"`
	NPartialRankings *int            `json:"n_partial_rankings"`
}

// FileSource reads partial rankings from <dataDir>/true_order_and_stages_<source>.json
type FileSource struct {
	dataDir    string
	biomarkers []string
	paramsFile string
}

var _ ports.UnitSource = (*FileSource)(nil)

// NewFileSource creates a source reader. The biomarker universe comes from
// biomarkers when non-empty, else from the keys of paramsFile, else from the
// keys of name-keyed true_order objects in each file.
func NewFileSource(dataDir string, biomarkers []string, paramsFile string) *FileSource {
	return &FileSource{dataDir: dataDir, biomarkers: biomarkers, paramsFile: paramsFile}
}

// LoadSource reads and indexes one data source file
func (s *FileSource) LoadSource(ctx context.Context, source string) (ports.SourceData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dataDir, SourceFileName(source))
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrDataNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var units map[string]rawUnit
	if err := json.Unmarshal(body, &units); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	index, err := s.biomarkerIndex(units)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", source, err)
	}
	return &sourceData{source: source, units: units, index: index}, nil
}

func (s *FileSource) biomarkerIndex(units map[string]rawUnit) (*ranking.BiomarkerIndex, error) {
	if len(s.biomarkers) > 0 {
		return ranking.NewBiomarkerIndex(s.biomarkers)
	}
	if s.paramsFile != "" {
		names, err := paramsFileNames(s.paramsFile)
		if err != nil {
			return nil, err
		}
		return ranking.NewBiomarkerIndex(names)
	}

	names := make(map[string]bool)
	maxIndex := -1
	for _, u := range units {
		var byName map[string]float64
		if err := json.Unmarshal(u.TrueOrder, &byName); err == nil {
			for name := range byName {
				names[name] = true
			}
			continue
		}
		for _, row := range u.OrderingArray {
			for _, idx := range row {
				if idx > maxIndex {
					maxIndex = idx
				}
			}
		}
		var byIndex []int
		if err := json.Unmarshal(u.TrueOrder, &byIndex); err == nil {
			for _, idx := range byIndex {
				if idx > maxIndex {
					maxIndex = idx
				}
			}
		}
	}

	if len(names) > 0 {
		list := make([]string, 0, len(names))
		for name := range names {
			list = append(list, name)
		}
		return ranking.NewBiomarkerIndex(list)
	}
	if maxIndex < 0 {
		return nil, core.NewValidationError("biomarkers", "cannot infer the biomarker universe")
	}
	return ranking.NewBiomarkerIndex(SyntheticNames(maxIndex + 1))
}

// SyntheticNames returns n zero-padded names whose alphabetical order matches
// their numeric order, used when a file carries indices only.
func SyntheticNames(n int) []string {
	width := len(strconv.Itoa(n - 1))
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("biomarker_%0*d", width, i)
	}
	return out
}

func paramsFileNames(path string) ([]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file %s: %w", path, err)
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, fmt.Errorf("failed to decode params file %s: %w", path, err)
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	return names, nil
}

type sourceData struct {
	source string
	units  map[string]rawUnit
	index  *ranking.BiomarkerIndex
}

func (d *sourceData) Biomarkers() *ranking.BiomarkerIndex { return d.index }

// Unit decodes one stem. Structural problems surface here rather than at
// load time so one bad unit does not hide the rest of the file.
func (d *sourceData) Unit(stem string) (*ranking.UnitData, error) {
	raw, ok := d.units[stem]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", core.ErrUnitNotFound, stem, d.source)
	}

	matrix, err := ranking.FromPadded(raw.OrderingArray)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", stem, err)
	}

	truth, err := d.decodeTrueOrder(raw.TrueOrder)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", stem, err)
	}

	stages, err := decodeStages(raw.TrueStages)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", stem, err)
	}

	n := matrix.NumRows()
	if raw.NPartialRankings != nil {
		n = *raw.NPartialRankings
	}

	unit := &ranking.UnitData{
		Stem:             stem,
		Matrix:           matrix,
		TrueOrder:        truth,
		Stages:           stages,
		NPartialRankings: n,
	}
	if err := unit.Validate(d.index.Len()); err != nil {
		return nil, fmt.Errorf("unit %s: %w", stem, err)
	}
	return unit, nil
}

func (d *sourceData) decodeTrueOrder(raw json.RawMessage) (ranking.Ordering, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var byIndex []int
	if err := json.Unmarshal(raw, &byIndex); err == nil {
		return ranking.Ordering(byIndex), nil
	}

	var byName map[string]float64
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, core.NewValidationError("true_order", "must be an index array or a name to position object")
	}
	return d.index.OrderingFromPositions(byName)
}

func decodeStages(raw json.RawMessage) (ranking.StageAssignment, error) {
	stages := make(ranking.StageAssignment)
	if len(raw) == 0 || string(raw) == "null" {
		return stages, nil
	}

	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		for i, s := range list {
			stages[strconv.Itoa(i)] = s
		}
		return stages, nil
	}

	if err := json.Unmarshal(raw, &stages); err != nil {
		return nil, core.NewValidationError("true_stages", "must be a stage array or a subject to stage object")
	}
	return stages, nil
}
