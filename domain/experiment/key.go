package experiment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mpcal/domain/core"
)

// ResultSuffix terminates every per-unit result filename
const ResultSuffix = "_results.json"

var keyPattern = regexp.MustCompile(`^j(\d+)_r([\d.]+)_E(.*?)_m(\d+)$`)

// UnitKey names one generated dataset: sample-size factor J, noise-rate
// factor R, experiment design E and replicate index M.
type UnitKey struct {
	J int     `json:"J"`
	R float64 `json:"R"`
	E string  `json:"E"`
	M int     `json:"M"`
}

// Validate checks the fields can be encoded without ambiguity
func (k UnitKey) Validate() error {
	if k.J < 0 {
		return core.NewValidationError("J", "must be non-negative")
	}
	if k.R < 0 {
		return core.NewValidationError("R", "must be non-negative")
	}
	if k.M < 0 {
		return core.NewValidationError("M", "must be non-negative")
	}
	if k.E == "" {
		return core.NewValidationError("E", "cannot be empty")
	}
	if strings.Contains(k.E, "_") {
		return core.NewValidationError("E", "cannot contain underscores")
	}
	return nil
}

// Stem encodes the key as j<J>_r<R>_E<E>_m<M>. R is written the way the data
// generator writes floats, always with a decimal point.
func (k UnitKey) Stem() string {
	return fmt.Sprintf("j%d_r%s_E%s_m%d", k.J, FormatR(k.R), k.E, k.M)
}

// String implements fmt.Stringer
func (k UnitKey) String() string {
	return k.Stem()
}

// ResultFilename returns the per-unit result file name
func (k UnitKey) ResultFilename() string {
	return k.Stem() + ResultSuffix
}

// FormatR renders a noise factor with the shortest exact representation,
// keeping a trailing ".0" for integral values.
func FormatR(r float64) string {
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ParseKey decodes a stem. Malformed strings are rejected rather than
// partially assigned.
func ParseKey(stem string) (UnitKey, error) {
	match := keyPattern.FindStringSubmatch(stem)
	if match == nil {
		return UnitKey{}, fmt.Errorf("%w: %q", core.ErrUnparseableKey, stem)
	}

	j, err := strconv.Atoi(match[1])
	if err != nil {
		return UnitKey{}, fmt.Errorf("%w: J in %q: %v", core.ErrUnparseableKey, stem, err)
	}
	r, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return UnitKey{}, fmt.Errorf("%w: R in %q: %v", core.ErrUnparseableKey, stem, err)
	}
	m, err := strconv.Atoi(match[4])
	if err != nil {
		return UnitKey{}, fmt.Errorf("%w: M in %q: %v", core.ErrUnparseableKey, stem, err)
	}

	key := UnitKey{J: j, R: r, E: match[3], M: m}
	if err := key.Validate(); err != nil {
		return UnitKey{}, fmt.Errorf("%w: %q: %v", core.ErrUnparseableKey, stem, err)
	}
	return key, nil
}

// ParseResultFilename strips the result suffix and parses the remaining stem
func ParseResultFilename(name string) (UnitKey, error) {
	if !strings.HasSuffix(name, ResultSuffix) {
		return UnitKey{}, fmt.Errorf("%w: %q lacks %s", core.ErrUnparseableKey, name, ResultSuffix)
	}
	return ParseKey(strings.TrimSuffix(name, ResultSuffix))
}
