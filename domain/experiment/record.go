package experiment

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Title is the display name and number of an experiment design
type Title struct {
	Title  string `koanf:"title" json:"title"`
	Number int    `koanf:"number" json:"number"`
}

// Record is one row of the aggregated table: one experiment unit under one
// aggregation strategy. Records are values and are never mutated once built.
type Record struct {
	Source   string
	Key      UnitKey
	Strategy string

	ExperimentTitle  string
	ExperimentNumber int

	NPartialRankings     int
	AveragePartialLength float64
	Conflict             float64
	OverlapRate          float64
	PairwiseOverlap      float64

	SpearmanRho   float64
	SpearmanP     float64
	TruthRho      float64
	NRandomPerms  int
	LowConfidence bool
	Degenerate    bool

	Separation float64
	Sharpness  float64

	KendallsTau       float64
	MeanAbsoluteError float64
}

// Columns is the header of the long-format table
var Columns = []string{
	"data_framework", "J", "R", "E", "M", "algo", "unit", "E_Num",
	"n_partial_rankings", "average_partial_ranking_length",
	"conflict", "overlap_rate", "pairwise_overlap",
	"spearman_rho", "spearman_p", "truth_rho", "n_random_perms", "low_confidence", "degenerate",
	"separation", "sharpness",
	"kendalls_tau", "mae",
}

// Row renders the record in Columns order
func (r Record) Row() []string {
	e := r.Key.E
	if r.ExperimentTitle != "" {
		e = r.ExperimentTitle
	}
	return []string{
		r.Source,
		strconv.Itoa(r.Key.J),
		FormatR(r.Key.R),
		e,
		strconv.Itoa(r.Key.M),
		r.Strategy,
		r.Key.Stem(),
		strconv.Itoa(r.ExperimentNumber),
		strconv.Itoa(r.NPartialRankings),
		formatFloat(r.AveragePartialLength),
		formatFloat(r.Conflict),
		formatFloat(r.OverlapRate),
		formatFloat(r.PairwiseOverlap),
		formatFloat(r.SpearmanRho),
		formatFloat(r.SpearmanP),
		formatFloat(r.TruthRho),
		strconv.Itoa(r.NRandomPerms),
		strconv.FormatBool(r.LowConfidence),
		strconv.FormatBool(r.Degenerate),
		formatFloat(r.Separation),
		formatFloat(r.Sharpness),
		formatFloat(r.KendallsTau),
		formatFloat(r.MeanAbsoluteError),
	}
}

// SortRecords orders records by J, R, E, M, strategy then source
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Key.J != b.Key.J {
			return a.Key.J < b.Key.J
		}
		if a.Key.R != b.Key.R {
			return a.Key.R < b.Key.R
		}
		if a.Key.E != b.Key.E {
			return a.Key.E < b.Key.E
		}
		if a.Key.M != b.Key.M {
			return a.Key.M < b.Key.M
		}
		if a.Strategy != b.Strategy {
			return a.Strategy < b.Strategy
		}
		return a.Source < b.Source
	})
}

// RecordFromRow reads a record back from a row written in Columns layout.
// headers may be any superset or reordering of Columns; absent numeric cells
// read as NaN. The unit column is required.
func RecordFromRow(headers, row []string) (Record, error) {
	cells := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			cells[h] = row[i]
		}
	}

	key, err := ParseKey(cells["unit"])
	if err != nil {
		return Record{}, err
	}

	float := func(col string) float64 {
		v, err := strconv.ParseFloat(cells[col], 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	integer := func(col string) int {
		v, _ := strconv.Atoi(cells[col])
		return v
	}
	boolean := func(col string) bool {
		v, _ := strconv.ParseBool(cells[col])
		return v
	}

	r := Record{
		Source:               cells["data_framework"],
		Key:                  key,
		Strategy:             cells["algo"],
		ExperimentNumber:     integer("E_Num"),
		NPartialRankings:     integer("n_partial_rankings"),
		AveragePartialLength: float("average_partial_ranking_length"),
		Conflict:             float("conflict"),
		OverlapRate:          float("overlap_rate"),
		PairwiseOverlap:      float("pairwise_overlap"),
		SpearmanRho:          float("spearman_rho"),
		SpearmanP:            float("spearman_p"),
		TruthRho:             float("truth_rho"),
		NRandomPerms:         integer("n_random_perms"),
		LowConfidence:        boolean("low_confidence"),
		Degenerate:           boolean("degenerate"),
		Separation:           float("separation"),
		Sharpness:            float("sharpness"),
		KendallsTau:          float("kendalls_tau"),
		MeanAbsoluteError:    float("mae"),
	}
	if e := cells["E"]; e != "" && e != key.E {
		r.ExperimentTitle = e
	}
	if r.Strategy == "" {
		return Record{}, fmt.Errorf("row for %s has no algo", key.Stem())
	}
	return r, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
