package report

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"mpcal/domain/experiment"
)

// Summary holds the descriptive statistics of one series. Fields are NaN
// when the series has no finite values.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// Summarize computes a Summary over the finite values of data
func Summarize(data []float64) Summary {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	nan := math.NaN()
	s := Summary{N: len(finite), Mean: nan, StdDev: nan, Min: nan, Max: nan, Median: nan, Q25: nan, Q75: nan}
	if len(finite) == 0 {
		return s
	}

	s.Mean, _ = stats.Mean(finite)
	s.StdDev, _ = stats.StandardDeviation(finite)
	s.Min, _ = stats.Min(finite)
	s.Max, _ = stats.Max(finite)
	s.Median, _ = stats.Median(finite)
	s.Q25, _ = stats.Percentile(finite, 25)
	s.Q75, _ = stats.Percentile(finite, 75)
	return s
}

// StrategySummary aggregates the records of one strategy
type StrategySummary struct {
	Strategy      string  `json:"strategy"`
	Records       int     `json:"records"`
	Rho           Summary `json:"spearman_rho"`
	KendallsTau   Summary `json:"kendalls_tau"`
	MAE           Summary `json:"mean_absolute_error"`
	Conflict      Summary `json:"conflict"`
	LowConfidence int     `json:"low_confidence"`
	Degenerate    int     `json:"degenerate"`
}

// SummarizeStrategies groups records by strategy, sorted by name
func SummarizeStrategies(records []experiment.Record) []StrategySummary {
	groups := make(map[string][]experiment.Record)
	for _, r := range records {
		groups[r.Strategy] = append(groups[r.Strategy], r)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]StrategySummary, 0, len(names))
	for _, name := range names {
		group := groups[name]
		rho := make([]float64, len(group))
		tau := make([]float64, len(group))
		mae := make([]float64, len(group))
		conflict := make([]float64, len(group))
		s := StrategySummary{Strategy: name, Records: len(group)}
		for i, r := range group {
			rho[i] = r.SpearmanRho
			tau[i] = r.KendallsTau
			mae[i] = r.MeanAbsoluteError
			conflict[i] = r.Conflict
			if r.LowConfidence {
				s.LowConfidence++
			}
			if r.Degenerate {
				s.Degenerate++
			}
		}
		s.Rho = Summarize(rho)
		s.KendallsTau = Summarize(tau)
		s.MAE = Summarize(mae)
		s.Conflict = Summarize(conflict)
		out = append(out, s)
	}
	return out
}
