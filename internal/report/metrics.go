package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricUnitsTotal        = "mpcal_units_total"
	MetricFitDuration       = "mpcal_fit_duration_seconds"
	MetricCalibrationRho    = "mpcal_calibration_rho"
	MetricResultFilesTotal  = "mpcal_result_files_total"
	MetricMissingFilesTotal = "mpcal_missing_result_files"
)

// Unit outcome labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics collects sweep and reconciliation counters on a private registry
// so a run can dump them to a node-exporter textfile.
type Metrics struct {
	registry    *prometheus.Registry
	units       *prometheus.CounterVec
	fitDuration *prometheus.HistogramVec
	rho         *prometheus.HistogramVec
	files       *prometheus.CounterVec
	missing     prometheus.Gauge
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUnitsTotal,
				Help: "Experiment units processed by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),
		fitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricFitDuration,
				Help:    "Strategy fit plus calibration time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"strategy"},
		),
		rho: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricCalibrationRho,
				Help:    "Spearman correlation of energy against rank distance",
				Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
			},
			[]string{"strategy"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricResultFilesTotal,
				Help: "Result files seen during reconciliation by bucket",
			},
			[]string{"bucket"},
		),
		missing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMissingFilesTotal,
			Help: "Expected result files not found during reconciliation",
		}),
	}
	m.registry.MustRegister(m.units, m.fitDuration, m.rho, m.files, m.missing)
	return m
}

// Registry exposes the registry for gathering in tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncUnit counts one (unit x strategy) outcome
func (m *Metrics) IncUnit(strategy, status string) {
	m.units.WithLabelValues(strategy, status).Inc()
}

// ObserveFit records the fit duration and, when finite, the calibration rho
func (m *Metrics) ObserveFit(strategy string, seconds, rho float64) {
	m.fitDuration.WithLabelValues(strategy).Observe(seconds)
	if !math.IsNaN(rho) {
		m.rho.WithLabelValues(strategy).Observe(rho)
	}
}

// IncResultFile counts one reconciled file in its bucket
func (m *Metrics) IncResultFile(bucket string) {
	m.files.WithLabelValues(bucket).Inc()
}

// SetMissing records the number of missing result files
func (m *Metrics) SetMissing(n int) {
	m.missing.Set(float64(n))
}

// WriteTextfile writes every metric in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
