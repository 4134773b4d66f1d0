// Package config loads the run configuration from an optional YAML file with
// MPCAL_* environment variables taking precedence over file values.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"mpcal/domain/experiment"
	"mpcal/internal/errors"
	"mpcal/ports"
)

// EnvPrefix prefixes every environment override (MPCAL_SEED, MPCAL_JS, ...)
const EnvPrefix = "MPCAL_"

// Defaults
const (
	DefaultSeed           = 53
	DefaultIterations     = 5000
	DefaultShuffles       = 2
	DefaultBurnIn         = 500
	DefaultThinning       = 1
	DefaultSampleCount    = 100
	DefaultRandomPerms    = 100
	DefaultTemperature    = 1.0
	DefaultNVariants      = 1
	DefaultDataDir        = "data"
	DefaultOutputDir      = "algo_results"
	DefaultMetadataDir    = "mp_metadata"
	DefaultReportDir      = "reports"
	DefaultLogsDir        = "logs"
	DefaultErrorLogsDir   = "error_logs"
	DefaultResultsCSVName = "all_results.csv"
)

// DefaultStrategies are the inference strategies evaluated when none are configured
var DefaultStrategies = []string{"PL", "BT", "Pairwise", "Mallows_Tau"}

// Config represents the complete run configuration. It is read once and
// passed by value thereafter.
type Config struct {
	Seed             int64
	Sampler          SamplerConfig
	Grid             GridConfig
	Strategies       []string
	DataSources      []string
	Biomarkers       []string
	ParamsFile       string
	ExperimentTitles map[string]experiment.Title
	Paths            PathConfig
	Output           OutputConfig
}

// SamplerConfig holds the strategy fitting controls
type SamplerConfig struct {
	Iterations  int
	Shuffles    int
	BurnIn      int
	Thinning    int
	SampleCount int
	RandomPerms int
	Temperature float64
}

// GridConfig declares the experiment unit grid
type GridConfig struct {
	JS              []int
	RS              []float64
	ExperimentNames []string
	NVariants       int
}

// PathConfig holds file system locations
type PathConfig struct {
	DataDir      string
	OutputDir    string
	MetadataDir  string
	ReportDir    string
	LogsDir      string
	ErrorLogsDir string
}

// OutputConfig toggles optional outputs
type OutputConfig struct {
	WriteResults bool
	WriteXLSX    bool
	MetricsFile  string
}

// FitConfig converts sampler settings into the strategy fit controls
func (s SamplerConfig) FitConfig() ports.FitConfig {
	return ports.FitConfig{
		Iterations:  s.Iterations,
		Shuffles:    s.Shuffles,
		BurnIn:      s.BurnIn,
		Thinning:    s.Thinning,
		SampleCount: s.SampleCount,
		RandomPerms: s.RandomPerms,
		Temperature: s.Temperature,
	}
}

// Grid returns the experiment grid
func (g GridConfig) Grid() experiment.Grid {
	return experiment.Grid{
		JS:          g.JS,
		RS:          g.RS,
		Experiments: g.ExperimentNames,
		NVariants:   g.NVariants,
	}
}

// Title returns the display title and number for an experiment name. Names
// without a configured title are shown as-is with number 0.
func (c *Config) Title(name string) experiment.Title {
	if t, ok := c.ExperimentTitles[name]; ok {
		return t
	}
	return experiment.Title{Title: name}
}

// Fingerprint returns the values that identify a run for manifests
func (c *Config) Fingerprint() map[string]interface{} {
	return map[string]interface{}{
		"seed":                c.Seed,
		"mcmc_iterations":     c.Sampler.Iterations,
		"n_shuffle":           c.Sampler.Shuffles,
		"burn_in":             c.Sampler.BurnIn,
		"thinning":            c.Sampler.Thinning,
		"sample_count":        c.Sampler.SampleCount,
		"n_random_perms":      c.Sampler.RandomPerms,
		"mallows_temperature": c.Sampler.Temperature,
		"js":                  c.Grid.JS,
		"rs":                  c.Grid.RS,
		"experiment_names":    c.Grid.ExperimentNames,
		"n_variants":          c.Grid.NVariants,
		"strategies":          c.Strategies,
		"data_sources":        c.DataSources,
	}
}

// Load reads configuration from an optional YAML file and the environment,
// then validates it. Every problem found is reported in one CONFIG_INVALID
// error.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to load config file %s", configFilePath)
		}
	}

	l := &loader{k: k}
	cfg := &Config{
		Seed: l.getInt64("seed", DefaultSeed),
		Sampler: SamplerConfig{
			Iterations:  l.getInt("mcmc_iterations", DefaultIterations),
			Shuffles:    l.getInt("n_shuffle", DefaultShuffles),
			BurnIn:      l.getInt("burn_in", DefaultBurnIn),
			Thinning:    l.getInt("thinning", DefaultThinning),
			SampleCount: l.getInt("sample_count", DefaultSampleCount),
			RandomPerms: l.getInt("n_random_perms", DefaultRandomPerms),
			Temperature: l.getFloat("mallows_temperature", DefaultTemperature),
		},
		Grid: GridConfig{
			JS:              l.getInts("js"),
			RS:              l.getFloats("rs"),
			ExperimentNames: l.getStrings("experiment_names", nil),
			NVariants:       l.getInt("n_variants", DefaultNVariants),
		},
		Strategies:  l.getStrings("strategies", DefaultStrategies),
		DataSources: l.getStrings("data_sources", nil),
		Biomarkers:  l.getStrings("biomarkers", nil),
		ParamsFile:  l.getString("params_file", ""),
		Paths: PathConfig{
			DataDir:      l.getString("data_dir", DefaultDataDir),
			OutputDir:    l.getString("output_dir", DefaultOutputDir),
			MetadataDir:  l.getString("metadata_dir", DefaultMetadataDir),
			ReportDir:    l.getString("report_dir", DefaultReportDir),
			LogsDir:      l.getString("logs_dir", DefaultLogsDir),
			ErrorLogsDir: l.getString("error_logs_dir", DefaultErrorLogsDir),
		},
		Output: OutputConfig{
			WriteResults: l.getBool("write_results", true),
			WriteXLSX:    l.getBool("write_xlsx", true),
			MetricsFile:  l.getString("metrics_file", ""),
		},
	}

	cfg.ExperimentTitles = make(map[string]experiment.Title)
	if k.Exists("experiment_titles") {
		if err := k.Unmarshal("experiment_titles", &cfg.ExperimentTitles); err != nil {
			l.errs = append(l.errs, fmt.Errorf("experiment_titles: %w", err))
		}
	}

	errs := append(l.errs, cfg.Validate()...)
	if len(errs) > 0 {
		return nil, errors.Wrap(errors.ConfigInvalid(stderrors.Join(errs...).Error()), "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks every setting and returns all problems found
func (c *Config) Validate() []error {
	var errs []error
	require := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	require(c.Sampler.Iterations > 0, "mcmc_iterations must be positive")
	require(c.Sampler.Shuffles > 0, "n_shuffle must be positive")
	require(c.Sampler.BurnIn >= 0, "burn_in must not be negative")
	require(c.Sampler.Thinning > 0, "thinning must be positive")
	require(c.Sampler.SampleCount > 0, "sample_count must be positive")
	require(c.Sampler.RandomPerms > 0, "n_random_perms must be positive")
	require(c.Sampler.Temperature > 0, "mallows_temperature must be positive")

	require(len(c.Grid.JS) > 0, "js must not be empty")
	for _, j := range c.Grid.JS {
		require(j >= 0, "js contains negative value %d", j)
	}
	require(len(c.Grid.RS) > 0, "rs must not be empty")
	for _, r := range c.Grid.RS {
		require(r >= 0, "rs contains negative value %v", r)
	}
	require(len(c.Grid.ExperimentNames) > 0, "experiment_names must not be empty")
	for _, e := range c.Grid.ExperimentNames {
		require(e != "" && !strings.Contains(e, "_"), "experiment name %q must be non-empty and contain no underscore", e)
	}
	require(c.Grid.NVariants > 0, "n_variants must be positive")

	require(len(c.Strategies) > 0, "strategies must not be empty")
	require(len(c.DataSources) > 0, "data_sources must not be empty")
	require(noDuplicates(c.Strategies), "strategies contains duplicates")
	require(noDuplicates(c.DataSources), "data_sources contains duplicates")
	require(c.Paths.OutputDir != "", "output_dir is required")

	return errs
}

func noDuplicates(values []string) bool {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// loader resolves one key at a time: env var, then file value, then default.
// Parse failures are collected rather than returned.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

func envKey(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func (l *loader) env(key string) (string, bool) {
	val := os.Getenv(envKey(key))
	return val, val != ""
}

func (l *loader) getString(key, def string) string {
	if val, ok := l.env(key); ok {
		return val
	}
	if l.k.Exists(key) {
		return l.k.String(key)
	}
	return def
}

func (l *loader) getInt(key string, def int) int {
	if val, ok := l.env(key); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid integer: %w", envKey(key), err))
			return def
		}
		return i
	}
	if l.k.Exists(key) {
		return l.k.Int(key)
	}
	return def
}

func (l *loader) getInt64(key string, def int64) int64 {
	if val, ok := l.env(key); ok {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid integer: %w", envKey(key), err))
			return def
		}
		return i
	}
	if l.k.Exists(key) {
		return l.k.Int64(key)
	}
	return def
}

func (l *loader) getFloat(key string, def float64) float64 {
	if val, ok := l.env(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s must be a valid float: %w", envKey(key), err))
			return def
		}
		return f
	}
	if l.k.Exists(key) {
		return l.k.Float64(key)
	}
	return def
}

func (l *loader) getBool(key string, def bool) bool {
	if val, ok := l.env(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		l.errs = append(l.errs, fmt.Errorf("%s must be a boolean", envKey(key)))
		return def
	}
	if l.k.Exists(key) {
		return l.k.Bool(key)
	}
	return def
}

// strings reads a list; the env form is comma-separated
func (l *loader) getStrings(key string, def []string) []string {
	if val, ok := l.env(key); ok {
		return splitList(val)
	}
	if l.k.Exists(key) {
		return l.k.Strings(key)
	}
	return def
}

func (l *loader) getInts(key string) []int {
	if val, ok := l.env(key); ok {
		var out []int
		for _, part := range splitList(val) {
			i, err := strconv.Atoi(part)
			if err != nil {
				l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", envKey(key), part))
				continue
			}
			out = append(out, i)
		}
		return out
	}
	return l.k.Ints(key)
}

func (l *loader) getFloats(key string) []float64 {
	if val, ok := l.env(key); ok {
		var out []float64
		for _, part := range splitList(val) {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				l.errs = append(l.errs, fmt.Errorf("%s: %q is not a number", envKey(key), part))
				continue
			}
			out = append(out, f)
		}
		return out
	}
	return l.k.Float64s(key)
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
