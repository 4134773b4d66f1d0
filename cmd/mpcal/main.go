package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mpcal/adapters/jsonstore"
	"mpcal/adapters/strategy"
	"mpcal/adapters/tabular"
	"mpcal/app"
	"mpcal/domain/core"
	"mpcal/internal"
	"mpcal/internal/config"
	apperrors "mpcal/internal/errors"
	"mpcal/internal/report"
	"mpcal/internal/testkit"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Debug("no .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "mpcal",
		Short:         "Partial-ranking aggregation and calibration harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML configuration file (MPCAL_* variables override it)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		newCalibrateCmd(flags),
		newSweepCmd(flags),
		newReconcileCmd(flags),
		newLaunchCmd(flags),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if apperrors.IsAppError(err) {
			fmt.Fprintf(os.Stderr, "[%s] %v\n", apperrors.GetCode(err), err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command
func setup(flags *globalFlags) (*config.Config, *internal.Logger, error) {
	logger := internal.DefaultLogger
	if flags.logLevel != "" {
		logger = internal.NewLogger(internal.ParseLogLevel(flags.logLevel))
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newCalibrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate [stem]",
		Short: "Fit and calibrate every strategy on one experiment unit",
		Long: `Run every configured strategy on a single experiment unit across all data
sources. The random stream is derived from the base seed and the stem, so
units launched as separate processes never share state.

Example: mpcal calibrate j50_r0.1_EExpA_m0 --config mpcal.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return runCalibrate(cmd.Context(), cfg, logger, args[0])
		},
	}
}

func newSweepCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the whole experiment grid in this process",
		Long: `Iterate data sources x J x R x E x M x strategies in configuration order with
one seeded random stream, writing per-unit results, the aggregated table,
the run manifest and metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), cfg, logger)
		},
	}
}

func newReconcileCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare expected and produced results and aggregate them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return runReconcile(cmd.Context(), cfg, logger)
		},
	}
}

func newSweepService(cfg *config.Config, logger *internal.Logger, metrics *report.Metrics, reportDir, metricsFile string) (*app.SweepService, error) {
	deps := app.SweepDeps{
		Source:    jsonstore.NewFileSource(cfg.Paths.DataDir, cfg.Biomarkers, cfg.ParamsFile),
		Registry:  strategy.NewRegistry(),
		Table:     tabular.NewRecordWriter(cfg.Output.WriteXLSX),
		Metadata:  tabular.NewRecordWriter(false),
		Documents: jsonstore.WriteJSON,
		Metrics:   metrics,
		Logger:    logger,
	}
	if cfg.Output.WriteResults {
		deps.Sink = jsonstore.NewResultStore(cfg.Paths.OutputDir)
	}

	return app.NewSweepService(deps, app.SweepOptions{
		Grid:        cfg.Grid.Grid(),
		Sources:     cfg.DataSources,
		Strategies:  cfg.Strategies,
		Fit:         cfg.Sampler.FitConfig(),
		Titles:      cfg.ExperimentTitles,
		Seed:        cfg.Seed,
		ConfigHash:  core.ComputeConfigHash(cfg.Fingerprint()),
		CodeVersion: version,
		ReportDir:   reportDir,
		MetadataDir: cfg.Paths.MetadataDir,
		MetricsFile: metricsFile,
	})
}

func runCalibrate(ctx context.Context, cfg *config.Config, logger *internal.Logger, stem string) error {
	logPath := filepath.Join(cfg.Paths.LogsDir, "eval_"+stem+".log")
	if err := os.MkdirAll(cfg.Paths.LogsDir, 0o755); err != nil {
		return err
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", logPath, err)
	}
	defer logFile.Close()
	logger = logger.Tee(logFile)

	// per-unit runs leave the shared table and metrics to sweep and reconcile
	svc, err := newSweepService(cfg, logger, nil, "", "")
	if err != nil {
		return err
	}

	rng, err := testkit.NewTestKit().RNGAdapter().Stream(ctx, stem, cfg.Seed)
	if err != nil {
		return err
	}
	result, err := svc.RunUnit(ctx, stem, rng)
	if err != nil {
		logger.Error("%s: %v", stem, err)
		return err
	}

	for _, f := range result.Failures {
		logger.Warn("%s", f)
	}
	if len(result.Records) == 0 && len(result.Failures) > 0 {
		return fmt.Errorf("%s: no strategy produced a result (%d failures)", stem, len(result.Failures))
	}
	logger.Info("%s: %d records in %dms", stem, len(result.Records), result.RuntimeMs)
	return nil
}

func runSweep(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	metrics := report.NewMetrics()
	svc, err := newSweepService(cfg, logger, metrics, cfg.Paths.ReportDir, cfg.Output.MetricsFile)
	if err != nil {
		return err
	}

	rng, err := testkit.NewTestKit().RNGAdapter().SeededStream(ctx, "sweep", cfg.Seed)
	if err != nil {
		return err
	}
	result, err := svc.Run(ctx, rng)
	if err != nil {
		return err
	}

	fmt.Printf("Sweep %s: %d records, %d failures (%dms)\n", result.Manifest.RunID, len(result.Records), len(result.Failures), result.RuntimeMs)
	for _, f := range result.Failures {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

func runReconcile(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	svc := app.NewReconcileService(
		jsonstore.NewResultStore(cfg.Paths.OutputDir),
		tabular.NewRecordWriter(cfg.Output.WriteXLSX),
		tabular.NewArtifacts(cfg.Output.WriteXLSX),
		report.NewMetrics(),
		logger,
		app.ReconcileOptions{
			Grid:         cfg.Grid.Grid(),
			Sources:      cfg.DataSources,
			Strategies:   cfg.Strategies,
			Titles:       cfg.ExperimentTitles,
			ReportDir:    cfg.Paths.ReportDir,
			ResultsFile:  config.DefaultResultsCSVName,
			MetadataDir:  cfg.Paths.MetadataDir,
			LogsDir:      cfg.Paths.LogsDir,
			ErrorLogsDir: cfg.Paths.ErrorLogsDir,
			MetricsFile:  cfg.Output.MetricsFile,
		},
	)

	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Expected %d result files, found %d\n", result.Expected, result.Found)
	fmt.Printf("  valid:              %d\n", result.Count(app.BucketValid))
	fmt.Printf("  missing:            %d\n", len(result.Missing))
	fmt.Printf("  unparseable:        %d\n", result.Count(app.BucketUnparseable))
	fmt.Printf("  invalid parameters: %d\n", result.Count(app.BucketInvalidParameters))
	fmt.Printf("  invalid schema:     %d\n", result.Count(app.BucketInvalidSchema))
	if len(result.CopiedLogs) > 0 {
		fmt.Printf("Copied %d logs to %s\n", len(result.CopiedLogs), cfg.Paths.ErrorLogsDir)
	}
	return nil
}
