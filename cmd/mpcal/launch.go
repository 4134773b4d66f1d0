package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mpcal/internal"
	"mpcal/internal/config"
)

func newLaunchCmd(flags *globalFlags) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Run every grid unit as a separate calibrate process, then reconcile",
		Long: `Spawn one "mpcal calibrate <stem>" child per experiment unit, at most --jobs at
a time. Child stdout and stderr go to <logs_dir>/eval_<stem>.out and .err.
Reconciliation starts only after every child has exited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			if err := runLaunch(cmd.Context(), cfg, logger, flags, jobs); err != nil {
				return err
			}
			return runReconcile(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", runtime.NumCPU(), "Maximum concurrent unit processes")

	return cmd
}

// runLaunch fans out one child per unit. A failing child is logged and
// left for reconciliation to report; only interruption stops the launch.
func runLaunch(ctx context.Context, cfg *config.Config, logger *internal.Logger, flags *globalFlags, jobs int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot locate mpcal executable: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.LogsDir, 0o755); err != nil {
		return err
	}
	if jobs < 1 {
		jobs = 1
	}

	units := cfg.Grid.Grid().Units()
	logger.Info("launching %d units with %d jobs", len(units), jobs)

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, key := range units {
		stem := key.Stem()
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := runChild(gctx, exe, flags, cfg.Paths.LogsDir, stem); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Warn("unit %s failed: %v", stem, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("all units finished, %d failed", failed.Load())
	return nil
}

func runChild(ctx context.Context, exe string, flags *globalFlags, logsDir, stem string) error {
	stdout, err := os.Create(filepath.Join(logsDir, "eval_"+stem+".out"))
	if err != nil {
		return err
	}
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(logsDir, "eval_"+stem+".err"))
	if err != nil {
		return err
	}
	defer stderr.Close()

	args := []string{"calibrate", stem}
	if flags.configPath != "" {
		args = append(args, "--config", flags.configPath)
	}
	if flags.logLevel != "" {
		args = append(args, "--log-level", flags.logLevel)
	}

	child := exec.CommandContext(ctx, exe, args...)
	child.Stdout = stdout
	child.Stderr = stderr
	child.Env = os.Environ()
	return child.Run()
}
