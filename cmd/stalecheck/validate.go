package main

import (
	"cdr.dev/slog/v3"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/config"
	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
	"github.com/coffersTech/nanolog/stalecheck/internal/observability"
	"github.com/coffersTech/nanolog/stalecheck/internal/rdbms"
	"github.com/coffersTech/nanolog/stalecheck/internal/storage"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run both replay phases and print the staleness report",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	opts, cleanup, err := buildOptions(cmd, logger, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info(ctx, "starting validation",
		slog.F("machine_id", cfg.MachineID),
		slog.F("thread_count", cfg.ThreadCount),
		slog.F("log_dir", cfg.LogDir),
		slog.F("approach", cfg.ValidationApproach),
	)
	report, err := engine.NewOrchestrator(logger, opts).Run(ctx)
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		m := observability.NewMetrics(cfg.MachineID)
		m.ObserveReport(report)
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	if cfg.Report != "" {
		if err := engine.SaveReport(cfg.Report, report, cfg.Format); err != nil {
			return err
		}
		logger.Info(ctx, "report written", slog.F("path", cfg.Report))
		return nil
	}
	data, err := report.Encode(cfg.Format)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), data)
}

// buildOptions turns cfg into orchestrator options. The returned cleanup
// releases whatever was opened.
func buildOptions(cmd *cobra.Command, logger slog.Logger, cfg *config.Config) (engine.Options, func(), error) {
	ctx := cmd.Context()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	filter, err := engine.CompileFilter(cfg.Filter)
	if err != nil {
		return engine.Options{}, cleanup, xerrors.Errorf("compile filter: %w", err)
	}
	updateThreads, updateBlock := cfg.UpdatePool()
	opts := engine.Options{
		MachineID:   cfg.MachineID,
		ThreadCount: cfg.ThreadCount,
		LogDir:      cfg.LogDir,
		Update: engine.PoolConfig{
			Threads: updateThreads,
			Block:   updateBlock,
			Filter:  filter,
		},
		Validate: engine.PoolConfig{
			Threads: cfg.ValidationThreads,
			Block:   cfg.ValidationBlock,
			Filter:  filter,
		},
		ProgressInterval: cfg.ProgressInterval,
		SnapshotIn:       cfg.SnapshotIn,
		SnapshotOut:      cfg.SnapshotOut,
	}

	if cfg.InitialCounts != "" {
		counts, err := engine.LoadInitialCounts(cfg.InitialCounts)
		if err != nil {
			return engine.Options{}, cleanup, err
		}
		opts.InitialCounts = counts
	}

	if cfg.SnapshotIn != "" {
		cr, err := storage.NewColumnReader()
		if err != nil {
			return engine.Options{}, cleanup, err
		}
		closers = append(closers, cr.Close)
		opts.ReadSnapshot = cr.ReadSnapshot
	}
	if cfg.SnapshotOut != "" {
		cw, err := storage.NewColumnWriter()
		if err != nil {
			return engine.Options{}, cleanup, err
		}
		closers = append(closers, func() { _ = cw.Close() })
		opts.WriteSnapshot = cw.WriteSnapshot
	}

	if cfg.RatingMode {
		opts.Markers = engine.NewMarkers(cmd.OutOrStdout())
	}

	if cfg.IsRDBMS() {
		sink, err := rdbms.Open(ctx, logger.Named("rdbms"), rdbms.Config{
			Driver:      cfg.DBDriver,
			URL:         cfg.DBURL,
			User:        cfg.DBUser,
			Password:    cfg.DBPassword,
			MachineID:   cfg.MachineID,
			MultiTenant: cfg.MultiTenant(),
			ThreadCount: cfg.ThreadCount,
		})
		if err != nil {
			return engine.Options{}, cleanup, err
		}
		closers = append(closers, func() {
			if err := sink.Close(); err != nil {
				logger.Warn(ctx, "close database", slog.Error(err))
			}
		})
		logger.Info(ctx, "database connected",
			slog.F("driver", cfg.DBDriver),
			slog.F("tables", sink.Shards()),
		)
		opts.Store = sink
	}
	return opts, cleanup, nil
}
