package main

import (
	"github.com/spf13/cobra"

	"github.com/coffersTech/nanolog/stalecheck/internal/cluster"
	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge REPORT.json...",
		Short: "Combine the json reports of several machines into one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)

			merged, err := cluster.NewAggregator(logger.Named("merge")).Merge(cmd.Context(), args)
			if err != nil {
				return err
			}
			if cfg.Report != "" {
				return engine.SaveReport(cfg.Report, merged, cfg.Format)
			}
			data, err := merged.Encode(cfg.Format)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), data)
		},
	}
}
