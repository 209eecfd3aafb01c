package main

import (
	"io"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/spf13/cobra"

	"github.com/coffersTech/nanolog/stalecheck/internal/config"
)

const configFlag = "config"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stalecheck",
		Short: "Replay benchmark write and read logs and report stale reads",
		Long: "stalecheck rebuilds every resource's write history from update<machine>-<thread>.txt\n" +
			"logs, then judges each read in read<machine>-<thread>.txt against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runValidate,
	}

	flags := root.PersistentFlags()
	flags.String(configFlag, "", "config file (.properties, .yaml or .json)")
	config.Register(flags)

	root.AddCommand(newValidateCmd(), newMergeCmd(), newInspectCmd())
	return root
}

// loadConfig reads and checks the settings of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	cfg, err := config.Load(cmd.Flags(), path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) slog.Logger {
	level, _ := cfg.SlogLevel()
	return slog.Make(sloghuman.Sink(w)).Leveled(level)
}

// writeOutput prints an encoded report.
func writeOutput(out io.Writer, data []byte) error {
	_, err := out.Write(data)
	return err
}
