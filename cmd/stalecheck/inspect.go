package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
	"github.com/coffersTech/nanolog/stalecheck/internal/storage"
)

func newInspectCmd() *cobra.Command {
	var (
		resources bool
		bucket    int64
		opType    string
	)
	cmd := &cobra.Command{
		Use:   "inspect SNAPSHOT",
		Short: "Summarize a timeline snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cr, err := storage.NewColumnReader()
			if err != nil {
				return err
			}
			defer cr.Close()

			if !resources && bucket == 0 {
				ft, err := cr.ReadFooter(args[0])
				if err != nil {
					return err
				}
				return printFooter(cmd, ft)
			}

			cols, ft, err := cr.ReadColumns(args[0])
			if err != nil {
				return err
			}
			if err := printFooter(cmd, ft); err != nil {
				return err
			}
			if resources {
				if err := printResources(cmd, cols); err != nil {
					return err
				}
			}
			if bucket != 0 {
				var match func(string, engine.Interval) bool
				if opType != "" {
					match = func(key string, _ engine.Interval) bool {
						return strings.HasPrefix(key, opType+"-")
					}
				}
				points, err := engine.ComputeHistogram(cols, bucket, match)
				if err != nil {
					return err
				}
				return printHistogram(cmd, points)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&resources, "resources", false, "list every resource in the snapshot")
	cmd.Flags().Int64Var(&bucket, "histogram", 0, "print write counts bucketed by start time with this bucket width")
	cmd.Flags().StringVar(&opType, "optype", "", "restrict the histogram to one opType")
	return cmd
}

func printResources(cmd *cobra.Command, cols *engine.TimelineColumns) error {
	ts := engine.NewTimelines(nil)
	engine.LoadColumns(ts, cols)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tWRITES\tMIN START\tMAX END\tFINAL")
	for _, key := range ts.Keys() {
		tl, _ := ts.Lookup(key)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", key, tl.Len(), tl.MinStartTime, tl.MaxEndTime, tl.Final())
	}
	return tw.Flush()
}

func printHistogram(cmd *cobra.Command, points []engine.HistogramPoint) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tINSERTS\tDELETES")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", p.Time, p.Inserts, p.Deletes)
	}
	return tw.Flush()
}

func printFooter(cmd *cobra.Command, ft storage.Footer) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(),
		"intervals: %d\nresources: %d\nmin start: %d\nmax end:   %d\n",
		ft.Intervals, ft.Resources, ft.MinStart, ft.MaxEnd)
	return err
}
