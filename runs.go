package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"sourcer/scheduler"
	"sourcer/storage"
)

var (
	runsWindow time.Duration
	runsPrune  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Summarize extraction runs and maintain the fact cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := storage.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("no fact store configured (STORE_DRIVER=none)")
		}
		defer st.Close() //nolint:errcheck

		if runsPrune {
			n, err := scheduler.New(cfg.Scheduler, st).TriggerNow(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Pruned %d expired cache entries.\n", n)
		}

		stats, err := st.RunStats(ctx, time.Now().Add(-runsWindow))
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "WINDOW\t%s\n", runsWindow)
		fmt.Fprintf(tw, "TOTAL\t%d\n", stats.Total)
		fmt.Fprintf(tw, "SUCCEEDED\t%d\n", stats.Succeeded)
		fmt.Fprintf(tw, "CACHED\t%d\n", stats.Cached)
		fmt.Fprintf(tw, "MANUAL\t%d\n", stats.Manual)
		fmt.Fprintf(tw, "FAILED\t%d\n", stats.Failed)
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().DurationVar(&runsWindow, "window", 24*time.Hour, "how far back to count runs")
	runsCmd.Flags().BoolVar(&runsPrune, "prune", false, "delete expired cache entries first")
}
