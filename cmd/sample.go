package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/sortie/internal/samplefeed"
)

func newSampleCmd(c *cli) *cobra.Command {
	var (
		out  string
		cfg  samplefeed.Config
		days int
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic events CSV for offline runs",
		Long: `Generate events in the open-data export layout. Point feed_source=file and
feed_path at the output to run the pipeline without the portal.

Examples:
  sortie sample --out data/events.csv --count 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := c.cfg.Location()
			if err != nil {
				return err
			}
			cfg.Loc, cfg.Days = loc, days
			n, err := samplefeed.Write(cmd.Context(), out, cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/events.csv", "output CSV path")
	cmd.Flags().IntVar(&cfg.Count, "count", samplefeed.DefaultCount, "number of events")
	cmd.Flags().IntVar(&cfg.Workers, "workers", samplefeed.DefaultWorkers, "generator goroutines")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&days, "days", samplefeed.DefaultDays, "spread events over this many days from now")
	return cmd
}
