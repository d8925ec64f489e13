package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/sortie/internal/app"
	"github.com/okian/sortie/internal/domain/prefs"
	"github.com/okian/sortie/pkg/logger"
)

type runFlags struct {
	prefsPath  string
	windowDays int
	topK       int
	topN       int
	dryRun     bool
	stdout     bool
}

func newRunCmd(c *cli) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build this week's digest once and write the report",
		Long: `Fetch the feed, filter, score and rank events, then write the Markdown
digest to the configured report path.

Examples:
  sortie run
  sortie run --prefs me.json --top-n 5
  sortie run --dry-run --stdout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.prefsPath, "prefs", "p", "", "preferences file (defaults to preferences_path)")
	cmd.Flags().IntVar(&f.windowDays, "window-days", 0, "override window_days")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "override top_k")
	cmd.Flags().IntVarP(&f.topN, "top-n", "n", 0, "override top_n")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "do not write the report or the checkpoint")
	cmd.Flags().BoolVar(&f.stdout, "stdout", false, "print the digest")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	path := f.prefsPath
	if path == "" {
		path = c.cfg.PreferencesPath
	}
	p, err := prefs.Load(path)
	if err != nil {
		return err
	}

	svc, cleanup, err := service.FromConfig(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Get().Warn(ctx, "cleanup failed", logger.Error(err))
		}
	}()

	res, err := svc.Run(ctx, p, service.RunOptions{
		WindowDays: f.windowDays,
		TopK:       f.topK,
		TopN:       f.topN,
		DryRun:     f.dryRun,
	})
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res, f.stdout || f.dryRun)
	return nil
}

func printResult(w io.Writer, res *service.Result, withMarkdown bool) {
	for _, warn := range res.Warnings {
		_, _ = fmt.Fprintf(w, "warning (%s): %s\n", warn.Kind, warn.Message)
	}
	_, _ = fmt.Fprintf(w, "fetched %d, shortlisted %d, selected %d in %s\n",
		res.Fetched, len(res.Shortlist.Events), len(res.Selected), res.Latency.Round(time.Millisecond))
	if res.ReportPath != "" {
		_, _ = fmt.Fprintf(w, "report written to %s\n", res.ReportPath)
	}
	if withMarkdown {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprint(w, res.Markdown)
	}
}
