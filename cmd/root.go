package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/sortie/internal/config"
	"github.com/okian/sortie/pkg/logger"
)

// Version is set at build time.
var Version = "0.1.0"

// cli carries state shared by subcommands once the root pre-run has loaded
// configuration.
type cli struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "sortie",
		Short: "Weekly Montréal event digest",
		Long: `Sortie reads the City of Montréal public events feed, keeps the events
that pass your hard filters, ranks them against a free-text statement of what
you like and writes a short Markdown digest for the coming week.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file (overrides "+config.EnvPrefix+"CONFIG)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(c), newServeCmd(c), newSampleCmd(c))
	return root
}

// setup loads configuration (defaults -> optional file -> env) and
// initializes logging.
func (c *cli) setup(cmd *cobra.Command) error {
	if c.configPath != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", c.configPath); err != nil {
			return err
		}
	}
	// Config errors are reported before the file logger exists.
	if err := logger.Init(); err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.InitWithFile(cfg.LogFile); err != nil {
		return err
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
