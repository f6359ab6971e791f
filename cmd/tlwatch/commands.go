package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"tlwatch/internal/platform/config"
	"tlwatch/internal/platform/logger"
)

var (
	configPath string
	countries  []string
	interval   time.Duration

	cfg config.Config
	log *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "tlwatch",
		Short:         "Track EU Trusted Lists across ingestion runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(countries) > 0 {
				loaded.Countries = countries
				loaded.Normalize()
				if err := loaded.Validate(); err != nil {
					return err
				}
			}
			cfg = loaded
			log = logger.New(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion cycle and exit",
		Args:  cobra.NoArgs,
		RunE:  runCycleCommand,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API, optionally running cycles on an interval",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand,
	}

	pointersCmd = &cobra.Command{
		Use:   "pointers <lotl.xml>",
		Short: "Print the Trusted List pointers of a local LOTL file",
		Args:  cobra.ExactArgs(1),
		RunE:  runPointersCommand,
	}

	parseCmd = &cobra.Command{
		Use:   "parse <tl.xml> <country-code>",
		Short: "Print the normalized providers and services of a local Trusted List file",
		Args:  cobra.ExactArgs(2),
		RunE:  runParseCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&countries, "countries", nil, "country codes to ingest (overrides config)")

	serveCmd.Flags().DurationVar(&interval, "interval", 0, "run an ingestion cycle every interval, overriding server.run_interval (0 disables)")

	rootCmd.AddCommand(runCmd, serveCmd, pointersCmd, parseCmd)
}
