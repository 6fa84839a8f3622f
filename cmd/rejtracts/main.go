package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opendatama/rejtracts/internal/config"
	"github.com/opendatama/rejtracts/internal/logging"
	"github.com/opendatama/rejtracts/internal/output"
)

// app carries the loaded configuration to every subcommand
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger
	format output.Format
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var configFile, outputFormat string

	rootCmd := &cobra.Command{
		Use:           "rejtracts",
		Short:         "MassSave participation by Regional Environmental Justice census tract",
		Long:          `Download MassSave participation KMLs, aggregate block groups to census tracts, reconcile tract GEOIDs against the REJ dataset and analyse the result`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Root().PersistentFlags()
			for key, name := range map[string]string{
				"log_level":  "log-level",
				"log_format": "log-format",
				"data_dir":   "data-dir",
			} {
				if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
					return err
				}
			}

			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

			a.format, err = output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			if cfg.ConfigFile != "" {
				a.logger.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./rejtracts.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("data-dir", "data", "directory holding inputs and outputs")
	flags.StringVarP(&outputFormat, "output", "o", "table", "summary format (table, json)")

	rootCmd.AddCommand(createDownloadCmd(a))
	rootCmd.AddCommand(createProcessCmd(a))
	rootCmd.AddCommand(createReconcileCmd(a))
	rootCmd.AddCommand(createTownsCmd(a))
	rootCmd.AddCommand(createAnalyzeCmd(a))
	rootCmd.AddCommand(createPreviewCmd(a))
	rootCmd.AddCommand(createDBCmd(a))

	return rootCmd
}
