package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/daqscope/cmd/daqscope/app"
)

var (
	configPath   string
	sampleRate   int
	tickInterval time.Duration
	catalogPath  string
	analysesOf   int64
	rangeFrom    string
	rangeTo      string
)

var logLevel slog.LevelVar

var rootCmd = &cobra.Command{
	Use:           "daqscope",
	Short:         "Streaming data acquisition with live spectrum analysis",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire from the configured device until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath, func(c *app.Config) {
			if cmd.Flags().Changed("sample-rate") {
				c.Acquisition.SampleRate = sampleRate
			}
			if cmd.Flags().Changed("tick") {
				c.Acquisition.TickInterval = app.TimeDuration(tickInterval)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to load configuration file '%s': %w", configPath, err)
		}

		if config.Settings.LogLevel != "" {
			if err = logLevel.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
				return err
			}
		}

		return app.Run(cmd.Context(), config, logger())
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the sessions recorded in the catalog, or the analyses of one",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := app.ParseTime(rangeFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := app.ParseTime(rangeTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		path := catalogPath
		if path == "" {
			config, err := app.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration file '%s': %w", configPath, err)
			}
			path = config.Storage.CatalogPath()
		}

		if cmd.Flags().Changed("analyses") {
			return app.ListAnalyses(cmd.Context(), path, analysesOf, from, to, cmd.OutOrStdout())
		}
		return app.ListSessions(cmd.Context(), path, cmd.OutOrStdout())
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports available for acquisition",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ListPorts(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to the configuration file")

	runCmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "Override the configured sample rate (S/s)")
	runCmd.Flags().DurationVar(&tickInterval, "tick", 0, "Override the configured tick interval")

	sessionsCmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the session catalog, overrides the configuration")
	sessionsCmd.Flags().Int64Var(&analysesOf, "analyses", 0, "Print the analyses of the session with this ID")
	sessionsCmd.Flags().StringVar(&rangeFrom, "from", "", "With --analyses, skip analyses before this time")
	sessionsCmd.Flags().StringVar(&rangeTo, "to", "", "With --analyses, skip analyses after this time")

	rootCmd.AddCommand(runCmd, sessionsCmd, portsCmd)
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger().Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
