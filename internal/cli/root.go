// Package cli wires configuration, data sources and the deal finder behind
// the hullscout command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"eve-hullscout/internal/config"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/metrics"
)

type app struct {
	cfg         *config.Config
	out         io.Writer
	debug       bool
	metricsFile string
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	logger.Banner(version)
	a := &app{out: os.Stdout}
	err := a.rootCmd(version).Execute()
	a.flushMetrics()
	if err != nil {
		logger.Error("CLI", err.Error())
		return 1
	}
	return 0
}

func (a *app) rootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hullscout",
		Short:         "Find ship hulls listed below the trade hub price near a reference system",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.debug {
				cfg.Debug = true
			}
			if a.metricsFile != "" {
				cfg.MetricsFile = a.metricsFile
			}
			logger.SetDebug(cfg.Debug)
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile on exit")

	cmd.AddCommand(a.scanCmd(), a.snapshotCmd(), a.lookupCmd())
	return cmd
}

func (a *app) flushMetrics() {
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logger.L().Warn("write metrics textfile", slog.String("tag", "METRICS"), logger.Err(err))
		return
	}
	logger.Debug("METRICS", fmt.Sprintf("Wrote %s", a.cfg.MetricsFile))
}
