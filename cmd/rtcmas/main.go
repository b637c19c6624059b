// Command rtcmas runs the RTCMAS-IC incident pipeline: it scores edge
// telemetry, records every containment decision in a hash-chained ledger and
// serves the dashboard, REST API and gRPC ledger service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmerrifield20/rtcmas/internal/config"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rtcmas",
	Short: "Real-time cyber monitoring and automated containment",
	Long: `rtcmas ingests security telemetry, scores each event, decides a
containment action and records the decision in a tamper-evident incident
ledger.

Configuration is read from configs/rtcmas.yaml (or --config) and RTCMAS_*
environment variables, e.g. RTCMAS_SERVER_PORT=8080.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.New(cfgFile))
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = newLogger(cfg.Log)
		if err != nil {
			return err
		}
		if cfg.File == "" {
			logger.Debug("no config file found, using defaults and env vars")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/rtcmas.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds a zap logger from the log section of the config.
func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rtcmas version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rtcmas %s\n", version)
	},
}
