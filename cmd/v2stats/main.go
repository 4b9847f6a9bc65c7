package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"v2stats/internal/chain"
	"v2stats/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "v2stats",
		Short:        "Liquity v2 protocol stats reporter",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Read branch state and write the stats report",
		RunE:  runStats,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL (overrides the Alchemy endpoint)")
	runCmd.Flags().String("alchemy-api-key", "", "Alchemy API key used when --rpc is empty")
	runCmd.Flags().String("network", "mainnet", "network preset ("+strings.Join(chain.NetworkNames(), ", ")+")")
	runCmd.Flags().String("deployment", "", "deployment descriptor JSON path")
	runCmd.Flags().String("dune-api-key", "", "Dune API key; empty skips the average APY query")
	runCmd.Flags().String("dune-url", "", "Dune query results URL; empty disables average APY")
	runCmd.Flags().Int("dune-retry-max", 0, "retries for the Dune request")
	runCmd.Flags().String("out-dir", "./docs/v2-stats", "output directory for <network>.json")
	runCmd.Flags().String("block", "", "block number to read at, empty means latest")
	runCmd.Flags().String("live-mode", config.LiveModeAssume, "liveness check (assume, governance, offline)")
	runCmd.Flags().Duration("timeout", 0, "deadline for the whole run, 0 means none")
	runCmd.Flags().String("metrics-textfile", "", "optional Prometheus textfile output path")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
