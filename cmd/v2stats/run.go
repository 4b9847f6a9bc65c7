package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"v2stats/internal/chain"
	"v2stats/internal/config"
	"v2stats/internal/contracts"
	"v2stats/internal/deployment"
	"v2stats/internal/dune"
	"v2stats/internal/metrics"
	"v2stats/internal/model"
	"v2stats/internal/stats"
	"v2stats/internal/storage"
)

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	network, err := chain.LookupNetwork(cfg.Network)
	if err != nil {
		return err
	}
	block, err := cfg.BlockNumber()
	if err != nil {
		return err
	}

	dep, err := deployment.Load(cfg.Deployment)
	if err != nil {
		return err
	}
	if dep.ChainID != 0 && dep.ChainID != network.ChainID {
		return fmt.Errorf("deployment chain id %d does not match network %s (%d)", dep.ChainID, network.Name, network.ChainID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var source stats.ChainSource
	var live stats.LiveFunc = stats.NeverLive
	if cfg.LiveMode != config.LiveModeOffline {
		rpcURL, err := chain.ResolveRPCURL(network, cfg.RPCURL, cfg.AlchemyAPIKey)
		if err != nil {
			return err
		}
		chainClient, err := chain.Dial(ctx, rpcURL, network)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		if block == nil {
			head, err := chainClient.HeadBlock(ctx)
			if err != nil {
				return fmt.Errorf("head block: %w", err)
			}
			// every read below uses the same block
			block = new(big.Int).SetUint64(head)
		}

		reader := contracts.NewReader(chainClient, logger)
		source = reader
		live, err = liveFunc(cfg.LiveMode, reader, dep, block)
		if err != nil {
			return err
		}
	}

	analytics := dune.NewClient(dune.Config{
		APIKey:   cfg.DuneAPIKey,
		RetryMax: cfg.DuneRetryMax,
		Timeout:  cfg.Timeout,
	}, logger)

	logger.Info("v2stats start",
		zap.String("network", network.Name),
		zap.String("deployment", cfg.Deployment),
		zap.Int("branches", len(dep.Branches)),
		zap.String("live_mode", cfg.LiveMode),
		zap.Bool("analytics", cfg.DuneURL != ""),
		zap.String("block", blockLabel(block)),
	)

	report, err := stats.NewAggregator(source, analytics, logger).Compute(ctx, stats.Request{
		Deployment:   dep,
		AnalyticsURL: cfg.DuneURL,
		Block:        block,
		Live:         live,
	})
	if err != nil {
		return err
	}

	store := storage.NewFileStorage(storage.ReportPath(cfg.OutDir, network.Name))
	sinks := []storage.Storage{store}
	if cfg.MetricsTextfile != "" {
		sinks = append(sinks, metrics.NewTextfileSink(cfg.MetricsTextfile))
	}
	if err := writeReport(report, sinks); err != nil {
		return err
	}
	logger.Info("report written",
		zap.String("path", store.Path()),
		zap.String("metrics_textfile", cfg.MetricsTextfile),
	)

	return printSummary(cmd.OutOrStdout(), network.Name, report)
}

// writeReport hands the report to every sink and stops at the first failure.
func writeReport(report model.Report, sinks []storage.Storage) error {
	for _, sink := range sinks {
		if err := sink.PutReport(report); err != nil {
			return err
		}
	}
	return nil
}

// liveFunc builds the liveness predicate for the configured mode.
func liveFunc(mode string, reader *contracts.Reader, dep deployment.Deployment, block *big.Int) (stats.LiveFunc, error) {
	switch mode {
	case config.LiveModeAssume:
		return stats.AlwaysLive, nil
	case config.LiveModeOffline:
		return stats.NeverLive, nil
	case config.LiveModeGovernance:
		governance, ok := dep.Governance()
		if !ok {
			return nil, fmt.Errorf("live-mode governance needs contracts.governance in the deployment")
		}
		// the final deployment step renounces governance ownership
		return func(ctx context.Context) (bool, error) {
			return reader.OwnershipRenounced(ctx, governance, block), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown live-mode %q", mode)
	}
}

func blockLabel(block *big.Int) string {
	if block == nil {
		return "latest"
	}
	return block.String()
}
