// Package stats assembles the protocol stats report from chain state and analytics rows.
package stats

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"v2stats/internal/deployment"
	"v2stats/internal/dune"
	"v2stats/internal/model"
)

// analyticsRowsPerBranch covers roughly one week of daily rows per branch.
const analyticsRowsPerBranch = 7

// ChainSource reads branch state and token supply at a block (nil = latest).
type ChainSource interface {
	BranchState(ctx context.Context, branch deployment.Branch, block *big.Int) (model.BranchState, error)
	TotalSupply(ctx context.Context, token common.Address, block *big.Int) (decimal.Decimal, error)
}

// AnalyticsSource returns trailing stability pool APR rows.
type AnalyticsSource interface {
	FetchAPRRows(ctx context.Context, queryURL string, limit int) ([]dune.APRRow, error)
}

// LiveFunc reports whether the deployment should be queried at all.
type LiveFunc func(ctx context.Context) (bool, error)

// AlwaysLive treats the deployment as live.
func AlwaysLive(context.Context) (bool, error) { return true, nil }

// NeverLive produces a zero-valued report without touching the chain.
func NeverLive(context.Context) (bool, error) { return false, nil }

// Request describes one report computation.
type Request struct {
	Deployment deployment.Deployment
	// AnalyticsURL is the query result endpoint; empty disables analytics.
	AnalyticsURL string
	// Block pins every chain read; nil reads the latest state.
	Block *big.Int
	Live  LiveFunc
}

// Aggregator computes stats reports.
type Aggregator struct {
	chain     ChainSource
	analytics AnalyticsSource
	logger    *zap.Logger
}

func NewAggregator(chain ChainSource, analytics AnalyticsSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{chain: chain, analytics: analytics, logger: logger}
}

// Compute fetches every input concurrently and folds them into a report.
// Any failed fetch fails the whole computation.
func (a *Aggregator) Compute(ctx context.Context, req Request) (model.Report, error) {
	yieldSplit, err := req.Deployment.YieldSplit()
	if err != nil {
		return model.Report{}, err
	}

	live := req.Live
	if live == nil {
		return model.Report{}, fmt.Errorf("live predicate is required")
	}
	isLive, err := live(ctx)
	if err != nil {
		return model.Report{}, fmt.Errorf("live check: %w", err)
	}
	if isLive && a.chain == nil {
		return model.Report{}, fmt.Errorf("chain source is nil")
	}

	branches := req.Deployment.Branches
	states := make([]model.BranchState, len(branches))
	totalSupply := decimal.Zero
	var samples map[string]model.APYSample

	var g errgroup.Group
	if isLive {
		g.Go(func() error {
			supply, err := a.chain.TotalSupply(ctx, req.Deployment.BoldToken(), req.Block)
			if err != nil {
				return fmt.Errorf("total supply: %w", err)
			}
			totalSupply = supply
			return nil
		})
		for i, branch := range branches {
			i, branch := i, branch
			g.Go(func() error {
				state, err := a.chain.BranchState(ctx, branch, req.Block)
				if err != nil {
					return err
				}
				// key by the configured symbol, not whatever the source echoes
				state.CollSymbol = branch.CollSymbol
				states[i] = state
				return nil
			})
		}
		g.Go(func() error {
			var err error
			samples, err = a.fetchAPYSamples(ctx, branches, req.AnalyticsURL)
			return err
		})
	} else {
		a.logger.Info("deployment not live, reporting zero state", zap.Int("branches", len(branches)))
		for i, branch := range branches {
			states[i] = model.EmptyBranchState(branch.CollSymbol)
		}
	}
	if err := g.Wait(); err != nil {
		return model.Report{}, err
	}

	metrics := lo.Map(states, func(state model.BranchState, _ int) model.BranchMetrics {
		return deriveBranchMetrics(state, yieldSplit)
	})

	report := buildReport(totalSupply, metrics, samples)
	a.logger.Info("report computed",
		zap.Int("branches", len(metrics)),
		zap.Bool("live", isLive),
		zap.Bool("analytics", samples != nil),
		zap.String("total_value_locked", report.TotalValueLocked),
		zap.String("max_sp_apy", report.MaxSPAPY),
	)
	return report, nil
}

func (a *Aggregator) fetchAPYSamples(ctx context.Context, branches []deployment.Branch, queryURL string) (map[string]model.APYSample, error) {
	if queryURL == "" {
		a.logger.Debug("analytics disabled, no query url")
		return nil, nil
	}
	if a.analytics == nil {
		return nil, fmt.Errorf("analytics source is nil")
	}

	rows, err := a.analytics.FetchAPRRows(ctx, queryURL, len(branches)*analyticsRowsPerBranch)
	if err != nil {
		return nil, fmt.Errorf("average apy: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	return apySamples(branches, rows), nil
}

// maxSPAPY returns the largest non-NaN APY, or NaN when there is none.
func maxSPAPY(metrics []model.BranchMetrics) float64 {
	apys := lo.Filter(lo.Map(metrics, func(m model.BranchMetrics, _ int) float64 {
		return m.SPAPY
	}), func(apy float64, _ int) bool {
		return !math.IsNaN(apy)
	})
	if len(apys) == 0 {
		return math.NaN()
	}
	return lo.Max(apys)
}
