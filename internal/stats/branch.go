package stats

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"v2stats/internal/deployment"
	"v2stats/internal/dune"
	"v2stats/internal/model"
)

// fixedPointPlaces is the precision of the protocol's fixed point arithmetic.
const fixedPointPlaces = 18

// analyticsSymbols maps branch symbols that the analytics dataset spells differently.
var analyticsSymbols = map[string]string{
	"wBTC": "WBTC",
}

func analyticsSymbol(collSymbol string) string {
	if mapped, ok := analyticsSymbols[collSymbol]; ok {
		return mapped
	}
	return collSymbol
}

func deriveBranchMetrics(state model.BranchState, yieldSplit float64) model.BranchMetrics {
	collValue := state.CollActive.Add(state.CollDefault).Mul(state.CollPrice).Truncate(fixedPointPlaces)
	return model.BranchMetrics{
		BranchState: state,
		DebtPending: state.InterestPending.Add(state.BatchManagementFeesPending),
		CollValue:   collValue,
		// stablecoin deposits are taken at face value
		ValueLocked: collValue.Add(state.SPDeposits),
		SPAPY:       spAPY(state, yieldSplit),
	}
}

func spAPY(state model.BranchState, yieldSplit float64) float64 {
	deposits := state.SPDeposits.InexactFloat64()
	if deposits == 0 {
		return 0
	}
	return yieldSplit * state.InterestAccrual1y.InexactFloat64() / deposits
}

// apySamples groups analytics rows by branch. Rows are ordered newest first, so the first
// matching row is the 1-day figure. Branches without rows get no sample.
func apySamples(branches []deployment.Branch, rows []dune.APRRow) map[string]model.APYSample {
	bySymbol := lo.GroupBy(rows, func(row dune.APRRow) string {
		return row.CollateralType
	})

	samples := make(map[string]model.APYSample, len(branches))
	for _, branch := range branches {
		matching := bySymbol[analyticsSymbol(branch.CollSymbol)]
		if len(matching) == 0 {
			continue
		}
		sum := lo.SumBy(matching, func(row dune.APRRow) float64 { return row.APR })
		samples[branch.CollSymbol] = model.APYSample{
			Avg1d: matching[0].APR,
			Avg7d: sum / float64(len(matching)),
		}
	}
	return samples
}

func sumDecimal(metrics []model.BranchMetrics, field func(model.BranchMetrics) decimal.Decimal) decimal.Decimal {
	return lo.Reduce(metrics, func(acc decimal.Decimal, m model.BranchMetrics, _ int) decimal.Decimal {
		return acc.Add(field(m))
	}, decimal.Zero)
}
