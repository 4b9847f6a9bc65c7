package stats

import (
	"strconv"

	"github.com/shopspring/decimal"

	"v2stats/internal/model"
)

func buildReport(totalSupply decimal.Decimal, metrics []model.BranchMetrics, samples map[string]model.APYSample) model.Report {
	debtPending := sumDecimal(metrics, func(m model.BranchMetrics) decimal.Decimal { return m.DebtPending })
	collValue := sumDecimal(metrics, func(m model.BranchMetrics) decimal.Decimal { return m.CollValue })
	spDeposits := sumDecimal(metrics, func(m model.BranchMetrics) decimal.Decimal { return m.SPDeposits })
	valueLocked := sumDecimal(metrics, func(m model.BranchMetrics) decimal.Decimal { return m.ValueLocked })

	report := model.Report{
		TotalBoldSupply:  totalSupply.String(),
		TotalDebtPending: debtPending.String(),
		TotalCollValue:   collValue.String(),
		TotalSPDeposits:  spDeposits.String(),
		TotalValueLocked: valueLocked.String(),
		MaxSPAPY:         formatFloat(maxSPAPY(metrics)),
		Branch:           make(map[string]model.BranchReport, len(metrics)),
	}

	for _, m := range metrics {
		branch := renderBranch(m)
		if sample, ok := samples[m.CollSymbol]; ok {
			avg1d := formatFloat(sample.Avg1d)
			avg7d := formatFloat(sample.Avg7d)
			branch.SPAPYAvg1d = &avg1d
			branch.SPAPYAvg7d = &avg7d
		}
		report.Branch[m.CollSymbol] = branch
	}
	return report
}

func renderBranch(m model.BranchMetrics) model.BranchReport {
	apy := formatFloat(m.SPAPY)
	return model.BranchReport{
		CollActive:                 m.CollActive.String(),
		CollDefault:                m.CollDefault.String(),
		CollPrice:                  m.CollPrice.String(),
		SPDeposits:                 m.SPDeposits.String(),
		InterestAccrual1y:          m.InterestAccrual1y.String(),
		InterestPending:            m.InterestPending.String(),
		BatchManagementFeesPending: m.BatchManagementFeesPending.String(),
		DebtPending:                m.DebtPending.String(),
		CollValue:                  m.CollValue.String(),
		ValueLocked:                m.ValueLocked.String(),
		SPAPY:                      apy,
		APYAvg:                     apy,
	}
}

// formatFloat renders the shortest decimal form; NaN renders as "NaN".
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
