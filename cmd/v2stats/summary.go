package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/samber/lo"

	"v2stats/internal/model"
)

func printSummary(w io.Writer, network string, report model.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "v2 stats (%s)\n", network)
	fmt.Fprintln(tw, "BRANCH\tCOLL VALUE\tSP DEPOSITS\tVALUE LOCKED\tDEBT PENDING\tSP APY\tAVG 7D")

	symbols := lo.Keys(report.Branch)
	sort.Strings(symbols)
	for _, symbol := range symbols {
		b := report.Branch[symbol]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			symbol, b.CollValue, b.SPDeposits, b.ValueLocked, b.DebtPending, b.SPAPY, lo.FromPtrOr(b.SPAPYAvg7d, "-"))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%s\t%s\t-\n",
		report.TotalCollValue, report.TotalSPDeposits, report.TotalValueLocked, report.TotalDebtPending, report.MaxSPAPY)
	fmt.Fprintf(tw, "BOLD supply\t%s\n", report.TotalBoldSupply)

	return tw.Flush()
}
