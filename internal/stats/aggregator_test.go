package stats

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"v2stats/internal/deployment"
	"v2stats/internal/dune"
	"v2stats/internal/model"
)

type fakeChain struct {
	mu        sync.Mutex
	states    map[string]model.BranchState
	supply    decimal.Decimal
	failOn    string
	calls     int
	lastBlock *big.Int
}

func (f *fakeChain) BranchState(_ context.Context, branch deployment.Branch, block *big.Int) (model.BranchState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastBlock = block
	if branch.CollSymbol == f.failOn {
		return model.BranchState{}, fmt.Errorf("branch %s: call reverted", branch.CollSymbol)
	}
	return f.states[branch.CollSymbol], nil
}

func (f *fakeChain) TotalSupply(_ context.Context, _ common.Address, _ *big.Int) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == "supply" {
		return decimal.Zero, errors.New("rpc unavailable")
	}
	return f.supply, nil
}

type fakeAnalytics struct {
	mu    sync.Mutex
	rows  []dune.APRRow
	err   error
	calls int
	limit int
}

func (f *fakeAnalytics) FetchAPRRows(_ context.Context, _ string, limit int) ([]dune.APRRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limit = limit
	return f.rows, f.err
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func branchOf(symbol string) deployment.Branch {
	return deployment.Branch{
		CollSymbol: symbol,
		Contracts: deployment.BranchContracts{
			ActivePool:    "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			DefaultPool:   "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			PriceFeed:     "0xcccccccccccccccccccccccccccccccccccccccc",
			StabilityPool: "0xdddddddddddddddddddddddddddddddddddddddd",
		},
	}
}

func testDeployment(symbols ...string) deployment.Deployment {
	dep := deployment.Deployment{
		Constants: deployment.Constants{SPYieldSplit: "750000000000000000"},
		Contracts: deployment.Core{BoldToken: "0x1111111111111111111111111111111111111111"},
	}
	for _, symbol := range symbols {
		dep.Branches = append(dep.Branches, branchOf(symbol))
	}
	return dep
}

func scenarioChain() *fakeChain {
	return &fakeChain{
		supply: d("1000000"),
		states: map[string]model.BranchState{
			"ETH": {
				CollSymbol:                 "ETH",
				CollActive:                 d("100"),
				CollDefault:                d("0"),
				CollPrice:                  d("3000"),
				SPDeposits:                 d("500000"),
				InterestAccrual1y:          d("10000"),
				InterestPending:            d("12.5"),
				BatchManagementFeesPending: d("0.25"),
			},
			"WBTC": {
				CollSymbol:                 "WBTC",
				CollActive:                 d("10"),
				CollDefault:                d("0"),
				CollPrice:                  d("60000"),
				SPDeposits:                 d("0"),
				InterestAccrual1y:          d("500"),
				InterestPending:            d("1"),
				BatchManagementFeesPending: d("0"),
			},
		},
	}
}

func TestComputeScenario(t *testing.T) {
	chain := scenarioChain()
	agg := NewAggregator(chain, &fakeAnalytics{}, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{
		Deployment: testDeployment("ETH", "WBTC"),
		Live:       AlwaysLive,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	checks := map[string]struct{ got, want string }{
		"total_bold_supply":  {report.TotalBoldSupply, "1000000"},
		"total_coll_value":   {report.TotalCollValue, "900000"},
		"total_sp_deposits":  {report.TotalSPDeposits, "500000"},
		"total_value_locked": {report.TotalValueLocked, "1400000"},
		"total_debt_pending": {report.TotalDebtPending, "13.75"},
		"max_sp_apy":         {report.MaxSPAPY, "0.015"},
		"eth coll_value":     {report.Branch["ETH"].CollValue, "300000"},
		"eth sp_apy":         {report.Branch["ETH"].SPAPY, "0.015"},
		"eth apy_avg":        {report.Branch["ETH"].APYAvg, "0.015"},
		"eth debt_pending":   {report.Branch["ETH"].DebtPending, "12.75"},
		"wbtc coll_value":    {report.Branch["WBTC"].CollValue, "600000"},
		"wbtc sp_apy":        {report.Branch["WBTC"].SPAPY, "0"},
		"wbtc value_locked":  {report.Branch["WBTC"].ValueLocked, "600000"},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %s, want %s", name, c.got, c.want)
		}
	}

	if len(report.Branch) != 2 {
		t.Fatalf("branch entries = %d, want 2", len(report.Branch))
	}
	if chain.calls != 3 {
		t.Fatalf("chain calls = %d, want 3", chain.calls)
	}
}

func TestComputeZeroDepositsAPYIsZero(t *testing.T) {
	chain := &fakeChain{states: map[string]model.BranchState{
		"ETH": {CollSymbol: "ETH", InterestAccrual1y: d("123.45"), SPDeposits: decimal.Zero},
	}}
	agg := NewAggregator(chain, nil, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH"), Live: AlwaysLive})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if report.Branch["ETH"].SPAPY != "0" {
		t.Fatalf("sp_apy = %s, want 0", report.Branch["ETH"].SPAPY)
	}
	if report.MaxSPAPY != "0" {
		t.Fatalf("max_sp_apy = %s, want 0", report.MaxSPAPY)
	}
}

func TestComputeNoBranches(t *testing.T) {
	agg := NewAggregator(&fakeChain{supply: d("42")}, nil, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{Deployment: testDeployment(), Live: AlwaysLive})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for name, got := range map[string]string{
		"total_debt_pending": report.TotalDebtPending,
		"total_coll_value":   report.TotalCollValue,
		"total_sp_deposits":  report.TotalSPDeposits,
		"total_value_locked": report.TotalValueLocked,
	} {
		if got != "0" {
			t.Fatalf("%s = %s, want 0", name, got)
		}
	}
	if report.MaxSPAPY != "NaN" {
		t.Fatalf("max_sp_apy = %s, want NaN", report.MaxSPAPY)
	}
	if report.TotalBoldSupply != "42" {
		t.Fatalf("total_bold_supply = %s, want 42", report.TotalBoldSupply)
	}
	if len(report.Branch) != 0 {
		t.Fatalf("expected empty branch map")
	}
}

func TestComputeSumsMatchBranches(t *testing.T) {
	chain := &fakeChain{states: map[string]model.BranchState{}}
	symbols := []string{"ETH", "wstETH", "rETH", "wBTC"}
	for i, symbol := range symbols {
		chain.states[symbol] = model.BranchState{
			CollSymbol:                 symbol,
			CollActive:                 d("1.000000000000000001").Mul(decimal.NewFromInt(int64(i + 1))),
			CollDefault:                d("0.1"),
			CollPrice:                  d("2500.123456789012345678"),
			SPDeposits:                 d("1000.000000000000000003"),
			InterestPending:            d("0.000000000000000001"),
			BatchManagementFeesPending: d("0.1"),
		}
	}
	agg := NewAggregator(chain, nil, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{Deployment: testDeployment(symbols...), Live: AlwaysLive})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	sums := map[string]decimal.Decimal{}
	for _, branch := range report.Branch {
		sums["debt"] = sums["debt"].Add(d(branch.DebtPending))
		sums["coll"] = sums["coll"].Add(d(branch.CollValue))
		sums["sp"] = sums["sp"].Add(d(branch.SPDeposits))
		sums["tvl"] = sums["tvl"].Add(d(branch.ValueLocked))
	}
	for name, c := range map[string]struct {
		total string
		sum   decimal.Decimal
	}{
		"debt": {report.TotalDebtPending, sums["debt"]},
		"coll": {report.TotalCollValue, sums["coll"]},
		"sp":   {report.TotalSPDeposits, sums["sp"]},
		"tvl":  {report.TotalValueLocked, sums["tvl"]},
	} {
		if !d(c.total).Equal(c.sum) {
			t.Fatalf("%s total %s != branch sum %s", name, c.total, c.sum.String())
		}
	}
	if report.TotalSPDeposits != "4000.000000000000000012" {
		t.Fatalf("total_sp_deposits lost precision: %s", report.TotalSPDeposits)
	}
	if report.TotalDebtPending != "0.400000000000000004" {
		t.Fatalf("total_debt_pending lost precision: %s", report.TotalDebtPending)
	}
}

func TestComputeAnalyticsDisabled(t *testing.T) {
	analytics := &fakeAnalytics{rows: []dune.APRRow{{CollateralType: "ETH", APR: 0.1}}}
	agg := NewAggregator(scenarioChain(), analytics, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH", "WBTC"), Live: AlwaysLive})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if analytics.calls != 0 {
		t.Fatalf("analytics calls = %d, want 0", analytics.calls)
	}
	for symbol, branch := range report.Branch {
		if branch.SPAPYAvg1d != nil || branch.SPAPYAvg7d != nil {
			t.Fatalf("%s: expected no average apy fields", symbol)
		}
	}
}

func TestComputeAnalyticsSamples(t *testing.T) {
	analytics := &fakeAnalytics{rows: []dune.APRRow{
		{CollateralType: "ETH", APR: 0.06},
		{CollateralType: "WBTC", APR: 0.02},
		{CollateralType: "ETH", APR: 0.04},
		{CollateralType: "ETH", APR: 0.05},
		{CollateralType: "WBTC", APR: 0.04},
	}}
	chain := scenarioChain()
	chain.states["wBTC"] = chain.states["WBTC"]
	agg := NewAggregator(chain, analytics, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{
		Deployment:   testDeployment("ETH", "wBTC", "rETH"),
		AnalyticsURL: "https://api.dune.com/api/v1/query/1/results",
		Live:         AlwaysLive,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if analytics.limit != 21 {
		t.Fatalf("limit = %d, want 21", analytics.limit)
	}

	eth := report.Branch["ETH"]
	if eth.SPAPYAvg1d == nil || *eth.SPAPYAvg1d != "0.06" {
		t.Fatalf("eth 1d avg mismatch: %v", eth.SPAPYAvg1d)
	}
	if eth.SPAPYAvg7d == nil || d(*eth.SPAPYAvg7d).Round(6).String() != "0.05" {
		t.Fatalf("eth 7d avg mismatch: %v", eth.SPAPYAvg7d)
	}

	wbtc, ok := report.Branch["wBTC"]
	if !ok {
		t.Fatalf("missing wBTC branch entry")
	}
	if wbtc.SPAPYAvg1d == nil || *wbtc.SPAPYAvg1d != "0.02" {
		t.Fatalf("wBTC should match WBTC rows, got %v", wbtc.SPAPYAvg1d)
	}
	if wbtc.SPAPYAvg7d == nil || d(*wbtc.SPAPYAvg7d).Round(6).String() != "0.03" {
		t.Fatalf("wBTC 7d avg mismatch: %v", wbtc.SPAPYAvg7d)
	}

	reth, ok := report.Branch["rETH"]
	if !ok {
		t.Fatalf("missing rETH branch entry")
	}
	if reth.SPAPYAvg1d != nil || reth.SPAPYAvg7d != nil {
		t.Fatalf("rETH has no rows and should have no averages")
	}
}

func TestComputeAnalyticsValidationError(t *testing.T) {
	analytics := &fakeAnalytics{err: fmt.Errorf("%w: row 1: apr missing or not a number", dune.ErrInvalidResponse)}
	agg := NewAggregator(scenarioChain(), analytics, zap.NewNop())

	_, err := agg.Compute(context.Background(), Request{
		Deployment:   testDeployment("ETH", "WBTC"),
		AnalyticsURL: "https://api.dune.com/api/v1/query/1/results",
		Live:         AlwaysLive,
	})
	if !errors.Is(err, dune.ErrInvalidResponse) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestComputeFetchFailures(t *testing.T) {
	for _, failOn := range []string{"WBTC", "supply"} {
		t.Run(failOn, func(t *testing.T) {
			chain := scenarioChain()
			chain.failOn = failOn
			agg := NewAggregator(chain, nil, zap.NewNop())

			_, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH", "WBTC"), Live: AlwaysLive})
			if err == nil {
				t.Fatalf("expected error when %s fails", failOn)
			}
		})
	}
}

func TestComputeNotLive(t *testing.T) {
	chain := scenarioChain()
	analytics := &fakeAnalytics{rows: []dune.APRRow{{CollateralType: "ETH", APR: 0.1}}}
	agg := NewAggregator(chain, analytics, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{
		Deployment:   testDeployment("ETH", "WBTC"),
		AnalyticsURL: "https://api.dune.com/api/v1/query/1/results",
		Live:         NeverLive,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if chain.calls != 0 || analytics.calls != 0 {
		t.Fatalf("expected no fetches, chain=%d analytics=%d", chain.calls, analytics.calls)
	}
	if report.TotalBoldSupply != "0" || report.TotalValueLocked != "0" {
		t.Fatalf("expected zero totals: %+v", report)
	}
	if len(report.Branch) != 2 || report.Branch["ETH"].SPAPY != "0" {
		t.Fatalf("expected zero-valued branches: %+v", report.Branch)
	}
}

func TestComputeLivePredicate(t *testing.T) {
	agg := NewAggregator(scenarioChain(), nil, zap.NewNop())

	if _, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH")}); err == nil {
		t.Fatalf("expected error without live predicate")
	}

	failing := func(context.Context) (bool, error) { return false, errors.New("boom") }
	if _, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH"), Live: failing}); err == nil {
		t.Fatalf("expected live check error to propagate")
	}
}

func TestComputePinsBlock(t *testing.T) {
	chain := scenarioChain()
	agg := NewAggregator(chain, nil, zap.NewNop())

	block := big.NewInt(21500000)
	if _, err := agg.Compute(context.Background(), Request{Deployment: testDeployment("ETH"), Block: block, Live: AlwaysLive}); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if chain.lastBlock == nil || chain.lastBlock.Cmp(block) != 0 {
		t.Fatalf("block = %v, want %v", chain.lastBlock, block)
	}
}

func TestComputeKeysByConfiguredSymbol(t *testing.T) {
	chain := &fakeChain{states: map[string]model.BranchState{
		"ETH":  {CollSymbol: "", CollActive: d("2"), CollPrice: d("3000")},
		"wBTC": {CollSymbol: "WBTC", CollActive: d("1"), CollPrice: d("60000")},
	}}
	analytics := &fakeAnalytics{rows: []dune.APRRow{{CollateralType: "WBTC", APR: 0.02}}}
	agg := NewAggregator(chain, analytics, zap.NewNop())

	report, err := agg.Compute(context.Background(), Request{
		Deployment:   testDeployment("ETH", "wBTC", "rETH"),
		AnalyticsURL: "https://api.dune.com/api/v1/query/1/results",
		Live:         AlwaysLive,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if len(report.Branch) != 3 {
		t.Fatalf("branch entries = %d, want 3: %v", len(report.Branch), report.Branch)
	}
	for _, symbol := range []string{"ETH", "wBTC", "rETH"} {
		if _, ok := report.Branch[symbol]; !ok {
			t.Fatalf("missing %s branch entry", symbol)
		}
	}
	if report.Branch["ETH"].CollValue != "6000" || report.Branch["wBTC"].CollValue != "60000" {
		t.Fatalf("branch values mixed up: %+v", report.Branch)
	}
	if report.Branch["rETH"].CollValue != "0" {
		t.Fatalf("rETH coll_value = %s, want 0", report.Branch["rETH"].CollValue)
	}
	avg := report.Branch["wBTC"].SPAPYAvg1d
	if avg == nil || *avg != "0.02" {
		t.Fatalf("wBTC should pick up WBTC rows, got %v", avg)
	}
}
