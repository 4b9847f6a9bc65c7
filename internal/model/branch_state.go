package model

import "github.com/shopspring/decimal"

// BranchState is the point-in-time contract state of one collateral branch.
type BranchState struct {
	CollSymbol                 string
	CollActive                 decimal.Decimal
	CollDefault                decimal.Decimal
	CollPrice                  decimal.Decimal
	SPDeposits                 decimal.Decimal
	InterestAccrual1y          decimal.Decimal
	InterestPending            decimal.Decimal
	BatchManagementFeesPending decimal.Decimal
}

// EmptyBranchState returns a zero-valued state for a branch that is not live yet.
func EmptyBranchState(collSymbol string) BranchState {
	return BranchState{
		CollSymbol:                 collSymbol,
		CollActive:                 decimal.Zero,
		CollDefault:                decimal.Zero,
		CollPrice:                  decimal.Zero,
		SPDeposits:                 decimal.Zero,
		InterestAccrual1y:          decimal.Zero,
		InterestPending:            decimal.Zero,
		BatchManagementFeesPending: decimal.Zero,
	}
}

// BranchMetrics extends BranchState with the derived per-branch figures.
type BranchMetrics struct {
	BranchState
	DebtPending decimal.Decimal
	CollValue   decimal.Decimal
	ValueLocked decimal.Decimal
	SPAPY       float64
}

// APYSample is the trailing stability pool yield reported by the analytics source.
type APYSample struct {
	Avg1d float64
	Avg7d float64
}
