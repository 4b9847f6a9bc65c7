package model

// Report is the serialized stats snapshot. Every numeric leaf is a decimal string.
type Report struct {
	TotalBoldSupply  string                  `json:"total_bold_supply"`
	TotalDebtPending string                  `json:"total_debt_pending"`
	TotalCollValue   string                  `json:"total_coll_value"`
	TotalSPDeposits  string                  `json:"total_sp_deposits"`
	TotalValueLocked string                  `json:"total_value_locked"`
	MaxSPAPY         string                  `json:"max_sp_apy"`
	Branch           map[string]BranchReport `json:"branch"`
}

// BranchReport holds the rendered metrics of one branch, keyed by collateral symbol in Report.
type BranchReport struct {
	CollActive                 string  `json:"coll_active"`
	CollDefault                string  `json:"coll_default"`
	CollPrice                  string  `json:"coll_price"`
	SPDeposits                 string  `json:"sp_deposits"`
	InterestAccrual1y          string  `json:"interest_accrual_1y"`
	InterestPending            string  `json:"interest_pending"`
	BatchManagementFeesPending string  `json:"batch_management_fees_pending"`
	DebtPending                string  `json:"debt_pending"`
	CollValue                  string  `json:"coll_value"`
	ValueLocked                string  `json:"value_locked"`
	SPAPY                      string  `json:"sp_apy"`
	APYAvg                     string  `json:"apy_avg"`
	SPAPYAvg1d                 *string `json:"sp_apy_avg_1d,omitempty"`
	SPAPYAvg7d                 *string `json:"sp_apy_avg_7d,omitempty"`
}
