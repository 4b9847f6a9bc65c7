package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"v2stats/internal/deployment"
	"v2stats/internal/model"
)

const (
	// fixedPointExp scales 18-decimal on-chain integers.
	fixedPointExp = -18
	// accrualExp scales aggWeightedDebtSum, which is debt (18 decimals) times rate (18 decimals).
	accrualExp = -36
	// resultPlaces is the precision kept after fixed point multiplication.
	resultPlaces = 18
)

// Caller is the subset of the chain client used to execute eth_call.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader issues read-only protocol calls. A nil block number reads the latest state.
type Reader struct {
	caller Caller
	logger *zap.Logger
}

func NewReader(caller Caller, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{caller: caller, logger: logger}
}

// BranchState fetches every raw metric of a branch concurrently.
func (r *Reader) BranchState(ctx context.Context, branch deployment.Branch, block *big.Int) (model.BranchState, error) {
	if r.caller == nil {
		return model.BranchState{}, fmt.Errorf("chain caller is nil")
	}

	state := model.BranchState{CollSymbol: branch.CollSymbol}
	var batchFees, batchFeesPending decimal.Decimal

	fields := []struct {
		abi    *lazyABI
		to     common.Address
		method string
		exp    int32
		dest   *decimal.Decimal
	}{
		{activePoolABI, branch.ActivePool(), "getCollBalance", fixedPointExp, &state.CollActive},
		{defaultPoolABI, branch.DefaultPool(), "getCollBalance", fixedPointExp, &state.CollDefault},
		{priceFeedABI, branch.PriceFeed(), "fetchPrice", fixedPointExp, &state.CollPrice},
		{stabilityPoolABI, branch.StabilityPool(), "getTotalBoldDeposits", fixedPointExp, &state.SPDeposits},
		{activePoolABI, branch.ActivePool(), "aggWeightedDebtSum", accrualExp, &state.InterestAccrual1y},
		{activePoolABI, branch.ActivePool(), "calcPendingAggInterest", fixedPointExp, &state.InterestPending},
		{activePoolABI, branch.ActivePool(), "aggBatchManagementFees", fixedPointExp, &batchFees},
		{activePoolABI, branch.ActivePool(), "calcPendingAggBatchManagementFee", fixedPointExp, &batchFeesPending},
	}

	var g errgroup.Group
	for _, field := range fields {
		field := field
		g.Go(func() error {
			raw, err := r.callUint(ctx, field.abi, field.to, field.method, block)
			if err != nil {
				return err
			}
			*field.dest = toDecimal(raw, field.exp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.BranchState{}, fmt.Errorf("branch %s: %w", branch.CollSymbol, err)
	}

	state.InterestAccrual1y = state.InterestAccrual1y.Truncate(resultPlaces)
	state.BatchManagementFeesPending = batchFees.Add(batchFeesPending)

	r.logger.Debug("branch state fetched",
		zap.String("coll_symbol", branch.CollSymbol),
		zap.String("coll_active", state.CollActive.String()),
		zap.String("sp_deposits", state.SPDeposits.String()),
	)
	return state, nil
}

// TotalSupply returns the ERC20 total supply of a token.
func (r *Reader) TotalSupply(ctx context.Context, token common.Address, block *big.Int) (decimal.Decimal, error) {
	if r.caller == nil {
		return decimal.Zero, fmt.Errorf("chain caller is nil")
	}
	raw, err := r.callUint(ctx, erc20SupplyABI, token, "totalSupply", block)
	if err != nil {
		return decimal.Zero, err
	}
	return toDecimal(raw, fixedPointExp), nil
}

// OwnershipRenounced reports whether owner() of the contract is the zero address.
// Call failures count as not renounced.
func (r *Reader) OwnershipRenounced(ctx context.Context, contract common.Address, block *big.Int) bool {
	if r.caller == nil {
		return false
	}
	values, err := r.call(ctx, ownableABI, contract, "owner", block)
	if err != nil {
		r.logger.Warn("owner call failed", zap.String("contract", contract.Hex()), zap.Error(err))
		return false
	}
	owner, err := asAddress(values[0])
	if err != nil {
		r.logger.Warn("owner decode failed", zap.String("contract", contract.Hex()), zap.Error(err))
		return false
	}
	return owner == (common.Address{})
}

func (r *Reader) callUint(ctx context.Context, parsed *lazyABI, to common.Address, method string, block *big.Int) (*big.Int, error) {
	values, err := r.call(ctx, parsed, to, method, block)
	if err != nil {
		return nil, err
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return value, nil
}

func (r *Reader) call(ctx context.Context, parsed *lazyABI, to common.Address, method string, block *big.Int) ([]interface{}, error) {
	contractABI, err := parsed.get()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contractABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func toDecimal(value *big.Int, exp int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, exp)
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}
