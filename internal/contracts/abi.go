package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const activePoolABIJSON = `[
  {"inputs": [], "name": "getCollBalance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "aggWeightedDebtSum", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "calcPendingAggInterest", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "aggBatchManagementFees", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "calcPendingAggBatchManagementFee", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const defaultPoolABIJSON = `[
  {"inputs": [], "name": "getCollBalance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// fetchPrice is nonpayable on chain; it is only ever executed through eth_call.
const priceFeedABIJSON = `[
  {"inputs": [], "name": "fetchPrice", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}, {"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

const stabilityPoolABIJSON = `[
  {"inputs": [], "name": "getTotalBoldDeposits", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20SupplyABIJSON = `[
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const ownableABIJSON = `[
  {"inputs": [], "name": "owner", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	activePoolABI    = &lazyABI{json: activePoolABIJSON}
	defaultPoolABI   = &lazyABI{json: defaultPoolABIJSON}
	priceFeedABI     = &lazyABI{json: priceFeedABIJSON}
	stabilityPoolABI = &lazyABI{json: stabilityPoolABIJSON}
	erc20SupplyABI   = &lazyABI{json: erc20SupplyABIJSON}
	ownableABI       = &lazyABI{json: ownableABIJSON}
)

// ActivePoolABI returns the parsed active pool ABI.
func ActivePoolABI() (abi.ABI, error) { return activePoolABI.get() }

// DefaultPoolABI returns the parsed default pool ABI.
func DefaultPoolABI() (abi.ABI, error) { return defaultPoolABI.get() }

// PriceFeedABI returns the parsed price feed ABI.
func PriceFeedABI() (abi.ABI, error) { return priceFeedABI.get() }

// StabilityPoolABI returns the parsed stability pool ABI.
func StabilityPoolABI() (abi.ABI, error) { return stabilityPoolABI.get() }

// ERC20SupplyABI returns the parsed ERC20 totalSupply ABI.
func ERC20SupplyABI() (abi.ABI, error) { return erc20SupplyABI.get() }

// OwnableABI returns the parsed owner() ABI.
func OwnableABI() (abi.ABI, error) { return ownableABI.get() }
