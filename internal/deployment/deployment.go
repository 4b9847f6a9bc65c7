package deployment

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// fixedPointExp is the exponent of the protocol's 18-decimal fixed point values.
const fixedPointExp = -18

// Deployment is the static descriptor of a protocol deployment.
type Deployment struct {
	ChainID   uint64    `json:"chainId,omitempty"`
	Constants Constants `json:"constants"`
	Contracts Core      `json:"contracts"`
	Branches  []Branch  `json:"branches"`
}

// Constants holds protocol constants as fixed point strings.
type Constants struct {
	SPYieldSplit string `json:"SP_YIELD_SPLIT"`
}

// Core holds the addresses shared by all branches.
type Core struct {
	BoldToken  string `json:"boldToken"`
	Governance string `json:"governance,omitempty"`
}

// Branch describes one collateral branch.
type Branch struct {
	CollSymbol string          `json:"collSymbol"`
	Contracts  BranchContracts `json:"contracts"`
}

// BranchContracts holds the addresses of a branch's contracts.
type BranchContracts struct {
	ActivePool    string `json:"activePool"`
	DefaultPool   string `json:"defaultPool"`
	PriceFeed     string `json:"priceFeed"`
	StabilityPool string `json:"stabilityPool"`
}

// Load reads and validates a deployment descriptor from a JSON file.
func Load(path string) (Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Deployment{}, fmt.Errorf("read deployment: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a deployment descriptor.
func Parse(data []byte) (Deployment, error) {
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return Deployment{}, fmt.Errorf("parse deployment: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// Validate checks that constants parse and every address is a hex address.
func (d Deployment) Validate() error {
	if _, err := d.YieldSplit(); err != nil {
		return err
	}
	if !common.IsHexAddress(d.Contracts.BoldToken) {
		return fmt.Errorf("invalid boldToken address: %q", d.Contracts.BoldToken)
	}
	if d.Contracts.Governance != "" && !common.IsHexAddress(d.Contracts.Governance) {
		return fmt.Errorf("invalid governance address: %q", d.Contracts.Governance)
	}

	seen := make(map[string]struct{}, len(d.Branches))
	for i, branch := range d.Branches {
		if strings.TrimSpace(branch.CollSymbol) == "" {
			return fmt.Errorf("branch %d: collSymbol is required", i)
		}
		if _, ok := seen[branch.CollSymbol]; ok {
			return fmt.Errorf("branch %d: duplicate collSymbol %s", i, branch.CollSymbol)
		}
		seen[branch.CollSymbol] = struct{}{}

		for name, addr := range map[string]string{
			"activePool":    branch.Contracts.ActivePool,
			"defaultPool":   branch.Contracts.DefaultPool,
			"priceFeed":     branch.Contracts.PriceFeed,
			"stabilityPool": branch.Contracts.StabilityPool,
		} {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("branch %s: invalid %s address: %q", branch.CollSymbol, name, addr)
			}
		}
	}
	return nil
}

// YieldSplit returns SP_YIELD_SPLIT as a plain fraction.
func (d Deployment) YieldSplit() (float64, error) {
	value, err := ParseFixedPoint(d.Constants.SPYieldSplit)
	if err != nil {
		return 0, fmt.Errorf("SP_YIELD_SPLIT: %w", err)
	}
	if value.GreaterThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("SP_YIELD_SPLIT: %s exceeds 1", value.String())
	}
	return value.InexactFloat64(), nil
}

// ParseFixedPoint converts an 18-decimal fixed point integer string (decimal or 0x hex) into a decimal.
func ParseFixedPoint(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return decimal.Zero, fmt.Errorf("empty fixed point value")
	}
	raw, ok := parseUnsigned(input)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid fixed point value: %s", input)
	}
	return decimal.NewFromBigInt(raw, fixedPointExp), nil
}

// parseUnsigned accepts plain base 10 digits or 0x-prefixed hex digits. Anything else,
// including signs and underscores, is rejected.
func parseUnsigned(input string) (*big.Int, bool) {
	digits, base := input, 10
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		digits, base = input[2:], 16
	}
	if digits == "" {
		return nil, false
	}
	for _, r := range digits {
		if !isDigit(r, base) {
			return nil, false
		}
	}
	return new(big.Int).SetString(digits, base)
}

func isDigit(r rune, base int) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case base == 16 && strings.ContainsRune("abcdefABCDEF", r):
		return true
	default:
		return false
	}
}

// ActivePool returns the branch's active pool address.
func (b Branch) ActivePool() common.Address { return common.HexToAddress(b.Contracts.ActivePool) }

// DefaultPool returns the branch's default pool address.
func (b Branch) DefaultPool() common.Address { return common.HexToAddress(b.Contracts.DefaultPool) }

// PriceFeed returns the branch's price feed address.
func (b Branch) PriceFeed() common.Address { return common.HexToAddress(b.Contracts.PriceFeed) }

// StabilityPool returns the branch's stability pool address.
func (b Branch) StabilityPool() common.Address {
	return common.HexToAddress(b.Contracts.StabilityPool)
}

// BoldToken returns the stablecoin token address.
func (d Deployment) BoldToken() common.Address { return common.HexToAddress(d.Contracts.BoldToken) }

// Governance returns the governance address and whether one is configured.
func (d Deployment) Governance() (common.Address, bool) {
	if d.Contracts.Governance == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(d.Contracts.Governance), true
}
