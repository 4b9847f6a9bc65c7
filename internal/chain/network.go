package chain

import (
	"fmt"
	"sort"
	"strings"
)

// Network is a known chain the reporter can target.
type Network struct {
	Name             string
	ChainID          uint64
	AlchemySubdomain string
}

var networks = map[string]Network{
	"mainnet": {Name: "mainnet", ChainID: 1, AlchemySubdomain: "eth-mainnet"},
	"sepolia": {Name: "sepolia", ChainID: 11155111, AlchemySubdomain: "eth-sepolia"},
}

// LookupNetwork returns the preset for a network name.
func LookupNetwork(name string) (Network, error) {
	n, ok := networks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(NetworkNames(), ", "))
	}
	return n, nil
}

// NetworkNames lists the known network names in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveRPCURL picks the RPC endpoint: an explicit URL wins, otherwise an Alchemy URL is
// derived from the API key. Neither being set is an error.
func ResolveRPCURL(network Network, rpcURL, alchemyAPIKey string) (string, error) {
	if rpcURL = strings.TrimSpace(rpcURL); rpcURL != "" {
		return rpcURL, nil
	}
	if alchemyAPIKey = strings.TrimSpace(alchemyAPIKey); alchemyAPIKey != "" {
		return fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", network.AlchemySubdomain, alchemyAPIKey), nil
	}
	return "", fmt.Errorf("rpc url or alchemy api key is required")
}
