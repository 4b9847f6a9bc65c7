package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is a read-only view of one network over JSON-RPC.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// Dial connects to rpcURL and checks that the node serves the expected network.
func Dial(ctx context.Context, rpcURL string, network Network) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network.Name, err)
	}

	c := &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}
	if err := VerifyChainID(ctx, c, network); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// HeadBlock returns the block number the node currently considers latest.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// CallContract runs eth_call at blockNumber; nil means latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// ChainIDReader is satisfied by Client and by test doubles.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// VerifyChainID fails when the node's chain id differs from the network preset.
func VerifyChainID(ctx context.Context, reader ChainIDReader, network Network) error {
	id, err := reader.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != network.ChainID {
		return fmt.Errorf("rpc chain id %s does not match network %s (%d)", id, network.Name, network.ChainID)
	}
	return nil
}
