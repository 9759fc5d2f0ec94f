package infra

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// DialEthereum connects to an Ethereum-compatible JSON-RPC endpoint and
// verifies it answers.
func DialEthereum(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("chain rpc url is required")
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	return client, nil
}
