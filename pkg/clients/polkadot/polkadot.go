// Package polkadot implements the lifecycle roles of Substrate relay chains
// against a substrate-api-sidecar REST endpoint. Extrinsics are SCALE encoded
// with the go-substrate-rpc-client types and signed locally with ed25519.
package polkadot

import (
	"fmt"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	subkey "github.com/vedhavyas/go-subkey/v2"
	"go.uber.org/zap"
)

const (
	// statusWindow is how many blocks a status query searches
	statusWindow = 10

	accountIDLength = 32
)

// Client implements every lifecycle role for the Polkadot family.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the Polkadot implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyPolkadot),
		cm:              cm,
		logger:          l,
	}
}

func networkParams(network chain.Chain, op txErrors.Op) (chain.PolkadotParams, error) {
	p, ok := chain.PolkadotConfig(network)
	if !ok {
		return chain.PolkadotParams{}, txErrors.Unsupported(op, network)
	}
	return p, nil
}

// decodeAddress returns the account id of an SS58 address of the network.
func decodeAddress(network chain.Chain, p chain.PolkadotParams, op txErrors.Op, address string) ([]byte, error) {
	format, pub, err := subkey.SS58Decode(address)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if format != p.SS58Prefix || len(pub) != accountIDLength {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("address %q is not a %s address", address, network))
	}
	return pub, nil
}

// encodeAddress is the inverse of decodeAddress.
func encodeAddress(p chain.PolkadotParams, accountID []byte) string {
	return subkey.SS58Encode(accountID, p.SS58Prefix)
}
