// Package proxy provides the dispatch proxies of the transaction lifecycle.
// Each proxy owns a registry of per-chain implementations for one role and
// routes every call to the implementation registered for the requested network.
// Proxies hold no mutable state and are safe for concurrent use.
package proxy

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
)

// Preloader fetches the on-chain state needed to sign a transfer.
type Preloader interface {
	chain.Supporter
	Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error)
}

// Signer builds and signs the wire payload. privateKey is owned by the caller
// and must not be retained or logged by implementations.
type Signer interface {
	chain.Supporter
	Sign(ctx context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error)
}

// Broadcaster submits one signed payload and returns the network's transaction id.
type Broadcaster interface {
	chain.Supporter
	Broadcast(ctx context.Context, account txModel.Account, signed []byte, txType txModel.TransactionType) (string, error)
}

// StatusChecker classifies the current state of a submitted transaction.
type StatusChecker interface {
	chain.Supporter
	GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error)
}

// NodeStatusChecker reports the health of a node.
type NodeStatusChecker interface {
	chain.Supporter
	GetNodeStatus(ctx context.Context, c chain.Chain, url string) (*txModel.NodeStatus, error)
}
