package evm

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"
)

// GetStatus classifies a transaction by its receipt. A missing receipt or one
// without a block is pending. Failed is never reported; a receipt with status 0 is reverted.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.EthClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(req.Hash))
	if errors.Is(err, ethereum.NotFound) {
		return txModel.PendingChanges(), nil
	}
	if err != nil {
		return txModel.TransactionChanges{}, nodeClient.Classify(err)
	}
	if receipt == nil || receipt.BlockNumber == nil || receipt.BlockNumber.Sign() == 0 {
		return txModel.PendingChanges(), nil
	}

	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if receipt.Status == types.ReceiptStatusFailed {
		changes.State = txModel.TransactionStateReverted
	}
	if receipt.EffectiveGasPrice != nil {
		changes.Fee = new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
	}
	return changes, nil
}

// GetNodeStatus queries chain id, head and sync progress of a node. An empty url
// or the configured one checks the configured connection.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := c.nodeFor(network, url)
	if err != nil {
		return nil, err
	}

	var (
		chainID *big.Int
		head    uint64
		sync    *ethereum.SyncProgress
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		chainID, err = client.ChainID(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		head, err = client.BlockNumber(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sync, err = client.SyncProgress(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nodeClient.Classify(err)
	}

	return &txModel.NodeStatus{
		Chain:       network,
		URL:         url,
		ChainID:     chainID.String(),
		LatestBlock: head,
		InSync:      sync == nil,
		Latency:     time.Since(start),
	}, nil
}

func (c *Client) nodeFor(network chain.Chain, url string) (chainManager.EthClientInterface, error) {
	entry, err := c.cm.GetChainForId(network)
	if err == nil && entry.RPCClient != nil && (url == "" || url == entry.Config().RPCUrl) {
		return entry.RPCClient, nil
	}
	if url == "" {
		return chainManager.EthClient(c.cm, network)
	}
	rpcClient, err := nodeClient.New(url, c.logger).RPC()
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpNodeStatus, network, err)
	}
	return ethclient.NewClient(rpcClient), nil
}
