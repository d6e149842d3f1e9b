package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"golang.org/x/sync/errgroup"
)

type txResponse struct {
	TxHash string `json:"txhash"`
	Height string `json:"height"`
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
	Tx     struct {
		AuthInfo struct {
			Fee struct {
				Amount []struct {
					Denom  string `json:"denom"`
					Amount string `json:"amount"`
				} `json:"amount"`
			} `json:"fee"`
		} `json:"auth_info"`
	} `json:"tx"`
}

type txEnvelope struct {
	TxResponse txResponse `json:"tx_response"`
}

// grpcGatewayError is the error body of the LCD gateway.
type grpcGatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Broadcast posts the signed broadcast request unchanged. A non-zero response
// code is a rejection carrying the node's raw log.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var resp txEnvelope
	if err := client.PostRaw(ctx, "/cosmos/tx/v1beta1/txs", "application/json", signed, &resp); err != nil {
		return "", withGatewayMessage(account.Chain, txErrors.OpBroadcast, err)
	}
	if resp.TxResponse.Code != 0 {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, resp.TxResponse.RawLog)
	}
	if resp.TxResponse.TxHash == "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, "empty tx hash")
	}
	return resp.TxResponse.TxHash, nil
}

// withGatewayMessage replaces the raw body of a rejection with the gateway's message.
func withGatewayMessage(network chain.Chain, op txErrors.Op, err error) error {
	body, ok := nodeClient.ResponseBody(err)
	if !ok || txErrors.KindOf(err) != txErrors.KindRejected {
		return err
	}
	var gw grpcGatewayError
	if json.Unmarshal(body, &gw) != nil || gw.Message == "" {
		return err
	}
	return &txErrors.Error{Kind: txErrors.KindRejected, Op: op, Chain: network, Message: gw.Message, Err: err}
}

// GetStatus looks the transaction up by hash. Unknown transactions are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var resp txEnvelope
	if err := client.GetJSON(ctx, "/cosmos/tx/v1beta1/txs/"+req.Hash, &resp); err != nil {
		if isTxNotFound(err) {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	tx := resp.TxResponse
	if tx.Height == "" || tx.Height == "0" {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if tx.Code != 0 {
		changes.State = txModel.TransactionStateFailed
	}
	if amounts := tx.Tx.AuthInfo.Fee.Amount; len(amounts) > 0 {
		if fee, ok := new(big.Int).SetString(amounts[0].Amount, 10); ok {
			changes.Fee = fee
		}
	}
	return changes, nil
}

// isTxNotFound matches 404s and the "tx not found" answer some gateways return with other statuses.
func isTxNotFound(err error) bool {
	if nodeClient.IsNotFound(err) {
		return true
	}
	var typed *txErrors.Error
	return errors.As(err, &typed) && typed.Kind == txErrors.KindRejected && strings.Contains(strings.ToLower(typed.Message), "not found")
}

type syncingResponse struct {
	Syncing bool `json:"syncing"`
}

// GetNodeStatus reads the latest block and sync flag of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		block   latestBlockResponse
		syncing syncingResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.GetJSON(gctx, "/cosmos/base/tendermint/v1beta1/blocks/latest", &block)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/cosmos/base/tendermint/v1beta1/syncing", &syncing)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	height, err := strconv.ParseUint(block.Block.Header.Height, 10, 64)
	if err != nil {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpNodeStatus, network, fmt.Errorf("invalid block height %q: %w", block.Block.Header.Height, err))
	}
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     block.Block.Header.ChainID,
		LatestBlock: height,
		InSync:      !syncing.Syncing,
		Latency:     time.Since(start),
	}, nil
}
