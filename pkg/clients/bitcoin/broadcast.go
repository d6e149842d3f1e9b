package bitcoin

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
)

// blockbookResult is the envelope of sendtx; error is a string or {"message": ...}
// depending on the Blockbook version.
type blockbookResult struct {
	Result string          `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func (r blockbookResult) errorMessage() string {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(r.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(r.Error, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(r.Error)
}

// Broadcast posts the hex payload unchanged and returns the txid.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}

	var resp blockbookResult
	err = client.PostRaw(ctx, "/api/v2/sendtx/", "text/plain", signed, &resp)
	if err != nil {
		if body, ok := nodeClient.ResponseBody(err); ok && txErrors.KindOf(err) == txErrors.KindRejected {
			var rejected blockbookResult
			if json.Unmarshal(body, &rejected) == nil && rejected.errorMessage() != "" {
				return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, rejected.errorMessage())
			}
		}
		return "", err
	}
	if msg := resp.errorMessage(); msg != "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, msg)
	}
	if resp.Result == "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, "empty result")
	}
	return resp.Result, nil
}

type blockbookTx struct {
	TxID          string `json:"txid"`
	BlockHeight   int64  `json:"blockHeight"`
	Confirmations int64  `json:"confirmations"`
	Fees          string `json:"fees"`
}

// GetStatus looks the transaction up by its txid. Unknown transactions are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var tx blockbookTx
	if err := client.GetJSON(ctx, "/api/v2/tx/"+req.Hash, &tx); err != nil {
		if isTxNotFound(err) {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	if tx.Confirmations <= 0 {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if fee, ok := new(big.Int).SetString(tx.Fees, 10); ok {
		changes.Fee = fee
	}
	return changes, nil
}

// isTxNotFound matches 404s and the 400 "not found" answer Blockbook gives for unknown txids.
func isTxNotFound(err error) bool {
	if nodeClient.IsNotFound(err) {
		return true
	}
	var typed *txErrors.Error
	return errors.As(err, &typed) && typed.Kind == txErrors.KindRejected && strings.Contains(strings.ToLower(typed.Message), "not found")
}

type blockbookStatus struct {
	Blockbook struct {
		InSync     bool   `json:"inSync"`
		BestHeight uint64 `json:"bestHeight"`
	} `json:"blockbook"`
	Backend struct {
		Chain string `json:"chain"`
	} `json:"backend"`
}

// GetNodeStatus reads the Blockbook status page of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var status blockbookStatus
	if err := client.GetJSON(ctx, "/api/", &status); err != nil {
		return nil, err
	}
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     status.Backend.Chain,
		LatestBlock: status.Blockbook.BestHeight,
		InSync:      status.Blockbook.InSync,
		Latency:     time.Since(start),
	}, nil
}
