package aptos

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
)

const (
	signedTransactionContentType = "application/x.aptos.signed_transaction+bcs"

	// maxLedgerAge is how old the ledger may be for the node to count as in sync.
	maxLedgerAge = time.Minute
)

type submitResponse struct {
	Hash string `json:"hash"`
}

// apiError is the error body of the node REST API.
type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

type transactionResponse struct {
	Type         string `json:"type"`
	Hash         string `json:"hash"`
	Success      bool   `json:"success"`
	VMStatus     string `json:"vm_status"`
	GasUsed      string `json:"gas_used"`
	GasUnitPrice string `json:"gas_unit_price"`
}

// Broadcast submits the BCS signed transaction and returns its hash.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var resp submitResponse
	if err := client.PostRaw(ctx, "/v1/transactions", signedTransactionContentType, signed, &resp); err != nil {
		return "", withNodeMessage(account.Chain, txErrors.OpBroadcast, err)
	}
	if resp.Hash == "" {
		return transactionHash(signed), nil
	}
	return resp.Hash, nil
}

// withNodeMessage replaces the raw body of a rejection with the node's message.
func withNodeMessage(network chain.Chain, op txErrors.Op, err error) error {
	body, ok := nodeClient.ResponseBody(err)
	if !ok || txErrors.KindOf(err) != txErrors.KindRejected {
		return err
	}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) != nil || apiErr.Message == "" {
		return err
	}
	return &txErrors.Error{Kind: txErrors.KindRejected, Op: op, Chain: network, Message: apiErr.Message, Err: err}
}

// GetStatus looks the transaction up by hash. Unknown and mempool transactions are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var tx transactionResponse
	if err := client.GetJSON(ctx, "/v1/transactions/by_hash/"+req.Hash, &tx); err != nil {
		if nodeClient.IsNotFound(err) {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	if tx.Type == "pending_transaction" {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if !tx.Success {
		changes.State = txModel.TransactionStateFailed
	}
	used, okUsed := new(big.Int).SetString(tx.GasUsed, 10)
	price, okPrice := new(big.Int).SetString(tx.GasUnitPrice, 10)
	if okUsed && okPrice {
		changes.Fee = used.Mul(used, price)
	}
	return changes, nil
}

// GetNodeStatus reads the ledger info of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var ledger ledgerInfoResponse
	if err := client.GetJSON(ctx, "/v1", &ledger); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	height, _ := strconv.ParseUint(ledger.BlockHeight, 10, 64)
	micros, _ := strconv.ParseInt(ledger.LedgerTimestamp, 10, 64)
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     strconv.Itoa(int(ledger.ChainID)),
		LatestBlock: height,
		InSync:      c.now().Sub(time.UnixMicro(micros)) < maxLedgerAge,
		Latency:     latency,
	}, nil
}
