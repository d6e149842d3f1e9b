package tron

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"google.golang.org/protobuf/encoding/protowire"
)

// maxBlockAge is how far behind wall clock the head block may be for the node to count as in sync.
const maxBlockAge = time.Minute

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcast submits a hex encoded transaction and returns its id.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var resp broadcastResponse
	err = client.PostJSON(ctx, "/wallet/broadcasthex", map[string]string{"transaction": string(signed)}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Result {
		message := decodeMessage(resp.Message)
		if resp.Code != "" {
			message = strings.TrimSpace(resp.Code + ": " + message)
		}
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, message)
	}
	if resp.TxID != "" {
		return resp.TxID, nil
	}
	return transactionID(account.Chain, signed)
}

// transactionID is the sha256 of the raw_data of a hex encoded transaction.
func transactionID(network chain.Chain, signed []byte) (string, error) {
	tx, err := hex.DecodeString(string(signed))
	if err != nil {
		return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, network, err)
	}
	for len(tx) > 0 {
		num, typ, n := protowire.ConsumeTag(tx)
		if n < 0 {
			break
		}
		tx = tx[n:]
		if num == 1 && typ == protowire.BytesType {
			raw, m := protowire.ConsumeBytes(tx)
			if m < 0 {
				break
			}
			id := sha256.Sum256(raw)
			return hex.EncodeToString(id[:]), nil
		}
		m := protowire.ConsumeFieldValue(num, typ, tx)
		if m < 0 {
			break
		}
		tx = tx[m:]
	}
	return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, network, fmt.Errorf("transaction has no raw data"))
}

type transactionInfoResponse struct {
	ID          string `json:"id"`
	Fee         int64  `json:"fee"`
	BlockNumber int64  `json:"blockNumber"`
	Result      string `json:"result"`
	Receipt     struct {
		Result string `json:"result"`
	} `json:"receipt"`
}

// GetStatus reads the transaction info. Nodes answer {} until the transaction is in a block.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var info transactionInfoResponse
	if err := client.PostJSON(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": req.Hash}, &info); err != nil {
		return txModel.TransactionChanges{}, err
	}
	if info.ID == "" || info.BlockNumber == 0 {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{
		State: txModel.TransactionStateConfirmed,
		Fee:   big.NewInt(info.Fee),
	}
	// receipts of plain transfers carry no result
	if info.Result == "FAILED" || (info.Receipt.Result != "" && info.Receipt.Result != "SUCCESS") {
		changes.State = txModel.TransactionStateReverted
	}
	return changes, nil
}

// GetNodeStatus reads the head block of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var block blockResponse
	if err := client.PostJSON(ctx, "/wallet/getnowblock", struct{}{}, &block); err != nil {
		return nil, err
	}
	latency := time.Since(start)
	if block.BlockID == "" {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpNodeStatus, network, errNoBlock)
	}
	produced := time.UnixMilli(block.BlockHeader.RawData.Timestamp)
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		LatestBlock: uint64(block.BlockHeader.RawData.Number),
		InSync:      time.Since(produced) < maxBlockAge,
		Latency:     latency,
	}, nil
}
