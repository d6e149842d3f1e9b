package xrp

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
)

const (
	resultSuccess = "tesSUCCESS"
	resultQueued  = "terQUEUED"
)

type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

type txResult struct {
	Hash      string `json:"hash"`
	Fee       string `json:"Fee"`
	Validated bool   `json:"validated"`
	Meta      struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

type serverInfoResult struct {
	Info struct {
		ServerState     string `json:"server_state"`
		NetworkID       *int   `json:"network_id"`
		ValidatedLedger struct {
			Seq uint64 `json:"seq"`
		} `json:"validated_ledger"`
	} `json:"info"`
}

// accepted reports whether the ledger kept the transaction. tec results are
// included and charge the fee although the payment fails.
func accepted(result string) bool {
	return result == resultSuccess || result == resultQueued || strings.HasPrefix(result, "tec")
}

// Broadcast submits the hex blob and returns the transaction hash.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	blob := string(signed)
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, account.Chain, err)
	}
	var resp submitResult
	if err := call(ctx, client, account.Chain, txErrors.OpBroadcast, "submit", map[string]any{"tx_blob": blob}, &resp); err != nil {
		return "", err
	}
	if !accepted(resp.EngineResult) {
		msg := resp.EngineResultMessage
		if msg == "" {
			msg = resp.EngineResult
		}
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, msg)
	}
	if resp.TxJSON.Hash != "" {
		return resp.TxJSON.Hash, nil
	}
	return transactionHash(raw), nil
}

// GetStatus looks the transaction up by hash. Unknown and unvalidated
// transactions are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var tx txResult
	if err := call(ctx, client, req.Chain, txErrors.OpStatus, "tx", map[string]any{"transaction": req.Hash, "binary": false}, &tx); err != nil {
		var rerr *rpcError
		if errors.As(err, &rerr) && rerr.Code == codeTxnNotFound {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	if !tx.Validated {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if tx.Meta.TransactionResult != resultSuccess {
		changes.State = txModel.TransactionStateFailed
	}
	if fee, ok := new(big.Int).SetString(tx.Fee, 10); ok {
		changes.Fee = fee
	}
	return changes, nil
}

// GetNodeStatus reads server_info of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var info serverInfoResult
	if err := call(ctx, client, network, txErrors.OpNodeStatus, "server_info", map[string]any{}, &info); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	chainID := "0"
	if info.Info.NetworkID != nil {
		chainID = strconv.Itoa(*info.Info.NetworkID)
	}
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     chainID,
		LatestBlock: info.Info.ValidatedLedger.Seq,
		InSync:      inSync(info.Info.ServerState),
		Latency:     latency,
	}, nil
}

func inSync(state string) bool {
	switch state {
	case "full", "proposing", "validating":
		return true
	}
	return false
}
