package solana

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"golang.org/x/sync/errgroup"
)

// Broadcast submits the base64 transaction and returns its signature.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var signature string
	err = client.Call(ctx, &signature, "sendTransaction", string(signed), map[string]any{
		"encoding":            "base64",
		"skipPreflight":       false,
		"preflightCommitment": "confirmed",
	})
	if err != nil {
		return "", err
	}
	if signature == "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, "empty signature")
	}
	return signature, nil
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Value []*signatureStatus `json:"value"`
}

// GetStatus reads the signature status. Unknown signatures and processed-only ones are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var result signatureStatusesResult
	err = client.Call(ctx, &result, "getSignatureStatuses", []string{req.Hash}, map[string]bool{"searchTransactionHistory": true})
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return txModel.PendingChanges(), nil
	}
	status := result.Value[0]
	if len(status.Err) > 0 && string(status.Err) != "null" {
		return txModel.TransactionChanges{State: txModel.TransactionStateFailed}, nil
	}
	switch status.ConfirmationStatus {
	case "confirmed", "finalized":
		return txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}, nil
	}
	return txModel.PendingChanges(), nil
}

// GetNodeStatus reads the slot, health and genesis hash of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		slot    uint64
		health  string
		genesis string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Call(gctx, &slot, "getSlot")
	})
	g.Go(func() error {
		// an unhealthy node answers with an rpc error rather than a status string
		if err := client.Call(gctx, &health, "getHealth"); err != nil && txErrors.KindOf(err) != txErrors.KindRejected {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return client.Call(gctx, &genesis, "getGenesisHash")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     genesis,
		LatestBlock: slot,
		InSync:      health == "ok",
		Latency:     time.Since(start),
	}, nil
}
