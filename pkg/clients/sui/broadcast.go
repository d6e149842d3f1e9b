package sui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"golang.org/x/sync/errgroup"
)

// maxCheckpointAge is how old the latest checkpoint may be for the node to count as in sync.
const maxCheckpointAge = time.Minute

var errMalformedSigned = errors.New("signed payload is not <tx bytes>_<signature>")

type executeResult struct {
	Digest  string   `json:"digest"`
	Effects *effects `json:"effects"`
}

// Broadcast executes the signed transaction and returns its digest.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	txBytes, signature, ok := splitSigned(signed)
	if !ok {
		return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, account.Chain, errMalformedSigned)
	}
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var result executeResult
	err = client.Call(ctx, &result, "sui_executeTransactionBlock",
		txBytes,
		[]string{signature},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return "", err
	}
	if result.Digest == "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, "empty digest")
	}
	return result.Digest, nil
}

// GetStatus reads the effects of the transaction. Unknown digests are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var result executeResult
	if err := client.Call(ctx, &result, "sui_getTransactionBlock", req.Hash, map[string]bool{"showEffects": true}); err != nil {
		if isNotFound(err) {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	if result.Effects == nil {
		return txModel.PendingChanges(), nil
	}
	changes := txModel.TransactionChanges{
		State: txModel.TransactionStateConfirmed,
		Fee:   result.Effects.GasUsed.total(),
	}
	if result.Effects.Status.Status != "success" {
		changes.State = txModel.TransactionStateFailed
	}
	return changes, nil
}

func isNotFound(err error) bool {
	var typed *txErrors.Error
	return errors.As(err, &typed) && typed.Kind == txErrors.KindRejected &&
		strings.Contains(strings.ToLower(typed.Error()), "could not find")
}

type checkpoint struct {
	SequenceNumber string `json:"sequenceNumber"`
	TimestampMs    string `json:"timestampMs"`
}

// GetNodeStatus reads the chain identifier and the latest checkpoint of url,
// or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		chainID  string
		sequence string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Call(gctx, &chainID, "sui_getChainIdentifier")
	})
	g.Go(func() error {
		return client.Call(gctx, &sequence, "sui_getLatestCheckpointSequenceNumber")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var latest checkpoint
	if err := client.Call(ctx, &latest, "sui_getCheckpoint", sequence); err != nil {
		return nil, err
	}
	height, _ := strconv.ParseUint(sequence, 10, 64)
	produced, _ := strconv.ParseInt(latest.TimestampMs, 10, 64)
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     chainID,
		LatestBlock: height,
		InSync:      time.Since(time.UnixMilli(produced)) < maxCheckpointAge,
		Latency:     latency,
	}, nil
}
