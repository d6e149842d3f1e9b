package ton

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"golang.org/x/sync/errgroup"
)

type sendBocResponse struct {
	Ok     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		Hash string `json:"hash"`
	} `json:"result"`
}

// Broadcast submits the base64 BOC and returns the external message hash.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var resp sendBocResponse
	if err := client.PostJSON(ctx, "/api/v2/sendBocReturnHash", map[string]string{"boc": string(signed)}, &resp); err != nil {
		return "", withCenterError(account.Chain, err)
	}
	if !resp.Ok || resp.Result.Hash == "" {
		return "", txErrors.Rejected(txErrors.OpBroadcast, account.Chain, resp.Error)
	}
	return resp.Result.Hash, nil
}

// withCenterError replaces the raw body of a rejection with toncenter's error text.
func withCenterError(network chain.Chain, err error) error {
	body, ok := nodeClient.ResponseBody(err)
	if !ok || txErrors.KindOf(err) != txErrors.KindRejected {
		return err
	}
	var resp sendBocResponse
	if json.Unmarshal(body, &resp) != nil || resp.Error == "" {
		return err
	}
	return &txErrors.Error{Kind: txErrors.KindRejected, Op: txErrors.OpBroadcast, Chain: network, Message: resp.Error, Err: err}
}

type transactionsResponse struct {
	Transactions []struct {
		Hash        string `json:"hash"`
		TotalFees   string `json:"total_fees"`
		Description struct {
			Aborted   bool `json:"aborted"`
			ComputePh struct {
				Success  bool `json:"success"`
				ExitCode int  `json:"exit_code"`
			} `json:"compute_ph"`
		} `json:"description"`
	} `json:"transactions"`
}

// GetStatus looks up the transaction the external message produced.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var resp transactionsResponse
	path := "/api/v3/transactionsByMessage?" + url.Values{
		"msg_hash":  {req.Hash},
		"direction": {"in"},
		"limit":     {"1"},
	}.Encode()
	if err := client.GetJSON(ctx, path, &resp); err != nil {
		if nodeClient.IsNotFound(err) {
			return txModel.PendingChanges(), nil
		}
		return txModel.TransactionChanges{}, err
	}
	if len(resp.Transactions) == 0 {
		return txModel.PendingChanges(), nil
	}
	tx := resp.Transactions[0]
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed, NewHash: tx.Hash}
	if fee, ok := new(big.Int).SetString(tx.TotalFees, 10); ok {
		changes.Fee = fee
	}
	if tx.Description.Aborted {
		changes.State = txModel.TransactionStateFailed
	}
	return changes, nil
}

type masterchainInfoResponse struct {
	Ok     bool `json:"ok"`
	Result struct {
		Last struct {
			Seqno uint64 `json:"seqno"`
		} `json:"last"`
		Init struct {
			RootHash string `json:"root_hash"`
		} `json:"init"`
	} `json:"result"`
}

type consensusBlockResponse struct {
	Ok     bool `json:"ok"`
	Result struct {
		ConsensusBlock uint64  `json:"consensus_block"`
		Timestamp      float64 `json:"timestamp"`
	} `json:"result"`
}

// GetNodeStatus compares the indexed masterchain head with the consensus block.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, rawURL string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, rawURL, c.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		info      masterchainInfoResponse
		consensus consensusBlockResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.GetJSON(gctx, "/api/v2/getMasterchainInfo", &info)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/api/v2/getConsensusBlock", &consensus)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     info.Result.Init.RootHash,
		LatestBlock: info.Result.Last.Seqno,
		InSync:      info.Ok && info.Result.Last.Seqno >= consensus.Result.ConsensusBlock,
		Latency:     time.Since(start),
	}, nil
}
