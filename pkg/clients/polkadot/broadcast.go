package polkadot

import (
	"context"
	"encoding/json"
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
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"
)

const feePaidEvent = "TransactionFeePaid"

type submitResponse struct {
	Hash string `json:"hash"`
}

// sidecarError is the error body of the sidecar, cause carries the node's reason.
type sidecarError struct {
	Error string `json:"error"`
	Cause string `json:"cause"`
}

type headerResponse struct {
	Number string `json:"number"`
}

type eventResponse struct {
	Method struct {
		Pallet string `json:"pallet"`
		Method string `json:"method"`
	} `json:"method"`
	Data []json.RawMessage `json:"data"`
}

type extrinsicResponse struct {
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
	Info    struct {
		PartialFee string `json:"partialFee"`
	} `json:"info"`
	Events []eventResponse `json:"events"`
}

type blockResponse struct {
	Number     string              `json:"number"`
	Hash       string              `json:"hash"`
	Extrinsics []extrinsicResponse `json:"extrinsics"`
}

type networkResponse struct {
	IsSyncing bool `json:"isSyncing"`
}

// Broadcast submits the hex encoded extrinsic and returns its hash.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.NodeClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	var resp submitResponse
	if err := client.PostJSON(ctx, "/transaction", txRequest{Tx: string(signed)}, &resp); err != nil {
		return "", withNodeMessage(account.Chain, txErrors.OpBroadcast, err)
	}
	if resp.Hash != "" {
		return resp.Hash, nil
	}
	raw, err := hexutil.Decode(string(signed))
	if err != nil {
		return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, account.Chain, err)
	}
	return extrinsicHash(raw), nil
}

// withNodeMessage replaces the raw body of a rejection with the node's reason.
func withNodeMessage(network chain.Chain, op txErrors.Op, err error) error {
	body, ok := nodeClient.ResponseBody(err)
	if !ok || txErrors.KindOf(err) != txErrors.KindRejected {
		return err
	}
	var sidecarErr sidecarError
	if json.Unmarshal(body, &sidecarErr) != nil {
		return err
	}
	msg := sidecarErr.Cause
	if msg == "" {
		msg = sidecarErr.Error
	}
	if msg == "" {
		return err
	}
	return &txErrors.Error{Kind: txErrors.KindRejected, Op: op, Chain: network, Message: msg, Err: err}
}

// GetStatus searches the blocks from req.Block, or the last statusWindow blocks,
// up to the head for the extrinsic. Extrinsics not found yet are pending.
func (c *Client) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	client, err := chainManager.NodeClient(c.cm, req.Chain)
	if err != nil {
		return txModel.TransactionChanges{}, err
	}
	var head headerResponse
	if err := client.GetJSON(ctx, "/blocks/head/header", &head); err != nil {
		return txModel.TransactionChanges{}, err
	}
	latest, err := strconv.ParseUint(head.Number, 10, 64)
	if err != nil {
		return txModel.TransactionChanges{}, txErrors.New(txErrors.KindTransient, txErrors.OpStatus, req.Chain, fmt.Errorf("invalid head number %q", head.Number))
	}

	from := latest + 1 - min(latest+1, statusWindow)
	if req.Block != "" {
		n, err := strconv.ParseUint(req.Block, 10, 64)
		if err != nil {
			return txModel.TransactionChanges{}, txErrors.New(txErrors.KindInvalidInput, txErrors.OpStatus, req.Chain, fmt.Errorf("invalid block %q", req.Block))
		}
		from = n
	}

	for n := from; n <= latest; n++ {
		var block blockResponse
		if err := client.GetJSON(ctx, "/blocks/"+strconv.FormatUint(n, 10), &block); err != nil {
			if nodeClient.IsNotFound(err) {
				break
			}
			return txModel.TransactionChanges{}, err
		}
		for _, ext := range block.Extrinsics {
			if strings.EqualFold(ext.Hash, req.Hash) {
				return changesOf(ext), nil
			}
		}
	}
	return txModel.PendingChanges(), nil
}

func changesOf(ext extrinsicResponse) txModel.TransactionChanges {
	changes := txModel.TransactionChanges{State: txModel.TransactionStateConfirmed}
	if !ext.Success {
		changes.State = txModel.TransactionStateFailed
	}
	if fee, ok := paidFee(ext.Events); ok {
		changes.Fee = fee
	} else if fee, ok := new(big.Int).SetString(ext.Info.PartialFee, 10); ok {
		changes.Fee = fee
	}
	return changes
}

// paidFee reads the actual fee from TransactionFeePaid(who, actual_fee, tip).
func paidFee(events []eventResponse) (*big.Int, bool) {
	for _, ev := range events {
		if ev.Method.Method != feePaidEvent || len(ev.Data) < 2 {
			continue
		}
		var actual string
		if json.Unmarshal(ev.Data[1], &actual) != nil {
			continue
		}
		if fee, ok := new(big.Int).SetString(actual, 10); ok {
			return fee, true
		}
	}
	return nil, false
}

// GetNodeStatus reads the head of url, or of the configured node when url is empty.
func (c *Client) GetNodeStatus(ctx context.Context, network chain.Chain, url string) (*txModel.NodeStatus, error) {
	client, err := chainManager.NodeClientAt(c.cm, network, url, c.logger)
	if err != nil {
		return nil, err
	}
	var (
		head     headerResponse
		health   networkResponse
		material materialResponse
		latency  time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		defer func() { latency = time.Since(start) }()
		return client.GetJSON(gctx, "/blocks/head/header", &head)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/node/network", &health)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/transaction/material?noMeta=true", &material)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	height, _ := strconv.ParseUint(head.Number, 10, 64)
	return &txModel.NodeStatus{
		Chain:       network,
		URL:         client.BaseURL(),
		ChainID:     material.ChainName,
		LatestBlock: height,
		InSync:      !health.IsSyncing,
		Latency:     latency,
	}, nil
}
