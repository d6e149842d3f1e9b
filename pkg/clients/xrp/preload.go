package xrp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type accountInfoResult struct {
	AccountData struct {
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}

type feeResult struct {
	Drops struct {
		BaseFee       string `json:"base_fee"`
		MedianFee     string `json:"median_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

// Preload reads the sender's sequence and the current fee levels concurrently.
// The fee levels are the base fee, the open ledger fee and the median fee of
// the last ledgers.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	if err := intent.Validate(); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, err)
	}
	// builds the payment once to reject what Sign would reject
	if _, err := payment(intent, txModel.XrpChainData{}, intent.Amount, new(big.Int), txErrors.OpPreload); err != nil {
		return nil, err
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}

	var (
		account accountInfoResult
		fee     feeResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return call(gctx, client, network, txErrors.OpPreload, "account_info", map[string]any{
			"account":      intent.From.Address,
			"ledger_index": "current",
		}, &account)
	})
	g.Go(func() error {
		return call(gctx, client, network, txErrors.OpPreload, "fee", map[string]any{}, &fee)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	levels := make(map[txModel.FeePriority]*big.Int, len(txModel.FeePriorities))
	base, okBase := new(big.Int).SetString(fee.Drops.BaseFee, 10)
	open, okOpen := new(big.Int).SetString(fee.Drops.OpenLedgerFee, 10)
	median, okMedian := new(big.Int).SetString(fee.Drops.MedianFee, 10)
	if !okBase || !okOpen || !okMedian {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, fmt.Errorf("invalid fee levels %+v", fee.Drops))
	}
	levels[txModel.FeePrioritySlow] = base
	levels[txModel.FeePriorityNormal] = maxInt(base, open)
	levels[txModel.FeePriorityFast] = maxInt(open, median)

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		f, err := txModel.NewFee(priority, txModel.NativeAsset(network), levels[priority])
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
		}
		fees = append(fees, f)
	}

	data := txModel.XrpChainData{Sequence: account.AccountData.Sequence, LedgerIndex: account.LedgerCurrentIndex}
	c.logger.Sugar().Debugw("Preloaded XRP transaction",
		zap.String("chain", string(network)),
		zap.Uint32("sequence", data.Sequence),
		zap.Uint32("ledger", data.LedgerIndex),
	)
	return &txModel.SignerParams{Input: intent, ChainData: data, Fees: fees}, nil
}

func maxInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
