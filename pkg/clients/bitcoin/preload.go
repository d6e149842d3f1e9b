package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/Layr-Labs/multichain-tx-go/pkg/util"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoUtxos = errors.New("no spendable outputs")

type blockbookUtxo struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         string `json:"value"`
	Confirmations int64  `json:"confirmations"`
}

type estimateFeeResponse struct {
	Result string `json:"result"`
}

// Preload fetches the spendable outputs of the source address and one fee rate
// per priority concurrently. Swaps are sized with their OP_RETURN memo output.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	params, ok := chain.Utxo(network)
	if !ok {
		return nil, txErrors.Unsupported(txErrors.OpPreload, network)
	}
	if intent.Type != txModel.TransactionTypeTransfer && intent.Type != txModel.TransactionTypeSwap {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	memo, err := memoScript(network, txErrors.OpPreload, intent)
	if err != nil {
		return nil, err
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	from, err := decodeAddress(network, txErrors.OpPreload, intent.From.Address)
	if err != nil {
		return nil, err
	}

	var (
		raw   []blockbookUtxo
		rates = make([]int64, len(txModel.FeePriorities))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.GetJSON(gctx, "/api/v2/utxo/"+intent.From.Address, &raw)
	})
	for i, priority := range txModel.FeePriorities {
		blocks := targetBlocks(params, priority)
		g.Go(func() error {
			var resp estimateFeeResponse
			if err := client.GetJSON(gctx, fmt.Sprintf("/api/v2/estimatefee/%d", blocks), &resp); err != nil {
				return err
			}
			rates[i] = byteFeeRate(resp.Result, params.MinByteFee)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	utxos := make([]txModel.Utxo, 0, len(raw))
	for _, u := range raw {
		value, err := strconv.ParseInt(u.Value, 10, 64)
		if err != nil {
			return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, fmt.Errorf("invalid utxo value %q: %w", u.Value, err))
		}
		utxos = append(utxos, txModel.Utxo{TxID: u.TxID, Vout: u.Vout, Value: value})
	}
	utxos = util.Filter(utxos, func(u txModel.Utxo) bool { return u.Value > 0 })
	if len(utxos) == 0 {
		return nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, errNoUtxos)
	}

	amount := int64(0)
	if intent.Amount != nil && intent.Amount.IsInt64() {
		amount = intent.Amount.Int64()
	}
	fees := make([]txModel.Fee, 0, len(rates))
	for i, priority := range txModel.FeePriorities {
		sel := selectForRate(utxos, from.segwit, amount, rates[i], outputSize(memo), intent.UseMaxAmount)
		fee, err := txModel.NewGasFee(priority, txModel.NativeAsset(network), big.NewInt(sel.vsize), big.NewInt(rates[i]), nil)
		if err != nil {
			return nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, err)
		}
		fees = append(fees, fee)
	}

	c.logger.Sugar().Debugw("Preloaded UTXO transaction",
		zap.String("chain", string(network)),
		zap.Int("utxos", len(utxos)),
	)
	return &txModel.SignerParams{
		Input:     intent,
		ChainData: txModel.UtxoChainData{Utxos: utxos},
		Fees:      fees,
	}, nil
}

func targetBlocks(p chain.UtxoParams, priority txModel.FeePriority) int {
	switch priority {
	case txModel.FeePriorityFast:
		return p.FastBlocks
	case txModel.FeePrioritySlow:
		return p.SlowBlocks
	}
	return p.NormalBlocks
}

// byteFeeRate converts a coin-per-kilobyte estimate into satoshi per virtual
// byte, rounded up and floored at min. Unparseable or negative estimates
// (Blockbook reports -1 when it has no data) yield min.
func byteFeeRate(perKB string, min int64) int64 {
	value, err := decimal.NewFromString(perKB)
	if err != nil || value.Sign() <= 0 {
		return min
	}
	rate := value.Shift(8).Div(decimal.NewFromInt(1000)).Ceil().IntPart()
	if rate < min {
		return min
	}
	return rate
}
