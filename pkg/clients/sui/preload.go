package sui

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/Layr-Labs/multichain-tx-go/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoCoins = errors.New("account holds no coins of this type")

type coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

type coinsPage struct {
	Data        []coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type txBytesResult struct {
	TxBytes string `json:"txBytes"`
}

type gasUsed struct {
	ComputationCost string `json:"computationCost"`
	StorageCost     string `json:"storageCost"`
	StorageRebate   string `json:"storageRebate"`
}

// total is computation plus storage minus the rebate, floored at zero.
func (g gasUsed) total() *big.Int {
	out := new(big.Int)
	for _, v := range []string{g.ComputationCost, g.StorageCost} {
		if n, ok := new(big.Int).SetString(v, 10); ok {
			out.Add(out, n)
		}
	}
	if n, ok := new(big.Int).SetString(g.StorageRebate, 10); ok {
		out.Sub(out, n)
	}
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

type effects struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
	GasUsed gasUsed `json:"gasUsed"`
}

type dryRunResult struct {
	Effects effects `json:"effects"`
}

// Preload has the node build the transaction bytes from the account's coins
// and dry-runs them for the fee.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	if err := checkAddress(txErrors.OpPreload, intent.From.Address); err != nil {
		return nil, err
	}

	var (
		txBytes string
		price   *big.Int
	)
	if intent.Type == txModel.TransactionTypeSwap {
		if intent.Swap == nil || len(intent.Swap.Data) == 0 {
			return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, txModel.ErrMissingSwapData)
		}
		txBytes = string(intent.Swap.Data)
		if _, err := base64.StdEncoding.DecodeString(txBytes); err != nil {
			return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, fmt.Errorf("invalid swap transaction: %w", err))
		}
		price = c.gasPrice(ctx, client, network)
	} else {
		txBytes, price, err = c.buildTransaction(ctx, client, intent)
		if err != nil {
			return nil, err
		}
	}

	var dryRun dryRunResult
	if err := client.Call(ctx, &dryRun, "sui_dryRunTransactionBlock", txBytes); err != nil {
		return nil, err
	}
	if dryRun.Effects.Status.Status != "success" {
		return nil, txErrors.Rejected(txErrors.OpPreload, network, dryRun.Effects.Status.Error)
	}
	amount := dryRun.Effects.GasUsed.total()

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		fee, err := txModel.NewFee(priority, txModel.NativeAsset(network), amount)
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
		}
		fees = append(fees, fee.WithResourceLimit(big.NewInt(gasBudget), price))
	}
	c.logger.Sugar().Debugw("Preloaded Sui transaction",
		zap.String("chain", string(network)),
		zap.String("type", string(intent.Type)),
		zap.String("fee", amount.String()),
	)
	return &txModel.SignerParams{
		Input:     intent,
		ChainData: txModel.SuiChainData{MessageBytes: txBytes},
		Fees:      fees,
	}, nil
}

// buildTransaction fetches the coins and gas price concurrently and has the
// node assemble the transaction for the intent.
func (c *Client) buildTransaction(ctx context.Context, client *nodeClient.Client, intent txModel.TransferIntent) (string, *big.Int, error) {
	network := intent.Chain()
	isToken := intent.Type == txModel.TransactionTypeTransfer && !intent.Asset.Id.IsNative()
	if intent.Type.IsStake() && intent.Stake == nil {
		return "", nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, txModel.ErrMissingStakeTarget)
	}
	switch intent.Type {
	case txModel.TransactionTypeTransfer:
		if err := checkAddress(txErrors.OpPreload, intent.Destination.Address); err != nil {
			return "", nil, err
		}
	case txModel.TransactionTypeStakeDelegate:
		if err := checkAddress(txErrors.OpPreload, intent.Stake.ValidatorID); err != nil {
			return "", nil, err
		}
	case txModel.TransactionTypeStakeUndelegate:
		if err := checkAddress(txErrors.OpPreload, intent.Stake.DelegationID); err != nil {
			return "", nil, err
		}
	default:
		return "", nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}

	var (
		gasCoins   []coin
		tokenCoins []coin
		price      *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		gasCoins, err = coins(gctx, client, intent.From.Address, suiCoinType)
		return err
	})
	if isToken {
		g.Go(func() (err error) {
			tokenCoins, err = coins(gctx, client, intent.From.Address, intent.Asset.Id.TokenID)
			return err
		})
	}
	g.Go(func() error {
		price = c.gasPrice(gctx, client, network)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	if len(gasCoins) == 0 || (isToken && len(tokenCoins) == 0) {
		return "", nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, errNoCoins)
	}

	ids := func(cs []coin) []string {
		return util.Map(cs, func(c coin, _ uint64) string { return c.CoinObjectID })
	}
	budget := strconv.Itoa(gasBudget)
	amount := intent.Amount.String()
	from := intent.From.Address

	var (
		result txBytesResult
		err    error
	)
	switch {
	case isToken:
		err = client.Call(ctx, &result, "unsafe_pay", from, ids(tokenCoins), []string{intent.Destination.Address}, []string{amount}, gasCoins[0].CoinObjectID, budget)
	case intent.Type == txModel.TransactionTypeTransfer && intent.UseMaxAmount:
		err = client.Call(ctx, &result, "unsafe_payAllSui", from, ids(gasCoins), intent.Destination.Address, budget)
	case intent.Type == txModel.TransactionTypeTransfer:
		err = client.Call(ctx, &result, "unsafe_paySui", from, ids(gasCoins), []string{intent.Destination.Address}, []string{amount}, budget)
	case intent.Type == txModel.TransactionTypeStakeDelegate:
		err = client.Call(ctx, &result, "unsafe_requestAddStake", from, ids(gasCoins), amount, intent.Stake.ValidatorID, nil, budget)
	case intent.Type == txModel.TransactionTypeStakeUndelegate:
		err = client.Call(ctx, &result, "unsafe_requestWithdrawStake", from, intent.Stake.DelegationID, gasCoins[0].CoinObjectID, budget)
	}
	if err != nil {
		return "", nil, err
	}
	if result.TxBytes == "" {
		return "", nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errors.New("node returned no transaction bytes"))
	}
	return result.TxBytes, price, nil
}

// coins pages through every coin of coinType the owner holds.
func coins(ctx context.Context, client *nodeClient.Client, owner, coinType string) ([]coin, error) {
	var (
		out    []coin
		cursor *string
	)
	for {
		var page coinsPage
		if err := client.Call(ctx, &page, "suix_getCoins", owner, coinType, cursor, nil); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// gasPrice reads the reference gas price, falling back to the default.
func (c *Client) gasPrice(ctx context.Context, client *nodeClient.Client, network chain.Chain) *big.Int {
	var price string
	if err := client.Call(ctx, &price, "suix_getReferenceGasPrice"); err != nil {
		c.logger.Sugar().Warnw("Failed to fetch reference gas price",
			zap.String("chain", string(network)),
			zap.Error(err),
		)
		return big.NewInt(defaultGasPrice)
	}
	if p, ok := new(big.Int).SetString(price, 10); ok {
		return p
	}
	return big.NewInt(defaultGasPrice)
}
