package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/Layr-Labs/multichain-tx-go/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoSenderTokenAccount = errors.New("sender has no token account for this mint")

type blockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

type prioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Owner string `json:"owner"`
		} `json:"account"`
	} `json:"value"`
}

// unitPriceMultipliers scale the mean priority fee for Slow, Normal and Fast, in percent.
var unitPriceMultipliers = []int64{50, 100, 200}

// Preload fetches the latest blockhash and the recent priority fees
// concurrently, plus both token accounts for SPL transfers.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	switch intent.Type {
	case txModel.TransactionTypeTransfer, txModel.TransactionTypeSwap:
	default:
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	if _, err := parseKey(txErrors.OpPreload, intent.From.Address); err != nil {
		return nil, err
	}
	isToken := intent.Type == txModel.TransactionTypeTransfer && !intent.Asset.Id.IsNative()
	if isToken {
		if _, err := parseKey(txErrors.OpPreload, intent.Asset.Id.TokenID); err != nil {
			return nil, err
		}
	}

	var (
		blockhash blockhashResult
		fees      []prioritizationFee
		sender    tokenAccountsResult
		recipient tokenAccountsResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Call(gctx, &blockhash, "getLatestBlockhash", map[string]string{"commitment": "finalized"})
	})
	g.Go(func() error {
		return client.Call(gctx, &fees, "getRecentPrioritizationFees")
	})
	if isToken {
		mint := map[string]string{"mint": intent.Asset.Id.TokenID}
		encoding := map[string]string{"encoding": "jsonParsed"}
		g.Go(func() error {
			return client.Call(gctx, &sender, "getTokenAccountsByOwner", intent.From.Address, mint, encoding)
		})
		g.Go(func() error {
			return client.Call(gctx, &recipient, "getTokenAccountsByOwner", intent.Destination.Address, mint, encoding)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if blockhash.Value.Blockhash == "" {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errors.New("node returned no blockhash"))
	}

	data := txModel.SolanaChainData{Blockhash: blockhash.Value.Blockhash}
	if isToken {
		if len(sender.Value) == 0 {
			return nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, errNoSenderTokenAccount)
		}
		data.SenderTokenAddress = sender.Value[0].Pubkey
		data.TokenProgram = sender.Value[0].Account.Owner
		if len(recipient.Value) > 0 {
			data.RecipientTokenAddress = recipient.Value[0].Pubkey
		}
	}

	minPrice := int64(minNativeUnitPrice)
	if isToken {
		minPrice = minTokenUnitPrice
	}
	createAccount := isToken && data.RecipientTokenAddress == ""
	params := &txModel.SignerParams{
		Input:     intent,
		ChainData: data,
		Fees:      priorityFees(network, fees, minPrice, createAccount),
	}
	c.logger.Sugar().Debugw("Preloaded Solana transaction",
		zap.String("chain", string(network)),
		zap.String("blockhash", data.Blockhash),
		zap.Bool("createTokenAccount", createAccount),
	)
	return params, nil
}

// priorityFees builds one fee per priority from the mean recent priority fee.
// The amount is the base fee plus limit × unit price, the price being in micro-lamports.
func priorityFees(network chain.Chain, recent []prioritizationFee, minPrice int64, createAccount bool) []txModel.Fee {
	mean := util.MeanBig(util.Map(recent, func(f prioritizationFee, _ uint64) *big.Int {
		return new(big.Int).SetUint64(f.PrioritizationFee)
	}))
	limit := big.NewInt(computeUnitLimit)
	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for i, priority := range txModel.FeePriorities {
		price := new(big.Int).Mul(mean, big.NewInt(unitPriceMultipliers[i]))
		price.Div(price, big.NewInt(100))
		price = util.MaxBig(price, big.NewInt(minPrice))

		amount := new(big.Int).Mul(limit, price)
		amount.Div(amount, big.NewInt(1_000_000))
		amount.Add(amount, big.NewInt(baseFee))

		// amount is at least the base fee, so NewFee cannot fail
		fee, _ := txModel.NewFee(priority, txModel.NativeAsset(network), amount)
		fee = fee.WithResourceLimit(limit, price)
		if createAccount {
			fee = fee.WithOption(txModel.FeeOptionTokenAccountCreation, big.NewInt(tokenAccountRent))
		}
		fees = append(fees, fee)
	}
	return fees
}
