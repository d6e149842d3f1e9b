package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoJettonWallet = errors.New("sender has no jetton wallet for this token")

type walletInformationResponse struct {
	Ok     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		Wallet       bool   `json:"wallet"`
		Balance      string `json:"balance"`
		AccountState string `json:"account_state"`
		Seqno        uint32 `json:"seqno"`
	} `json:"result"`
}

type jettonWalletsResponse struct {
	JettonWallets []struct {
		Address string `json:"address"`
		Owner   string `json:"owner"`
		Balance string `json:"balance"`
	} `json:"jetton_wallets"`
}

// Preload fetches the wallet seqno and, for jettons, both jetton wallets concurrently.
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
	if _, err := parseAddress(txErrors.OpPreload, intent.From.Address); err != nil {
		return nil, err
	}
	isJetton := intent.Type == txModel.TransactionTypeTransfer && !intent.Asset.Id.IsNative()
	if intent.Type == txModel.TransactionTypeTransfer {
		if _, err := parseAddress(txErrors.OpPreload, intent.Destination.Address); err != nil {
			return nil, err
		}
	}

	var (
		info      walletInformationResponse
		sender    jettonWalletsResponse
		recipient jettonWalletsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.GetJSON(gctx, "/api/v2/getWalletInformation?"+url.Values{"address": {intent.From.Address}}.Encode(), &info)
	})
	if isJetton {
		g.Go(func() error {
			return client.GetJSON(gctx, jettonWalletsPath(intent.From.Address, intent.Asset.Id.TokenID), &sender)
		})
		g.Go(func() error {
			return client.GetJSON(gctx, jettonWalletsPath(intent.Destination.Address, intent.Asset.Id.TokenID), &recipient)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !info.Ok {
		return nil, txErrors.Rejected(txErrors.OpPreload, network, info.Error)
	}

	data := txModel.TonChainData{
		Sequence: info.Result.Seqno,
		ExpireAt: uint32(c.now().Unix()) + expireWindow,
	}
	amount := big.NewInt(networkFee)
	createWallet := false
	if isJetton {
		if len(sender.JettonWallets) == 0 {
			return nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, errNoJettonWallet)
		}
		data.JettonAddress = sender.JettonWallets[0].Address
		amount.Add(amount, big.NewInt(jettonTransferValue))
		createWallet = len(recipient.JettonWallets) == 0
	}

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		fee, err := txModel.NewFee(priority, txModel.NativeAsset(network), amount)
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
		}
		if createWallet {
			fee = fee.WithOption(txModel.FeeOptionTokenAccountCreation, big.NewInt(jettonWalletCreation))
		}
		fees = append(fees, fee)
	}

	c.logger.Sugar().Debugw("Preloaded TON transaction",
		zap.String("chain", string(network)),
		zap.Uint32("seqno", data.Sequence),
		zap.String("state", info.Result.AccountState),
		zap.Bool("createJettonWallet", createWallet),
	)
	return &txModel.SignerParams{Input: intent, ChainData: data, Fees: fees}, nil
}

func jettonWalletsPath(owner, master string) string {
	return "/api/v3/jetton/wallets?" + url.Values{
		"owner_address":  {owner},
		"jetton_address": {master},
		"limit":          {"1"},
	}.Encode()
}

