package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Sign builds the wallet v4r2 external message carrying one internal message
// and returns its BOC, base64 encoded. The wallet is deployed along with the
// first message.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.TonChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "ton", params.ChainData)
	}
	key, err := signingKey(privateKey)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	pub := key.Public().(ed25519.PublicKey)
	walletAddr, err := wallet.AddressFromPubKey(pub, walletVersion, wallet.DefaultSubwallet)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	from, err := parseAddress(txErrors.OpSign, params.Input.From.Address)
	if err != nil {
		return nil, err
	}
	if !sameAccount(from, walletAddr) {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}
	if finalAmount == nil || finalAmount.Sign() < 0 {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("amount %v out of range", finalAmount))
	}

	message, mode, err := internalMessage(network, params.Input, data, from, finalAmount, fee)
	if err != nil {
		return nil, err
	}
	msgCell, err := tlb.ToCell(message)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	payload := cell.BeginCell().
		MustStoreUInt(uint64(wallet.DefaultSubwallet), 32).
		MustStoreUInt(uint64(data.ExpireAt), 32).
		MustStoreUInt(uint64(data.Sequence), 32).
		// simple send
		MustStoreUInt(0, 8).
		MustStoreUInt(uint64(mode), 8).
		MustStoreRef(msgCell).
		EndCell()
	body := cell.BeginCell().
		MustStoreSlice(payload.Sign(key), 512).
		MustStoreBuilder(payload.ToBuilder()).
		EndCell()

	ext := &tlb.ExternalMessage{DstAddr: walletAddr, Body: body}
	if data.Sequence == 0 {
		ext.StateInit, err = wallet.GetStateInit(pub, walletVersion, wallet.DefaultSubwallet)
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
		}
	}
	extCell, err := tlb.ToCell(ext)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{[]byte(base64.StdEncoding.EncodeToString(extCell.ToBOCWithFlags(false)))}, nil
}

// signingKey accepts a 32-byte ed25519 seed or a 64-byte expanded key.
func signingKey(privateKey []byte) (ed25519.PrivateKey, error) {
	switch len(privateKey) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(privateKey), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(append([]byte(nil), privateKey...)), nil
	}
	return nil, fmt.Errorf("private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
}

func internalMessage(network chain.Chain, intent txModel.TransferIntent, data txModel.TonChainData, from *address.Address, amount *big.Int, fee txModel.Fee) (*tlb.InternalMessage, int, error) {
	switch {
	case intent.Type == txModel.TransactionTypeSwap:
		return swapMessage(network, intent, amount)
	case intent.Type == txModel.TransactionTypeTransfer && intent.Asset.Id.IsNative():
		to, err := parseAddress(txErrors.OpSign, intent.Destination.Address)
		if err != nil {
			return nil, 0, err
		}
		body, err := comment(network, intent.Memo)
		if err != nil {
			return nil, 0, err
		}
		mode := defaultMode
		if intent.UseMaxAmount {
			mode = maxMode
		}
		return &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      false,
			DstAddr:     to,
			Amount:      tlb.FromNanoTON(amount),
			Body:        body,
		}, mode, nil
	case intent.Type == txModel.TransactionTypeTransfer:
		return jettonMessage(network, intent, data, from, amount, fee)
	}
	return nil, 0, txErrors.New(txErrors.KindUnsupported, txErrors.OpSign, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
}

// jettonMessage sends the transfer to the sender's jetton wallet, carrying
// enough value for the transfer and, when needed, the recipient wallet deployment.
func jettonMessage(network chain.Chain, intent txModel.TransferIntent, data txModel.TonChainData, from *address.Address, amount *big.Int, fee txModel.Fee) (*tlb.InternalMessage, int, error) {
	if data.JettonAddress == "" {
		return nil, 0, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, errNoJettonWallet)
	}
	jettonWallet, err := parseAddress(txErrors.OpSign, data.JettonAddress)
	if err != nil {
		return nil, 0, err
	}
	to, err := parseAddress(txErrors.OpSign, intent.Destination.Address)
	if err != nil {
		return nil, 0, err
	}
	forward, err := comment(network, intent.Memo)
	if err != nil {
		return nil, 0, err
	}
	body := cell.BeginCell().
		MustStoreUInt(jettonTransferOp, 32).
		MustStoreUInt(uint64(data.ExpireAt), 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(to).
		MustStoreAddr(from).
		// no custom payload
		MustStoreBoolBit(false).
		MustStoreBigCoins(big.NewInt(1)).
		MustStoreMaybeRef(forward).
		EndCell()

	value := new(big.Int).Add(big.NewInt(jettonTransferValue), fee.Option(txModel.FeeOptionTokenAccountCreation))
	return &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      true,
		DstAddr:     jettonWallet,
		Amount:      tlb.FromNanoTON(value),
		Body:        body,
	}, defaultMode, nil
}

// swapMessage forwards the provider payload, a base64 BOC, to the router.
func swapMessage(network chain.Chain, intent txModel.TransferIntent, amount *big.Int) (*tlb.InternalMessage, int, error) {
	if intent.Swap == nil || len(intent.Swap.Data) == 0 {
		return nil, 0, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingSwapData)
	}
	router, err := parseAddress(txErrors.OpSign, intent.Swap.To)
	if err != nil {
		return nil, 0, err
	}
	raw, err := base64.StdEncoding.DecodeString(string(intent.Swap.Data))
	if err != nil {
		return nil, 0, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("invalid swap payload: %w", err))
	}
	payload, err := cell.FromBOC(raw)
	if err != nil {
		return nil, 0, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("invalid swap payload: %w", err))
	}
	value := amount
	if intent.Swap.Value != nil {
		value = intent.Swap.Value
	}
	return &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      true,
		DstAddr:     router,
		Amount:      tlb.FromNanoTON(value),
		Body:        payload,
	}, defaultMode, nil
}

// comment returns the text comment body, nil for an empty memo.
func comment(network chain.Chain, memo string) (*cell.Cell, error) {
	if memo == "" {
		return nil, nil
	}
	body, err := wallet.CreateCommentCell(memo)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, err)
	}
	return body, nil
}
