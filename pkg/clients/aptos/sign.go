package aptos

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

var frameworkAddress = accountAddress{31: 0x01}

// Sign builds the BCS RawTransaction and returns the BCS SignedTransaction.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.AptosChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "aptos", params.ChainData)
	}
	if fee.Gas == nil || fee.Gas.Limit == nil || fee.Gas.MaxGasPrice == nil ||
		!fee.Gas.Limit.IsUint64() || !fee.Gas.MaxGasPrice.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errors.New("fee has no gas limit and price"))
	}
	var key ed25519.PrivateKey
	switch len(privateKey) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(privateKey)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(privateKey)
	default:
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize))
	}
	pub := key.Public().(ed25519.PublicKey)
	sender, err := parseAddress(txErrors.OpSign, params.Input.From.Address)
	if err != nil {
		return nil, err
	}
	if addressOf(pub) != sender {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}

	payload, err := transactionPayload(params.Input, finalAmount)
	if err != nil {
		return nil, err
	}
	raw := &rawTransaction{
		Sender:         sender,
		SequenceNumber: data.Sequence,
		Payload:        payload,
		MaxGasAmount:   fee.Gas.Limit.Uint64(),
		GasUnitPrice:   fee.Gas.MaxGasPrice.Uint64(),
		ExpirationSecs: data.ExpireAt,
		ChainID:        data.ChainID,
	}
	message, err := raw.signingMessage()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	signed, err := bcs.Serialize(&signedTransaction{
		Raw:       raw,
		PublicKey: pub,
		Signature: ed25519.Sign(key, message),
	})
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{signed}, nil
}

// transactionPayload encodes the entry function call of the intent. Swaps carry
// the provider's encoded payload unchanged.
func transactionPayload(intent txModel.TransferIntent, amount *big.Int) ([]byte, error) {
	network := intent.Chain()
	if intent.Type == txModel.TransactionTypeSwap {
		if intent.Swap == nil || len(intent.Swap.Data) == 0 {
			return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingSwapData)
		}
		return intent.Swap.Data, nil
	}
	if intent.Type != txModel.TransactionTypeTransfer {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpSign, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	if amount == nil || amount.Sign() < 0 || !amount.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("amount %v does not fit in u64", amount))
	}
	to, err := parseAddress(txErrors.OpSign, intent.Destination.Address)
	if err != nil {
		return nil, err
	}
	value, err := u64Arg(amount.Uint64())
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	call := &entryFunction{
		Module:   frameworkAddress,
		Name:     accountModule,
		Function: transferFunction,
		Args:     [][]byte{to[:], value},
	}
	if !intent.Asset.Id.IsNative() {
		coin, err := parseStructTag(txErrors.OpSign, intent.Asset.Id.TokenID)
		if err != nil {
			return nil, err
		}
		call.Function = transferCoinsFunction
		call.TypeArgs = []structTag{coin}
	}
	payload, err := bcs.Serialize(call)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return payload, nil
}
