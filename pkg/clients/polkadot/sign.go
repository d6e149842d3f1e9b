package polkadot

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Sign builds the Balances transfer extrinsic and returns it 0x-hex encoded,
// the form the sidecar accepts.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, _ txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.PolkadotChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "polkadot", params.ChainData)
	}
	p, err := networkParams(network, txErrors.OpSign)
	if err != nil {
		return nil, err
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
	from, err := decodeAddress(network, p, txErrors.OpSign, params.Input.From.Address)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	if !bytes.Equal(pub, from) {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}
	dest, err := decodeAddress(network, p, txErrors.OpSign, params.Input.Destination.Address)
	if err != nil {
		return nil, err
	}
	if finalAmount == nil || finalAmount.Sign() < 0 {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("invalid amount %v", finalAmount))
	}

	signed, err := signExtrinsic(p, data, key, dest, finalAmount)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{[]byte(hexutil.Encode(signed))}, nil
}

func signExtrinsic(p chain.PolkadotParams, data txModel.PolkadotChainData, key ed25519.PrivateKey, dest []byte, amount *big.Int) ([]byte, error) {
	call, err := transferCall(p, dest, amount)
	if err != nil {
		return nil, err
	}
	parts, err := partsOf(data)
	if err != nil {
		return nil, err
	}
	payload, err := payloadToSign(call, parts)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	return encodeExtrinsic(pub, ed25519.Sign(key, payload), call, parts)
}

// buildExtrinsic encodes a transfer carrying the given signature bytes.
func buildExtrinsic(p chain.PolkadotParams, data txModel.PolkadotChainData, from, dest []byte, amount *big.Int, signature []byte) ([]byte, error) {
	call, err := transferCall(p, dest, amount)
	if err != nil {
		return nil, err
	}
	parts, err := partsOf(data)
	if err != nil {
		return nil, err
	}
	return encodeExtrinsic(from, signature, call, parts)
}
