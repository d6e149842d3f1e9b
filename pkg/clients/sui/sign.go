package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"golang.org/x/crypto/blake2b"
)

// Sign signs the node-built transaction bytes and returns
// "<tx bytes base64>_<serialized signature base64>". The bytes already fix the
// amount and gas, so finalAmount and fee must match what was preloaded.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.SuiChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "sui", params.ChainData)
	}
	if err := checkPreloaded(params, finalAmount, fee); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, err)
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
	if !strings.EqualFold(addressOf(pub), params.Input.From.Address) {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}
	txBytes, err := base64.StdEncoding.DecodeString(data.MessageBytes)
	if err != nil || len(txBytes) == 0 {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, fmt.Errorf("invalid transaction bytes: %v", err))
	}

	digest := blake2b.Sum256(append(append([]byte{}, intentPrefix...), txBytes...))
	signature := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	signature = append(signature, schemeEd25519)
	signature = append(signature, ed25519.Sign(key, digest[:])...)
	signature = append(signature, pub...)

	blob := data.MessageBytes + "_" + base64.StdEncoding.EncodeToString(signature)
	return [][]byte{[]byte(blob)}, nil
}

// checkPreloaded rejects an amount or fee the node-built bytes cannot carry.
// A max-amount transfer spends whatever is left, so any amount goes.
func checkPreloaded(params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee) error {
	intent := params.Input
	if !intent.UseMaxAmount && intent.Amount != nil && (finalAmount == nil || finalAmount.Cmp(intent.Amount) != 0) {
		return fmt.Errorf("final amount %v differs from the preloaded amount %s", finalAmount, intent.Amount)
	}
	if fee.Amount == nil || len(params.Fees) == 0 {
		return nil
	}
	for _, candidate := range params.Fees {
		if candidate.Amount != nil && candidate.Amount.Cmp(fee.Amount) == 0 {
			return nil
		}
	}
	return fmt.Errorf("fee %s is not one of the preloaded fees", fee.Amount)
}

// splitSigned is the inverse of the Sign output format.
func splitSigned(signed []byte) (string, string, bool) {
	txBytes, signature, ok := strings.Cut(string(signed), "_")
	return txBytes, signature, ok && txBytes != "" && signature != ""
}
