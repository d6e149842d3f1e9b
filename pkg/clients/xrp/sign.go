package xrp

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sign returns the hex blob of the signed Payment, the form submit accepts.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.XrpChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "xrp", params.ChainData)
	}
	if len(privateKey) != btcec.PrivKeyBytesLen {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("private key must be %d bytes", btcec.PrivKeyBytesLen))
	}
	key, pub := btcec.PrivKeyFromBytes(privateKey)
	pubHex := strings.ToUpper(hex.EncodeToString(pub.SerializeCompressed()))
	address, err := addresscodec.EncodeClassicAddressFromPublicKeyHex(pubHex)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	if address != params.Input.From.Address {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key belongs to %s, not %s", address, params.Input.From.Address))
	}

	tx, err := payment(params.Input, data, finalAmount, fee.Amount, txErrors.OpSign)
	if err != nil {
		return nil, err
	}
	tx["SigningPubKey"] = pubHex

	unsigned, err := binarycodec.EncodeForSigning(tx)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	message, err := hex.DecodeString(unsigned)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	digest := signingHash(message)
	tx["TxnSignature"] = strings.ToUpper(hex.EncodeToString(ecdsa.Sign(key, digest).Serialize()))

	blob, err := binarycodec.Encode(tx)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{[]byte(blob)}, nil
}

// signingHash is SHA-512Half, the first 32 bytes of SHA-512.
func signingHash(message []byte) []byte {
	sum := sha512.Sum512(message)
	return sum[:32]
}

// transactionHash is the id of a signed blob, SHA-512Half of the TXN prefix and the blob.
func transactionHash(blob []byte) string {
	prefixed := append([]byte("TXN\x00"), blob...)
	return strings.ToUpper(hex.EncodeToString(signingHash(prefixed)))
}
