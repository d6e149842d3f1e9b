package cosmos

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"github.com/ethereum/go-ethereum/crypto"
)

const broadcastMode = "BROADCAST_MODE_SYNC"

var errNoGasLimit = errors.New("cosmos signing needs a gas limit")

// broadcastRequest is the body of POST /cosmos/tx/v1beta1/txs.
type broadcastRequest struct {
	Mode    string `json:"mode"`
	TxBytes string `json:"tx_bytes"`
}

// Sign encodes a SIGN_MODE_DIRECT transaction and returns it wrapped in the
// LCD broadcast request, ready to be posted unchanged.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.CosmosChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "cosmos", params.ChainData)
	}
	p, err := networkParams(network, txErrors.OpSign)
	if err != nil {
		return nil, err
	}
	if fee.Limit == nil || fee.Limit.Units == nil || fee.Limit.Units.Sign() <= 0 || !fee.Limit.Units.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errNoGasLimit)
	}
	if len(privateKey) != btcec.PrivKeyBytesLen {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("private key must be %d bytes", btcec.PrivKeyBytesLen))
	}
	key, pub := btcec.PrivKeyFromBytes(privateKey)

	msgs, err := txMessages(network, p, params.Input, finalAmount)
	if err != nil {
		return nil, err
	}
	body, err := (&txtypes.TxBody{Messages: msgs, Memo: memo(params.Input)}).Marshal()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	// injective's eth_secp256k1 key has the same layout under another type url
	pubKeyType := typePubKey
	if p.KeccakSigning {
		pubKeyType = typeInjectivePubKey
	}
	pubKey, err := anyOf(network, pubKeyType, &secp256k1.PubKey{Key: pub.SerializeCompressed()})
	if err != nil {
		return nil, err
	}
	txFee := &txtypes.Fee{GasLimit: fee.Limit.Units.Uint64()}
	if !p.OmitFeeAmount {
		txFee.Amount = sdk.Coins{coin(p.Denom, fee.Amount)}
	}
	authInfo, err := (&txtypes.AuthInfo{
		SignerInfos: []*txtypes.SignerInfo{{
			PublicKey: pubKey,
			ModeInfo: &txtypes.ModeInfo{
				Sum: &txtypes.ModeInfo_Single_{Single: &txtypes.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT}},
			},
			Sequence: data.Sequence,
		}},
		Fee: txFee,
	}).Marshal()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	signDoc, err := (&txtypes.SignDoc{
		BodyBytes:     body,
		AuthInfoBytes: authInfo,
		ChainId:       data.ChainID,
		AccountNumber: data.AccountNumber,
	}).Marshal()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	var digest []byte
	if p.KeccakSigning {
		digest = crypto.Keccak256(signDoc)
	} else {
		sum := sha256.Sum256(signDoc)
		digest = sum[:]
	}
	// drop the recovery byte, leaving R || S
	signature := ecdsa.SignCompact(key, digest, true)[1:]

	txRaw, err := (&txtypes.TxRaw{
		BodyBytes:     body,
		AuthInfoBytes: authInfo,
		Signatures:    [][]byte{signature},
	}).Marshal()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	blob, err := json.Marshal(broadcastRequest{
		Mode:    broadcastMode,
		TxBytes: base64.StdEncoding.EncodeToString(txRaw),
	})
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{blob}, nil
}
