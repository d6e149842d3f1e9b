package tron

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/protobuf/proto"
)

// marshal is deterministic so the embedded raw data matches the signed bytes.
var marshal = proto.MarshalOptions{Deterministic: true}

// expiration is added to the reference block timestamp, in milliseconds.
const expiration = 10 * 60 * 60 * 1000

// Sign returns one hex encoded protocol.Transaction per contract the intent
// needs. Delegation freezes and votes in two transactions.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.TronChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "tron", params.ChainData)
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	owner := append([]byte{addressPrefix}, crypto.PubkeyToAddress(key.PublicKey).Bytes()...)
	if encodeAddress(owner) != params.Input.From.Address {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}

	blockID, err := hex.DecodeString(data.BlockID)
	if err != nil || len(blockID) < 16 {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, fmt.Errorf("invalid block id %q", data.BlockID))
	}
	number := make([]byte, 8)
	binary.BigEndian.PutUint64(number, uint64(data.BlockNumber))

	parts, err := contracts(params.Input, data, finalAmount)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(parts))
	for _, part := range parts {
		raw := &core.TransactionRaw{
			RefBlockBytes: number[6:8],
			RefBlockHash:  blockID[8:16],
			Expiration:    data.Timestamp + expiration,
			Contract:      []*core.Transaction_Contract{part},
			Timestamp:     data.Timestamp,
		}
		if params.Input.Type == txModel.TransactionTypeTokenApproval || !params.Input.Asset.Id.IsNative() {
			if fee.Amount != nil && fee.Amount.IsInt64() {
				raw.FeeLimit = fee.Amount.Int64()
			}
		}
		rawBytes, err := marshal.Marshal(raw)
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
		}
		txID := sha256.Sum256(rawBytes)
		sig, err := crypto.Sign(txID[:], key)
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
		}
		tx, err := marshal.Marshal(&core.Transaction{RawData: raw, Signature: [][]byte{sig}})
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
		}
		out = append(out, []byte(hex.EncodeToString(tx)))
	}
	return out, nil
}
