package polkadot

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

const (
	// signedExtrinsicV4 is the version byte of a signed v4 extrinsic
	signedExtrinsicV4 = 0x84
	// maxUnhashedPayload is the longest signing payload signed as is
	maxUnhashedPayload = 256
	// metadataHashDisabled is the CheckMetadataHash mode without a hash
	metadataHashDisabled = 0
)

type transferArgs struct {
	Dest  types.MultiAddress
	Value types.UCompact
}

// signedExtra is the part of the signed extensions carried in the extrinsic.
type signedExtra struct {
	Era          types.ExtrinsicEra
	Nonce        types.UCompact
	Tip          types.UCompact
	MetadataMode types.U8
}

// additionalSigned is the part of the signed extensions only the signer sees.
type additionalSigned struct {
	SpecVersion        types.U32
	TransactionVersion types.U32
	GenesisHash        types.Hash
	BlockHash          types.Hash
	// MetadataHash is Option<H256>, always None
	MetadataHash types.U8
}

type signingPayload struct {
	Call       types.Call
	Extra      signedExtra
	Additional additionalSigned
}

type signedExtrinsic struct {
	Version   types.U8
	Signer    types.MultiAddress
	Signature types.MultiSignature
	Extra     signedExtra
	Call      types.Call
}

// transferCall is Balances.transfer_allow_death to dest.
func transferCall(p chain.PolkadotParams, dest []byte, amount *big.Int) (types.Call, error) {
	to, err := types.NewMultiAddressFromAccountID(dest)
	if err != nil {
		return types.Call{}, err
	}
	args, err := codec.Encode(transferArgs{Dest: to, Value: types.NewUCompact(amount)})
	if err != nil {
		return types.Call{}, err
	}
	return types.Call{
		CallIndex: types.CallIndex{SectionIndex: p.TransferCall[0], MethodIndex: p.TransferCall[1]},
		Args:      args,
	}, nil
}

// era returns the mortal era starting at block current, or an immortal era
// when period is zero. The period is rounded up to a power of two in [4, 65536].
func era(current, period uint64) types.ExtrinsicEra {
	if period == 0 {
		return types.ExtrinsicEra{IsImmortalEra: true}
	}
	period = min(max(period, 4), 1<<16)
	if period&(period-1) != 0 {
		period = 1 << bits.Len64(period)
	}
	phase := current % period
	quantize := max(period>>12, 1)
	encoded := uint16(min(max(bits.TrailingZeros64(period)-1, 1), 15)) | uint16(phase/quantize)<<4
	return types.ExtrinsicEra{
		IsMortalEra: true,
		AsMortalEra: types.MortalEra{First: byte(encoded), Second: byte(encoded >> 8)},
	}
}

// extrinsicParts holds the decoded transaction material.
type extrinsicParts struct {
	extra      signedExtra
	additional additionalSigned
}

func partsOf(data txModel.PolkadotChainData) (extrinsicParts, error) {
	genesis, err := types.NewHashFromHexString(data.GenesisHash)
	if err != nil {
		return extrinsicParts{}, fmt.Errorf("invalid genesis hash %q: %w", data.GenesisHash, err)
	}
	block, err := types.NewHashFromHexString(data.BlockHash)
	if err != nil {
		return extrinsicParts{}, fmt.Errorf("invalid block hash %q: %w", data.BlockHash, err)
	}
	eraBlock := block
	if data.Period == 0 {
		eraBlock = genesis
	}
	return extrinsicParts{
		extra: signedExtra{
			Era:          era(data.BlockNumber, data.Period),
			Nonce:        types.NewUCompactFromUInt(data.Nonce),
			Tip:          types.NewUCompactFromUInt(0),
			MetadataMode: metadataHashDisabled,
		},
		additional: additionalSigned{
			SpecVersion:        types.U32(data.SpecVersion),
			TransactionVersion: types.U32(data.TransactionVersion),
			GenesisHash:        genesis,
			BlockHash:          eraBlock,
		},
	}, nil
}

// payloadToSign is the message the sender signs. Payloads longer than 256
// bytes are signed by their blake2b-256 hash.
func payloadToSign(call types.Call, parts extrinsicParts) ([]byte, error) {
	payload, err := codec.Encode(signingPayload{Call: call, Extra: parts.extra, Additional: parts.additional})
	if err != nil {
		return nil, err
	}
	if len(payload) > maxUnhashedPayload {
		sum := blake2b.Sum256(payload)
		return sum[:], nil
	}
	return payload, nil
}

// encodeExtrinsic returns the length-prefixed signed extrinsic.
func encodeExtrinsic(signer []byte, signature []byte, call types.Call, parts extrinsicParts) ([]byte, error) {
	from, err := types.NewMultiAddressFromAccountID(signer)
	if err != nil {
		return nil, err
	}
	body, err := codec.Encode(signedExtrinsic{
		Version:   signedExtrinsicV4,
		Signer:    from,
		Signature: types.MultiSignature{IsEd25519: true, AsEd25519: types.NewSignature(signature)},
		Extra:     parts.extra,
		Call:      call,
	})
	if err != nil {
		return nil, err
	}
	length, err := codec.Encode(types.NewUCompactFromUInt(uint64(len(body))))
	if err != nil {
		return nil, err
	}
	return append(length, body...), nil
}

// extrinsicHash is the blake2b-256 hash the network identifies the extrinsic by.
func extrinsicHash(extrinsic []byte) string {
	sum := blake2b.Sum256(extrinsic)
	return hexutil.Encode(sum[:])
}
