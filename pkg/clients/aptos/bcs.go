package aptos

import (
	"encoding/hex"

	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"golang.org/x/crypto/sha3"
)

// BCS enum variant indexes.
const (
	payloadEntryFunction = 2
	typeTagStruct        = 7
	authenticatorEd25519 = 0
	userTransaction      = 0
)

var (
	rawTransactionSalt = sha3.Sum256([]byte("APTOS::RawTransaction"))
	transactionSalt    = sha3.Sum256([]byte("APTOS::Transaction"))
)

func (a *accountAddress) MarshalBCS(ser *bcs.Serializer) {
	ser.FixedBytes(a[:])
}

func (t *structTag) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(typeTagStruct)
	ser.Struct(&t.Address)
	ser.WriteString(t.Module)
	ser.WriteString(t.Name)
	// no type parameters
	ser.Uleb128(0)
}

// entryFunction is a call to a public entry function of a published module.
type entryFunction struct {
	Module   accountAddress
	Name     string
	Function string
	TypeArgs []structTag
	// Args are the BCS encoded arguments
	Args [][]byte
}

// MarshalBCS writes the call as a TransactionPayload.
func (f *entryFunction) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(payloadEntryFunction)
	ser.Struct(&f.Module)
	ser.WriteString(f.Name)
	ser.WriteString(f.Function)
	ser.Uleb128(uint32(len(f.TypeArgs)))
	for i := range f.TypeArgs {
		ser.Struct(&f.TypeArgs[i])
	}
	ser.Uleb128(uint32(len(f.Args)))
	for _, arg := range f.Args {
		ser.WriteBytes(arg)
	}
}

// rawTransaction is the signed part of a user transaction. Payload holds the
// BCS encoded TransactionPayload.
type rawTransaction struct {
	Sender         accountAddress
	SequenceNumber uint64
	Payload        []byte
	MaxGasAmount   uint64
	GasUnitPrice   uint64
	ExpirationSecs uint64
	ChainID        uint8
}

func (t *rawTransaction) MarshalBCS(ser *bcs.Serializer) {
	ser.Struct(&t.Sender)
	ser.U64(t.SequenceNumber)
	ser.FixedBytes(t.Payload)
	ser.U64(t.MaxGasAmount)
	ser.U64(t.GasUnitPrice)
	ser.U64(t.ExpirationSecs)
	ser.U8(t.ChainID)
}

// signingMessage is the salted message the sender signs.
func (t *rawTransaction) signingMessage() ([]byte, error) {
	raw, err := bcs.Serialize(t)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, rawTransactionSalt[:]...), raw...), nil
}

// signedTransaction is a raw transaction with a single ed25519 authenticator.
type signedTransaction struct {
	Raw       *rawTransaction
	PublicKey []byte
	Signature []byte
}

func (t *signedTransaction) MarshalBCS(ser *bcs.Serializer) {
	ser.Struct(t.Raw)
	ser.Uleb128(authenticatorEd25519)
	ser.WriteBytes(t.PublicKey)
	ser.WriteBytes(t.Signature)
}

// transactionHash is the hash the node reports for a signed user transaction.
func transactionHash(signed []byte) string {
	h := sha3.New256()
	h.Write(transactionSalt[:])
	h.Write([]byte{userTransaction})
	h.Write(signed)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func u64Arg(v uint64) ([]byte, error) {
	return bcs.SerializeU64(v)
}
