package txModel

import (
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
)

// SignerParams is the bundle a preload hands to signing.
type SignerParams struct {
	Input     TransferIntent
	ChainData ChainData
	// Fees holds one candidate per priority, slowest first
	Fees []Fee
	// ValidatorName is the display name of the stake target, empty when unknown
	ValidatorName string
}

// Fee returns the candidate for the requested priority, or the first candidate.
// The zero Fee is returned when there are no candidates.
func (p *SignerParams) Fee(priority FeePriority) Fee {
	for _, f := range p.Fees {
		if f.Priority == priority {
			return f
		}
	}
	if len(p.Fees) > 0 {
		return p.Fees[0]
	}
	return Fee{}
}

// FinalAmount returns the amount to sign given a chosen fee: the intent amount,
// or balance minus fee when the whole balance is spent in the fee asset.
func (p *SignerParams) FinalAmount(balance *big.Int, fee Fee) *big.Int {
	if !p.Input.UseMaxAmount || balance == nil || fee.AssetId != p.Input.Asset.Id {
		return copyInt(p.Input.Amount)
	}
	out := new(big.Int).Sub(balance, fee.Total())
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

// TransactionState is the status of a submitted transaction.
type TransactionState string

const (
	TransactionStatePending   TransactionState = "pending"
	TransactionStateConfirmed TransactionState = "confirmed"
	TransactionStateFailed    TransactionState = "failed"
	TransactionStateReverted  TransactionState = "reverted"
)

// IsTerminal reports whether polling must stop.
func (s TransactionState) IsTerminal() bool {
	return s != TransactionStatePending
}

// TransactionStateRequest is the input of a status query.
type TransactionStateRequest struct {
	Chain chain.Chain
	Hash  string
	// Block and Sender are optional context some networks use to locate the transaction
	Block  string
	Sender string
}

// TransactionChanges is the result of a status query.
type TransactionChanges struct {
	State TransactionState
	// NewHash is set when the network reports the transaction under a different id
	NewHash string
	// Fee is the fee actually paid, when the network reports it
	Fee *big.Int
}

// PendingChanges is the result for a transaction the network has not included yet.
func PendingChanges() TransactionChanges {
	return TransactionChanges{State: TransactionStatePending}
}
