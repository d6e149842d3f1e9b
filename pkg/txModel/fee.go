package txModel

import (
	"errors"
	"math/big"
)

var (
	ErrNegativeFee = errors.New("fee must not be negative")
)

// FeePriority is the speed tier a fee candidate is calculated for.
type FeePriority int

const (
	FeePrioritySlow FeePriority = iota
	FeePriorityNormal
	FeePriorityFast
)

// FeePriorities lists every tier, slowest first.
var FeePriorities = []FeePriority{FeePrioritySlow, FeePriorityNormal, FeePriorityFast}

func (p FeePriority) String() string {
	switch p {
	case FeePrioritySlow:
		return "slow"
	case FeePriorityNormal:
		return "normal"
	case FeePriorityFast:
		return "fast"
	}
	return "unknown"
}

// ParseFeePriority is the inverse of FeePriority.String. Unknown input returns Normal.
func ParseFeePriority(s string) FeePriority {
	for _, p := range FeePriorities {
		if p.String() == s {
			return p
		}
	}
	return FeePriorityNormal
}

// FeeOption names an additional cost carried by a fee.
type FeeOption string

const (
	// FeeOptionTokenAccountCreation is the cost of creating the recipient's token account
	FeeOptionTokenAccountCreation FeeOption = "token_account_creation"
	// FeeOptionTokenApproval is the cost of the approval sent ahead of a swap
	FeeOptionTokenApproval FeeOption = "token_approval"
)

// GasFee is the limit/price breakdown for chains with a separate gas model.
type GasFee struct {
	Limit       *big.Int
	MaxGasPrice *big.Int
	// MinerFee is the priority tip included in MaxGasPrice, when the chain has one
	MinerFee *big.Int
}

// ResourceLimit is the compute or gas cap written into a transaction whose fee
// is not limit × price, e.g. a flat fee or a base fee plus a priority price.
type ResourceLimit struct {
	Units *big.Int
	// UnitPrice is the optional priority price per unit, in the network's own scale
	UnitPrice *big.Int
}

// Fee is a normalized fee candidate.
type Fee struct {
	Priority FeePriority
	AssetId  AssetId
	// Amount is the total fee. For gas-model fees it is Limit × MaxGasPrice, fixed at construction.
	Amount  *big.Int
	Gas     *GasFee
	Limit   *ResourceLimit
	Options map[FeeOption]*big.Int
}

// NewFee builds a flat fee.
func NewFee(priority FeePriority, asset AssetId, amount *big.Int) (Fee, error) {
	if amount == nil || amount.Sign() < 0 {
		return Fee{}, ErrNegativeFee
	}
	return Fee{Priority: priority, AssetId: asset, Amount: copyInt(amount)}, nil
}

// NewGasFee builds a gas-model fee whose amount is limit × maxGasPrice.
// minerFee may be nil.
func NewGasFee(priority FeePriority, asset AssetId, limit, maxGasPrice, minerFee *big.Int) (Fee, error) {
	if limit == nil || maxGasPrice == nil || limit.Sign() < 0 || maxGasPrice.Sign() < 0 {
		return Fee{}, ErrNegativeFee
	}
	if minerFee != nil && minerFee.Sign() < 0 {
		return Fee{}, ErrNegativeFee
	}
	return Fee{
		Priority: priority,
		AssetId:  asset,
		Amount:   new(big.Int).Mul(limit, maxGasPrice),
		Gas: &GasFee{
			Limit:       copyInt(limit),
			MaxGasPrice: copyInt(maxGasPrice),
			MinerFee:    copyInt(minerFee),
		},
	}, nil
}

// WithResourceLimit returns a copy of the fee carrying a resource cap. The
// amount is unchanged. unitPrice may be nil.
func (f Fee) WithResourceLimit(units, unitPrice *big.Int) Fee {
	f.Limit = &ResourceLimit{Units: copyInt(units), UnitPrice: copyInt(unitPrice)}
	return f
}

// WithOption returns a copy of the fee carrying an additional named cost.
func (f Fee) WithOption(opt FeeOption, value *big.Int) Fee {
	options := make(map[FeeOption]*big.Int, len(f.Options)+1)
	for k, v := range f.Options {
		options[k] = v
	}
	options[opt] = copyInt(value)
	f.Options = options
	return f
}

// Option returns the named cost or zero.
func (f Fee) Option(opt FeeOption) *big.Int {
	if v, ok := f.Options[opt]; ok && v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Total returns the fee amount plus every option.
func (f Fee) Total() *big.Int {
	total := copyInt(f.Amount)
	if total == nil {
		total = new(big.Int)
	}
	for _, v := range f.Options {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// IsGas reports whether the fee carries a limit/price breakdown.
func (f Fee) IsGas() bool {
	return f.Gas != nil
}
