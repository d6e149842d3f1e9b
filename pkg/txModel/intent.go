// Package txModel holds the value objects passed between the roles of the
// transaction lifecycle: the transfer intent, per-family chain data, fees,
// signer params and status results.
//
// Values in this package are never mutated once constructed. Constructors copy
// their big.Int arguments and no component writes through the pointers they hold.
package txModel

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
)

var (
	ErrMissingDestination = errors.New("destination address is required")
	ErrMissingSource      = errors.New("source address is required")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrChainMismatch      = errors.New("asset and source account are on different chains")
	ErrMissingStakeTarget = errors.New("stake target is required")
	ErrMissingSwapData    = errors.New("swap data is required")
	ErrMissingApproval    = errors.New("approval data is required")
)

// TransactionType is the semantic type of a transaction.
type TransactionType string

const (
	TransactionTypeTransfer        TransactionType = "transfer"
	TransactionTypeTokenApproval   TransactionType = "token_approval"
	TransactionTypeSwap            TransactionType = "swap"
	TransactionTypeStakeDelegate   TransactionType = "stake_delegate"
	TransactionTypeStakeUndelegate TransactionType = "stake_undelegate"
	TransactionTypeStakeRedelegate TransactionType = "stake_redelegate"
	TransactionTypeStakeRewards    TransactionType = "stake_rewards"
	TransactionTypeStakeWithdraw   TransactionType = "stake_withdraw"
)

// IsStake reports whether the type is one of the staking actions.
func (t TransactionType) IsStake() bool {
	switch t {
	case TransactionTypeStakeDelegate, TransactionTypeStakeUndelegate, TransactionTypeStakeRedelegate,
		TransactionTypeStakeRewards, TransactionTypeStakeWithdraw:
		return true
	}
	return false
}

// AssetId identifies an asset: the network's native coin when TokenID is empty.
type AssetId struct {
	Chain   chain.Chain
	TokenID string
}

func (a AssetId) IsNative() bool {
	return a.TokenID == ""
}

func (a AssetId) String() string {
	if a.IsNative() {
		return string(a.Chain)
	}
	return string(a.Chain) + "_" + a.TokenID
}

// NativeAsset returns the id of a network's native coin.
func NativeAsset(c chain.Chain) AssetId {
	return AssetId{Chain: c}
}

type Asset struct {
	Id       AssetId
	Symbol   string
	Decimals int32
}

type Account struct {
	Chain   chain.Chain
	Address string
}

type Destination struct {
	Address string
	// DomainName is the alias the address was resolved from, if any
	DomainName string
}

// StakeTarget describes the validator(s) a staking action applies to.
type StakeTarget struct {
	ValidatorID string
	// SrcValidatorID is the validator stake moves away from on redelegation
	SrcValidatorID string
	// Validators lists every validator to claim rewards from
	Validators   []string
	DelegationID string
}

// ApprovalData describes an ERC20-style allowance grant.
type ApprovalData struct {
	Token   string
	Spender string
}

// SwapData is the provider-built call a swap executes.
type SwapData struct {
	Provider string
	To       string
	Data     []byte
	Value    *big.Int
	GasLimit *big.Int
	// Approval is set when the swap needs an allowance granted first
	Approval *ApprovalData
}

// TransferIntent is the user's request.
type TransferIntent struct {
	Type         TransactionType
	Asset        Asset
	From         Account
	Destination  Destination
	Amount       *big.Int
	UseMaxAmount bool
	Memo         string
	Stake        *StakeTarget
	Swap         *SwapData
	Approval     *ApprovalData
}

// Chain returns the network the intent targets.
func (t TransferIntent) Chain() chain.Chain {
	return t.Asset.Id.Chain
}

// NewTransferIntent builds a plain transfer intent.
func NewTransferIntent(asset Asset, from Account, to Destination, amount *big.Int, memo string) (TransferIntent, error) {
	intent := TransferIntent{
		Type:        TransactionTypeTransfer,
		Asset:       asset,
		From:        from,
		Destination: to,
		Amount:      copyInt(amount),
		Memo:        memo,
	}
	return intent, intent.Validate()
}

// WithMaxAmount returns a copy of the intent that spends the whole balance.
func (t TransferIntent) WithMaxAmount() TransferIntent {
	t.UseMaxAmount = true
	return t
}

// Validate checks that the fields required by the intent's type are present.
func (t TransferIntent) Validate() error {
	if t.From.Address == "" {
		return ErrMissingSource
	}
	if t.From.Chain != "" && t.From.Chain != t.Asset.Id.Chain {
		return ErrChainMismatch
	}
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	switch t.Type {
	case TransactionTypeTransfer:
		if t.Destination.Address == "" {
			return ErrMissingDestination
		}
	case TransactionTypeStakeDelegate, TransactionTypeStakeUndelegate, TransactionTypeStakeRedelegate,
		TransactionTypeStakeRewards, TransactionTypeStakeWithdraw:
		if t.Stake == nil {
			return ErrMissingStakeTarget
		}
	case TransactionTypeSwap:
		if t.Swap == nil || t.Swap.To == "" {
			return ErrMissingSwapData
		}
	case TransactionTypeTokenApproval:
		if t.Approval == nil {
			return ErrMissingApproval
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	return nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
