// Package tron implements the lifecycle roles of Tron against the full node
// HTTP API. Transactions are built from the gotron-sdk protocol types and
// signed with secp256k1.
package tron

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/erc20"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

const (
	addressPrefix = 0x41
	sunPerTrx     = 1_000_000
)

// Client implements every lifecycle role for Tron.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the Tron implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyTron),
		cm:              cm,
		logger:          l,
	}
}

// decodeAddress returns the 21-byte form of a base58check Tron address.
func decodeAddress(op txErrors.Op, address string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, chain.Tron, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if version != addressPrefix || len(payload) != common.AddressLength {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, chain.Tron, fmt.Errorf("address %q is not a tron address", address))
	}
	return append([]byte{addressPrefix}, payload...), nil
}

// encodeAddress is the inverse of decodeAddress.
func encodeAddress(raw []byte) string {
	return base58.CheckEncode(raw[1:], addressPrefix)
}

// evmAddress returns the 20-byte account as used inside TVM call data.
func evmAddress(raw []byte) common.Address {
	return common.BytesToAddress(raw[1:])
}

// contract wraps a contract parameter in protocol.Transaction.Contract.
func contract(kind core.Transaction_Contract_ContractType, parameter proto.Message) (*core.Transaction_Contract, error) {
	value, err := anypb.New(parameter)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, chain.Tron, fmt.Errorf("failed to encode %s: %w", kind, err))
	}
	return &core.Transaction_Contract{Type: kind, Parameter: value}, nil
}

func triggerSmartContract(owner, contractAddr, data []byte) (*core.Transaction_Contract, error) {
	return contract(core.Transaction_Contract_TriggerSmartContract, &core.TriggerSmartContract{
		OwnerAddress:    owner,
		ContractAddress: contractAddr,
		Data:            data,
	})
}

// contracts builds the contracts of the intent, one transaction each.
func contracts(intent txModel.TransferIntent, data txModel.TronChainData, amount *big.Int) ([]*core.Transaction_Contract, error) {
	owner, err := decodeAddress(txErrors.OpSign, intent.From.Address)
	if err != nil {
		return nil, err
	}
	if amount == nil || !amount.IsInt64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, chain.Tron, fmt.Errorf("amount %v out of range", amount))
	}

	var parts []*core.Transaction_Contract
	add := func(kind core.Transaction_Contract_ContractType, parameter proto.Message) error {
		c, err := contract(kind, parameter)
		if err != nil {
			return err
		}
		parts = append(parts, c)
		return nil
	}
	addVote := func() error {
		vote, err := voteContract(owner, data.Votes)
		if err != nil {
			return err
		}
		return add(core.Transaction_Contract_VoteWitnessContract, vote)
	}

	switch intent.Type {
	case txModel.TransactionTypeTransfer:
		to, err := decodeAddress(txErrors.OpSign, intent.Destination.Address)
		if err != nil {
			return nil, err
		}
		if intent.Asset.Id.IsNative() {
			err = add(core.Transaction_Contract_TransferContract, &core.TransferContract{
				OwnerAddress: owner,
				ToAddress:    to,
				Amount:       amount.Int64(),
			})
			break
		}
		token, err := decodeAddress(txErrors.OpSign, intent.Asset.Id.TokenID)
		if err != nil {
			return nil, err
		}
		call, err := erc20.Transfer(evmAddress(to), amount)
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, chain.Tron, err)
		}
		trigger, err := triggerSmartContract(owner, token, call)
		if err != nil {
			return nil, err
		}
		parts = append(parts, trigger)

	case txModel.TransactionTypeTokenApproval:
		token, err := decodeAddress(txErrors.OpSign, intent.Approval.Token)
		if err != nil {
			return nil, err
		}
		spender, err := decodeAddress(txErrors.OpSign, intent.Approval.Spender)
		if err != nil {
			return nil, err
		}
		call, err := erc20.Approve(evmAddress(spender), erc20.MaxAllowance)
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, chain.Tron, err)
		}
		trigger, err := triggerSmartContract(owner, token, call)
		if err != nil {
			return nil, err
		}
		parts = append(parts, trigger)

	case txModel.TransactionTypeStakeDelegate:
		err = add(core.Transaction_Contract_FreezeBalanceV2Contract, &core.FreezeBalanceV2Contract{
			OwnerAddress:  owner,
			FrozenBalance: amount.Int64(),
		})
		if err == nil {
			err = addVote()
		}

	case txModel.TransactionTypeStakeUndelegate:
		err = add(core.Transaction_Contract_UnfreezeBalanceV2Contract, &core.UnfreezeBalanceV2Contract{
			OwnerAddress:    owner,
			UnfreezeBalance: amount.Int64(),
		})
		if err == nil && len(data.Votes) > 0 {
			err = addVote()
		}

	case txModel.TransactionTypeStakeRedelegate:
		err = addVote()

	case txModel.TransactionTypeStakeRewards:
		err = add(core.Transaction_Contract_WithdrawBalanceContract, &core.WithdrawBalanceContract{OwnerAddress: owner})

	case txModel.TransactionTypeStakeWithdraw:
		err = add(core.Transaction_Contract_WithdrawExpireUnfreezeContract, &core.WithdrawExpireUnfreezeContract{OwnerAddress: owner})

	default:
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpSign, chain.Tron, fmt.Errorf("%s is not available on tron", intent.Type))
	}
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// voteContract replaces the account's votes with the given set, ordered by witness address.
func voteContract(owner []byte, votes map[string]int64) (*core.VoteWitnessContract, error) {
	msg := &core.VoteWitnessContract{OwnerAddress: owner}
	for _, witness := range sortedWitnesses(votes) {
		addr, err := decodeAddress(txErrors.OpSign, witness)
		if err != nil {
			return nil, err
		}
		msg.Votes = append(msg.Votes, &core.VoteWitnessContract_Vote{VoteAddress: addr, VoteCount: votes[witness]})
	}
	return msg, nil
}
