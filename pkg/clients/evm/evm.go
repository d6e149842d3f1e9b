// Package evm implements every lifecycle role for account+nonce EVM networks
// on top of go-ethereum's ethclient.
package evm

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/erc20"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Client implements Preload, Sign, Broadcast, Status and NodeStatus for the EVM family.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the EVM implementation.
//
// Parameters:
//   - cm: The chain manager holding the ethclient connection of every EVM network
//   - l: Logger
//
// Returns:
//   - *Client: The implementation, supporting every network of chain.FamilyEVM
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyEVM),
		cm:              cm,
		logger:          l,
	}
}

func parseAddress(c chain.Chain, op txErrors.Op, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, txErrors.New(txErrors.KindInvalidInput, op, c, fmt.Errorf("invalid address %q", s))
	}
	return common.HexToAddress(s), nil
}

// call is the target, value and calldata of the main transaction of an intent.
type call struct {
	to    common.Address
	value *big.Int
	data  []byte
}

// mainCall resolves the transaction an intent executes, sending amount.
func mainCall(intent txModel.TransferIntent, op txErrors.Op, amount *big.Int) (call, error) {
	c := intent.Chain()
	switch intent.Type {
	case txModel.TransactionTypeTransfer:
		to, err := parseAddress(c, op, intent.Destination.Address)
		if err != nil {
			return call{}, err
		}
		if intent.Asset.Id.IsNative() {
			return call{to: to, value: amount}, nil
		}
		token, err := parseAddress(c, op, intent.Asset.Id.TokenID)
		if err != nil {
			return call{}, err
		}
		data, err := erc20.Transfer(to, amount)
		if err != nil {
			return call{}, txErrors.New(txErrors.KindInvalidInput, op, c, err)
		}
		return call{to: token, value: new(big.Int), data: data}, nil
	case txModel.TransactionTypeTokenApproval:
		return approvalCall(c, op, intent.Approval)
	case txModel.TransactionTypeSwap:
		to, err := parseAddress(c, op, intent.Swap.To)
		if err != nil {
			return call{}, err
		}
		value := new(big.Int)
		if intent.Swap.Value != nil {
			value.Set(intent.Swap.Value)
		}
		return call{to: to, value: value, data: intent.Swap.Data}, nil
	}
	return call{}, txErrors.New(txErrors.KindUnsupported, op, c, fmt.Errorf("%s is not available on %s", intent.Type, c))
}

func approvalCall(c chain.Chain, op txErrors.Op, approval *txModel.ApprovalData) (call, error) {
	if approval == nil {
		return call{}, txErrors.New(txErrors.KindInvalidInput, op, c, txModel.ErrMissingApproval)
	}
	token, err := parseAddress(c, op, approval.Token)
	if err != nil {
		return call{}, err
	}
	spender, err := parseAddress(c, op, approval.Spender)
	if err != nil {
		return call{}, err
	}
	data, err := erc20.Approve(spender, erc20.MaxAllowance)
	if err != nil {
		return call{}, txErrors.New(txErrors.KindInvalidInput, op, c, err)
	}
	return call{to: token, value: new(big.Int), data: data}, nil
}

// swapApproval returns the approval that has to be sent ahead of a swap, if any.
func swapApproval(intent txModel.TransferIntent) *txModel.ApprovalData {
	if intent.Type != txModel.TransactionTypeSwap || intent.Swap == nil {
		return nil
	}
	return intent.Swap.Approval
}
