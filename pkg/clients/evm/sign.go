package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var errNoGasFee = errors.New("evm signing needs a gas fee")

// Sign builds EIP-1559 transactions. A swap that needs an allowance produces two
// payloads, the approval at the preloaded nonce and the swap at the next one.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.EvmChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "evm", params.ChainData)
	}
	if fee.Gas == nil || fee.Gas.Limit == nil || fee.Gas.MaxGasPrice == nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errNoGasFee)
	}
	if data.ChainID == nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, errors.New("chain data has no chain id"))
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("invalid private key: %w", err))
	}

	tip := fee.Gas.MinerFee
	if tip == nil {
		tip = fee.Gas.MaxGasPrice
	}
	signer := types.LatestSignerForChainID(data.ChainID)
	nonce := data.Nonce

	var out [][]byte
	if approval := swapApproval(params.Input); approval != nil {
		approve, err := approvalCall(network, txErrors.OpSign, approval)
		if err != nil {
			return nil, err
		}
		blob, err := signTx(key, signer, &types.DynamicFeeTx{
			ChainID:   data.ChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: fee.Gas.MaxGasPrice,
			Gas:       data.ApprovalGasLimit,
			To:        &approve.to,
			Value:     approve.value,
			Data:      approve.data,
		})
		if err != nil {
			return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
		}
		out = append(out, blob)
		nonce++
	}

	main, err := mainCall(params.Input, txErrors.OpSign, finalAmount)
	if err != nil {
		return nil, err
	}
	blob, err := signTx(key, signer, &types.DynamicFeeTx{
		ChainID:   data.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: fee.Gas.MaxGasPrice,
		Gas:       fee.Gas.Limit.Uint64(),
		To:        &main.to,
		Value:     main.value,
		Data:      main.data,
	})
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return append(out, blob), nil
}

func signTx(key *ecdsa.PrivateKey, signer types.Signer, inner *types.DynamicFeeTx) ([]byte, error) {
	tx, err := types.SignNewTx(key, signer, inner)
	if err != nil {
		return nil, err
	}
	return tx.MarshalBinary()
}
