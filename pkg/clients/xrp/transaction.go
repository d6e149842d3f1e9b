package xrp

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/shopspring/decimal"
)

// payment builds the JSON form of the Payment the intent describes. Swaps pay
// the swap target and carry the provider payload as a memo.
func payment(intent txModel.TransferIntent, data txModel.XrpChainData, amount, fee *big.Int, op txErrors.Op) (map[string]any, error) {
	network := intent.Chain()
	if amount == nil || amount.Sign() < 0 || !amount.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid amount %v", amount))
	}
	if fee == nil || fee.Sign() < 0 || !fee.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid fee %v", fee))
	}
	if err := checkAddress(network, op, intent.From.Address); err != nil {
		return nil, err
	}
	tx := map[string]any{
		"TransactionType":    "Payment",
		"Account":            intent.From.Address,
		"Fee":                fee.String(),
		"Sequence":           data.Sequence,
		"LastLedgerSequence": data.LedgerIndex + ledgerWindow,
	}

	switch intent.Type {
	case txModel.TransactionTypeTransfer:
		tx["Destination"] = intent.Destination.Address
		if intent.Asset.Id.IsNative() {
			tx["Amount"] = amount.String()
		} else {
			issued, err := issuedAmount(network, op, intent.Asset, amount)
			if err != nil {
				return nil, err
			}
			tx["Amount"] = issued
		}
		if intent.Memo != "" {
			if tag, err := strconv.ParseUint(intent.Memo, 10, 32); err == nil {
				tx["DestinationTag"] = uint32(tag)
			} else {
				tx["Memos"] = memos([]byte(intent.Memo))
			}
		}
	case txModel.TransactionTypeSwap:
		if intent.Swap == nil || len(intent.Swap.Data) == 0 {
			return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("swap needs a memo payload"))
		}
		if !intent.Asset.Id.IsNative() {
			return nil, txErrors.New(txErrors.KindUnsupported, op, network, fmt.Errorf("swap of %s is not available", intent.Asset.Id))
		}
		tx["Destination"] = intent.Swap.To
		tx["Amount"] = amount.String()
		tx["Memos"] = memos(intent.Swap.Data)
	default:
		return nil, txErrors.New(txErrors.KindUnsupported, op, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}

	if err := checkAddress(network, op, tx["Destination"].(string)); err != nil {
		return nil, err
	}
	return tx, nil
}

// issuedAmount is the amount of a token, issued by the account in its token id.
func issuedAmount(network chain.Chain, op txErrors.Op, asset txModel.Asset, amount *big.Int) (map[string]any, error) {
	if err := checkAddress(network, op, asset.Id.TokenID); err != nil {
		return nil, err
	}
	code, err := currencyCode(network, op, asset.Symbol)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"currency": code,
		"issuer":   asset.Id.TokenID,
		"value":    decimal.NewFromBigInt(amount, -asset.Decimals).String(),
	}, nil
}

func memos(data []byte) []any {
	return []any{
		map[string]any{
			"Memo": map[string]any{"MemoData": strings.ToUpper(hex.EncodeToString(data))},
		},
	}
}
