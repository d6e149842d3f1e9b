package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/shopspring/decimal"
	cli "github.com/urfave/cli/v2"
)

type intentOptions struct {
	Chain        string
	Type         string
	From         string
	To           string
	Amount       string
	Decimals     int
	Token        string
	Max          bool
	Memo         string
	Validator    string
	SrcValidator string
	Delegation   string
	Spender      string
	SwapTo       string
	SwapData     string
	SwapValue    string
	SwapGasLimit uint64
	SwapSpender  string
}

func intentOptionsFrom(c *cli.Context) intentOptions {
	return intentOptions{
		Chain:        c.String("chain"),
		Type:         c.String("type"),
		From:         c.String("from"),
		To:           c.String("to"),
		Amount:       c.String("amount"),
		Decimals:     c.Int("decimals"),
		Token:        c.String("token"),
		Max:          c.Bool("max"),
		Memo:         c.String("memo"),
		Validator:    c.String("validator"),
		SrcValidator: c.String("src-validator"),
		Delegation:   c.String("delegation"),
		Spender:      c.String("spender"),
		SwapTo:       c.String("swap-to"),
		SwapData:     c.String("swap-data"),
		SwapValue:    c.String("swap-value"),
		SwapGasLimit: c.Uint64("swap-gas-limit"),
		SwapSpender:  c.String("swap-spender"),
	}
}

// intent converts the command line options into a validated intent.
func (o intentOptions) intent() (txModel.TransferIntent, error) {
	ch, err := chain.Parse(o.Chain)
	if err != nil {
		return txModel.TransferIntent{}, fmt.Errorf("chain %q: %w", o.Chain, err)
	}

	decimals := int32(o.Decimals)
	if decimals == 0 && o.Token == "" {
		decimals = chain.NativeDecimals(ch)
	}
	amount, err := toBaseUnits(o.Amount, decimals)
	if err != nil {
		return txModel.TransferIntent{}, err
	}

	intent := txModel.TransferIntent{
		Type:         txModel.TransactionType(o.Type),
		Asset:        txModel.Asset{Id: txModel.AssetId{Chain: ch, TokenID: o.Token}, Decimals: decimals},
		From:         txModel.Account{Chain: ch, Address: o.From},
		Destination:  txModel.Destination{Address: o.To},
		Amount:       amount,
		UseMaxAmount: o.Max,
		Memo:         o.Memo,
	}

	switch {
	case intent.Type.IsStake():
		intent.Stake = &txModel.StakeTarget{
			ValidatorID:    o.Validator,
			SrcValidatorID: o.SrcValidator,
			DelegationID:   o.Delegation,
		}
		if o.Validator != "" {
			intent.Stake.Validators = strings.Split(o.Validator, ",")
			intent.Stake.ValidatorID = intent.Stake.Validators[0]
		}
	case intent.Type == txModel.TransactionTypeTokenApproval:
		intent.Approval = &txModel.ApprovalData{Token: o.Token, Spender: o.Spender}
	case intent.Type == txModel.TransactionTypeSwap:
		swap, err := o.swap()
		if err != nil {
			return txModel.TransferIntent{}, err
		}
		intent.Swap = swap
	}

	if err := intent.Validate(); err != nil {
		return txModel.TransferIntent{}, err
	}
	return intent, nil
}

func (o intentOptions) swap() (*txModel.SwapData, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(o.SwapData, "0x"))
	if err != nil {
		return nil, fmt.Errorf("swap-data is not hex: %w", err)
	}
	swap := &txModel.SwapData{To: o.SwapTo, Data: data}
	if o.SwapValue != "" {
		v, ok := new(big.Int).SetString(o.SwapValue, 10)
		if !ok {
			return nil, fmt.Errorf("invalid swap-value %q", o.SwapValue)
		}
		swap.Value = v
	}
	if o.SwapGasLimit != 0 {
		swap.GasLimit = new(big.Int).SetUint64(o.SwapGasLimit)
	}
	if o.SwapSpender != "" {
		swap.Approval = &txModel.ApprovalData{Token: o.Token, Spender: o.SwapSpender}
	}
	return swap, nil
}

// toBaseUnits converts a whole-unit amount such as "1.5" into base units.
func toBaseUnits(amount string, decimals int32) (*big.Int, error) {
	if amount == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", amount)
	}
	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	return units.BigInt(), nil
}

func parseBalance(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid balance %q", s)
	}
	return v, nil
}
