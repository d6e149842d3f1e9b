// Package cosmos implements the lifecycle roles of Cosmos SDK networks against
// their LCD REST endpoints. Transactions are built from the cosmos-sdk
// generated types, encoded as SIGN_MODE_DIRECT and signed with secp256k1.
package cosmos

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/protoEncoder"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcutil/bech32"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"go.uber.org/zap"
)

const (
	typeMsgDelegate        = "/cosmos.staking.v1beta1.MsgDelegate"
	typeMsgUndelegate      = "/cosmos.staking.v1beta1.MsgUndelegate"
	typeMsgRedelegate      = "/cosmos.staking.v1beta1.MsgBeginRedelegate"
	typeMsgWithdrawRewards = "/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward"
	typeThorMsgDeposit     = "/types.MsgDeposit"

	typePubKey          = "/cosmos.crypto.secp256k1.PubKey"
	typeInjectivePubKey = "/injective.crypto.v1beta1.ethsecp256k1.PubKey"

	stakeMemo = "Stake via txengine"
)

// Client implements every lifecycle role for the Cosmos family.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the Cosmos implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyCosmos),
		cm:              cm,
		logger:          l,
	}
}

func networkParams(network chain.Chain, op txErrors.Op) (chain.CosmosParams, error) {
	p, ok := chain.CosmosConfig(network)
	if !ok {
		return chain.CosmosParams{}, txErrors.Unsupported(op, network)
	}
	return p, nil
}

// decodeAddress checks the bech32 prefix of address and returns its payload bytes.
func decodeAddress(network chain.Chain, op txErrors.Op, prefix, address string) ([]byte, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if hrp != prefix && hrp != prefix+"valoper" {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("address %q is not a %s address", address, prefix))
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, err)
	}
	return raw, nil
}

func coin(denom string, amount *big.Int) sdk.Coin {
	if amount == nil {
		return sdk.Coin{Denom: denom, Amount: sdkmath.ZeroInt()}
	}
	return sdk.Coin{Denom: denom, Amount: sdkmath.NewIntFromBigInt(amount)}
}

func denomOf(p chain.CosmosParams, asset txModel.AssetId) string {
	if asset.IsNative() {
		return p.Denom
	}
	return asset.TokenID
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// anyOf wraps an encoded message in google.protobuf.Any under typeURL.
func anyOf(network chain.Chain, typeURL string, msg marshaler) (*codectypes.Any, error) {
	value, err := msg.Marshal()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("failed to encode %s: %w", typeURL, err))
	}
	return &codectypes.Any{TypeUrl: typeURL, Value: value}, nil
}

// txMessages builds the Any-wrapped messages of an intent.
func txMessages(network chain.Chain, p chain.CosmosParams, intent txModel.TransferIntent, amount *big.Int) ([]*codectypes.Any, error) {
	from := intent.From.Address
	denom := denomOf(p, intent.Asset.Id)
	fromBytes, err := decodeAddress(network, txErrors.OpSign, p.Prefix, from)
	if err != nil {
		return nil, err
	}

	if intent.Type.IsStake() && intent.Stake == nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingStakeTarget)
	}
	if intent.Type == txModel.TransactionTypeSwap && intent.Swap == nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingSwapData)
	}

	var msgs []*codectypes.Any
	add := func(typeURL string, msg marshaler) error {
		wrapped, err := anyOf(network, typeURL, msg)
		if err != nil {
			return err
		}
		msgs = append(msgs, wrapped)
		return nil
	}

	switch intent.Type {
	case txModel.TransactionTypeTransfer:
		err = sendMessage(network, p, from, fromBytes, intent.Destination.Address, coin(denom, amount), add)
	case txModel.TransactionTypeSwap:
		if network == chain.Thorchain {
			err = add(typeThorMsgDeposit, thorDeposit(fromBytes, intent, amount))
		} else {
			err = sendMessage(network, p, from, fromBytes, intent.Swap.To, coin(denom, amount), add)
		}
	case txModel.TransactionTypeStakeDelegate:
		err = add(typeMsgDelegate, &stakingtypes.MsgDelegate{
			DelegatorAddress: from,
			ValidatorAddress: intent.Stake.ValidatorID,
			Amount:           coin(denom, amount),
		})
	case txModel.TransactionTypeStakeUndelegate:
		err = add(typeMsgUndelegate, &stakingtypes.MsgUndelegate{
			DelegatorAddress: from,
			ValidatorAddress: intent.Stake.ValidatorID,
			Amount:           coin(denom, amount),
		})
	case txModel.TransactionTypeStakeRedelegate:
		err = add(typeMsgRedelegate, &stakingtypes.MsgBeginRedelegate{
			DelegatorAddress:    from,
			ValidatorSrcAddress: intent.Stake.SrcValidatorID,
			ValidatorDstAddress: intent.Stake.ValidatorID,
			Amount:              coin(denom, amount),
		})
	case txModel.TransactionTypeStakeRewards:
		validators := intent.Stake.Validators
		if len(validators) == 0 && intent.Stake.ValidatorID != "" {
			validators = []string{intent.Stake.ValidatorID}
		}
		if len(validators) == 0 {
			return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingStakeTarget)
		}
		for _, validator := range validators {
			if err = add(typeMsgWithdrawRewards, &distrtypes.MsgWithdrawDelegatorReward{
				DelegatorAddress: from,
				ValidatorAddress: validator,
			}); err != nil {
				break
			}
		}
	default:
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpSign, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func sendMessage(network chain.Chain, p chain.CosmosParams, from string, fromBytes []byte, to string, amount sdk.Coin, add func(string, marshaler) error) error {
	toBytes, err := decodeAddress(network, txErrors.OpSign, p.Prefix, to)
	if err != nil {
		return err
	}
	if network == chain.Thorchain {
		return add(p.SendMsgType, thorSend(fromBytes, toBytes, amount))
	}
	return add(p.SendMsgType, &banktypes.MsgSend{
		FromAddress: from,
		ToAddress:   to,
		Amount:      sdk.Coins{amount},
	})
}

// thorMessage is a thorchain MsgSend or MsgDeposit. Neither has published Go
// types, so they are written field by field.
type thorMessage struct {
	*protoEncoder.Builder
}

func (m thorMessage) Marshal() ([]byte, error) {
	return m.Builder.Marshal(), nil
}

func thorCoin(c sdk.Coin) *protoEncoder.Builder {
	return protoEncoder.New().String(1, c.Denom).String(2, c.Amount.String())
}

// thorSend is thorchain's MsgSend, which carries raw address bytes.
func thorSend(from, to []byte, amount sdk.Coin) thorMessage {
	return thorMessage{protoEncoder.New().Bytes(1, from).Bytes(2, to).Message(3, thorCoin(amount))}
}

func thorDeposit(signer []byte, intent txModel.TransferIntent, amount *big.Int) thorMessage {
	asset := protoEncoder.New().String(1, "THOR").String(2, "RUNE").String(3, "RUNE")
	value := "0"
	if amount != nil {
		value = amount.String()
	}
	return thorMessage{protoEncoder.New().
		Message(1, protoEncoder.New().Message(1, asset).String(2, value)).
		String(2, string(intent.Swap.Data)).
		Bytes(3, signer)}
}

// memo returns the memo of the transaction body.
func memo(intent txModel.TransferIntent) string {
	switch {
	case intent.Type.IsStake():
		return stakeMemo
	case intent.Type == txModel.TransactionTypeSwap && intent.Swap != nil:
		return string(intent.Swap.Data)
	}
	return intent.Memo
}

// messageCount is the number of messages an intent produces, used to scale the gas limit.
func messageCount(intent txModel.TransferIntent) int {
	if intent.Type == txModel.TransactionTypeStakeRewards && intent.Stake != nil && len(intent.Stake.Validators) > 0 {
		return len(intent.Stake.Validators)
	}
	return 1
}
