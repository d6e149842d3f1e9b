package tron

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/erc20"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// transfer and trigger transactions stay under this many bytes of bandwidth
	transferBandwidth = 300
	// freeze and unfreeze carry a vote contract alongside
	stakeBandwidth = 580
	sunPerBandwidth = 1000

	// energy estimates are padded by this percentage
	energyMarginPercent = 120

	defaultEnergyFee           = 420
	defaultCreateAccountFee    = 100_000
	defaultCreateAccountSystem = 1_000_000
)

var errNoBlock = errors.New("node returned no block")

type blockResponse struct {
	BlockID     string `json:"blockID"`
	BlockHeader struct {
		RawData struct {
			Number         int64  `json:"number"`
			TxTrieRoot     string `json:"txTrieRoot"`
			WitnessAddress string `json:"witness_address"`
			ParentHash     string `json:"parentHash"`
			Version        int32  `json:"version"`
			Timestamp      int64  `json:"timestamp"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

type vote struct {
	VoteAddress string `json:"vote_address"`
	VoteCount   int64  `json:"vote_count"`
}

type accountResponse struct {
	Address     string `json:"address"`
	AccountName string `json:"account_name"`
	Balance     int64  `json:"balance"`
	Votes       []vote `json:"votes"`
}

type accountResourceResponse struct {
	FreeNetLimit int64 `json:"freeNetLimit"`
	FreeNetUsed  int64 `json:"freeNetUsed"`
	NetLimit     int64 `json:"NetLimit"`
	NetUsed      int64 `json:"NetUsed"`
}

func (r accountResourceResponse) available() int64 {
	return r.FreeNetLimit - r.FreeNetUsed + r.NetLimit - r.NetUsed
}

type chainParametersResponse struct {
	ChainParameter []struct {
		Key   string `json:"key"`
		Value int64  `json:"value"`
	} `json:"chainParameter"`
}

func (r chainParametersResponse) get(key string, fallback int64) int64 {
	for _, p := range r.ChainParameter {
		if p.Key == key {
			return p.Value
		}
	}
	return fallback
}

type constantContractResponse struct {
	EnergyUsed int64 `json:"energy_used"`
	Result     struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
}

type addressRequest struct {
	Address string `json:"address"`
	Visible bool   `json:"visible"`
}

// Preload fetches the reference block, the account resources, the chain fee
// parameters and whatever the transaction type needs on top, concurrently.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	if intent.Type == txModel.TransactionTypeSwap {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on tron", intent.Type))
	}
	if err := intent.Validate(); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, err)
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	if _, err := decodeAddress(txErrors.OpPreload, intent.From.Address); err != nil {
		return nil, err
	}
	switch intent.Type {
	case txModel.TransactionTypeStakeDelegate, txModel.TransactionTypeStakeUndelegate:
		if _, err := decodeAddress(txErrors.OpPreload, intent.Stake.ValidatorID); err != nil {
			return nil, err
		}
	case txModel.TransactionTypeStakeRedelegate:
		for _, id := range []string{intent.Stake.SrcValidatorID, intent.Stake.ValidatorID} {
			if _, err := decodeAddress(txErrors.OpPreload, id); err != nil {
				return nil, err
			}
		}
	}
	call, err := constantCall(intent)
	if err != nil {
		return nil, err
	}
	isTransfer := intent.Type == txModel.TransactionTypeTransfer
	if isTransfer {
		if _, err := decodeAddress(txErrors.OpPreload, intent.Destination.Address); err != nil {
			return nil, err
		}
	}

	var (
		block      blockResponse
		resources  accountResourceResponse
		parameters chainParametersResponse
		recipient  accountResponse
		sender     accountResponse
		energy     constantContractResponse
		witness    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.PostJSON(gctx, "/wallet/getnowblock", struct{}{}, &block)
	})
	g.Go(func() error {
		return client.PostJSON(gctx, "/wallet/getaccountresource", addressRequest{intent.From.Address, true}, &resources)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/wallet/getchainparameters", &parameters)
	})
	if isTransfer {
		g.Go(func() error {
			return client.PostJSON(gctx, "/wallet/getaccount", addressRequest{intent.Destination.Address, true}, &recipient)
		})
	}
	if intent.Type.IsStake() {
		g.Go(func() error {
			return client.PostJSON(gctx, "/wallet/getaccount", addressRequest{intent.From.Address, true}, &sender)
		})
		if id := validatorOf(intent); id != "" {
			g.Go(func() error {
				witness = c.witnessName(gctx, client, network, id)
				return nil
			})
		}
	}
	if call != nil {
		g.Go(func() error {
			return client.PostJSON(gctx, "/wallet/triggerconstantcontract", call, &energy)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if block.BlockID == "" {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errNoBlock)
	}
	if call != nil && !energy.Result.Result {
		return nil, txErrors.Rejected(txErrors.OpPreload, network, decodeMessage(energy.Result.Message))
	}

	raw := block.BlockHeader.RawData
	data := txModel.TronChainData{
		BlockNumber:    raw.Number,
		BlockID:        block.BlockID,
		Timestamp:      raw.Timestamp,
		ParentHash:     raw.ParentHash,
		WitnessAddress: raw.WitnessAddress,
		TxTrieRoot:     raw.TxTrieRoot,
		Version:        raw.Version,
	}
	if intent.Type.IsStake() {
		data.Votes = nextVotes(intent, sender.Votes)
	}

	newAccount := isTransfer && recipient.Address == ""
	amount := flatFee(intent, data, resources.available(), parameters, energy.EnergyUsed, newAccount)
	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		fee, err := txModel.NewFee(priority, txModel.NativeAsset(network), amount)
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
		}
		fees = append(fees, fee)
	}

	c.logger.Sugar().Debugw("Preloaded Tron transaction",
		zap.String("chain", string(network)),
		zap.Int64("block", data.BlockNumber),
		zap.Bool("newAccount", newAccount),
		zap.String("fee", amount.String()),
	)
	return &txModel.SignerParams{
		Input:         intent,
		ChainData:     data,
		Fees:          fees,
		ValidatorName: witness,
	}, nil
}

type constantContractRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	Visible          bool   `json:"visible"`
}

// constantCall returns the dry-run request estimating the energy of a token
// transfer or approval, nil for every other transaction.
func constantCall(intent txModel.TransferIntent) (*constantContractRequest, error) {
	var (
		contractAddr string
		selector     string
		calldata     []byte
		err          error
	)
	switch {
	case intent.Type == txModel.TransactionTypeTransfer && !intent.Asset.Id.IsNative():
		to, derr := decodeAddress(txErrors.OpPreload, intent.Destination.Address)
		if derr != nil {
			return nil, derr
		}
		contractAddr = intent.Asset.Id.TokenID
		selector = "transfer(address,uint256)"
		calldata, err = erc20.Transfer(evmAddress(to), intent.Amount)
	case intent.Type == txModel.TransactionTypeTokenApproval:
		spender, derr := decodeAddress(txErrors.OpPreload, intent.Approval.Spender)
		if derr != nil {
			return nil, derr
		}
		contractAddr = intent.Approval.Token
		selector = "approve(address,uint256)"
		calldata, err = erc20.Approve(evmAddress(spender), erc20.MaxAllowance)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, intent.Chain(), err)
	}
	if _, err := decodeAddress(txErrors.OpPreload, contractAddr); err != nil {
		return nil, err
	}
	return &constantContractRequest{
		OwnerAddress:     intent.From.Address,
		ContractAddress:  contractAddr,
		FunctionSelector: selector,
		Parameter:        hex.EncodeToString(calldata[4:]),
		Visible:          true,
	}, nil
}

// flatFee is the burn in sun for bandwidth the account cannot cover, energy,
// and account creation. Tron has no fee market, so every priority pays it.
func flatFee(intent txModel.TransferIntent, data txModel.TronChainData, bandwidth int64, parameters chainParametersResponse, energyUsed int64, newAccount bool) *big.Int {
	fee := new(big.Int)
	needed := int64(transferBandwidth)
	switch intent.Type {
	case txModel.TransactionTypeStakeDelegate:
		needed = stakeBandwidth
	case txModel.TransactionTypeStakeUndelegate:
		needed = stakeBandwidth
		if len(data.Votes) > 0 {
			needed *= 2
		}
	}
	if bandwidth < needed {
		fee.Add(fee, big.NewInt(needed*sunPerBandwidth))
	}

	if energyUsed > 0 {
		energy := big.NewInt(energyUsed)
		energy.Mul(energy, big.NewInt(parameters.get("getEnergyFee", defaultEnergyFee)))
		energy.Mul(energy, big.NewInt(energyMarginPercent))
		energy.Div(energy, big.NewInt(100))
		fee.Add(fee, energy)
	}

	if newAccount {
		if intent.Asset.Id.IsNative() {
			fee.Add(fee, big.NewInt(parameters.get("getCreateAccountFee", defaultCreateAccountFee)))
		}
		fee.Add(fee, big.NewInt(parameters.get("getCreateNewAccountFeeInSystemContract", defaultCreateAccountSystem)))
	}
	return fee
}

func validatorOf(intent txModel.TransferIntent) string {
	switch intent.Type {
	case txModel.TransactionTypeStakeDelegate, txModel.TransactionTypeStakeRedelegate:
		if intent.Stake != nil {
			return intent.Stake.ValidatorID
		}
	}
	return ""
}

// nextVotes returns the vote set the account holds once the staking change
// lands, in whole TRX. Nil means the votes stay untouched.
func nextVotes(intent txModel.TransferIntent, current []vote) map[string]int64 {
	votes := make(map[string]int64, len(current)+1)
	for _, v := range current {
		votes[v.VoteAddress] += v.VoteCount
	}
	trx := new(big.Int).Div(intent.Amount, big.NewInt(sunPerTrx)).Int64()

	switch intent.Type {
	case txModel.TransactionTypeStakeDelegate:
		votes[intent.Stake.ValidatorID] += trx
	case txModel.TransactionTypeStakeUndelegate:
		held, ok := votes[intent.Stake.ValidatorID]
		if !ok {
			return nil
		}
		if held <= trx {
			delete(votes, intent.Stake.ValidatorID)
		} else {
			votes[intent.Stake.ValidatorID] = held - trx
		}
	case txModel.TransactionTypeStakeRedelegate:
		moved := min(trx, votes[intent.Stake.SrcValidatorID])
		if rest := votes[intent.Stake.SrcValidatorID] - moved; rest > 0 {
			votes[intent.Stake.SrcValidatorID] = rest
		} else {
			delete(votes, intent.Stake.SrcValidatorID)
		}
		if moved > 0 {
			votes[intent.Stake.ValidatorID] += moved
		}
	default:
		return nil
	}
	return votes
}

func sortedWitnesses(votes map[string]int64) []string {
	return slices.Sorted(maps.Keys(votes))
}

// witnessName reads the witness account name. Failures degrade to no name.
func (c *Client) witnessName(ctx context.Context, client *nodeClient.Client, network chain.Chain, address string) string {
	var account accountResponse
	if err := client.PostJSON(ctx, "/wallet/getaccount", addressRequest{address, true}, &account); err != nil {
		c.logger.Sugar().Warnw("Failed to fetch witness name",
			zap.String("chain", string(network)),
			zap.String("witness", address),
			zap.Error(err),
		)
		return ""
	}
	return account.AccountName
}

// decodeMessage returns the node's hex encoded message as text, or as is when it is not hex.
func decodeMessage(message string) string {
	if raw, err := hex.DecodeString(message); err == nil && len(raw) > 0 {
		return string(raw)
	}
	return message
}
