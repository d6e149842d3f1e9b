package aptos

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoSimulation = errors.New("node returned no simulated transaction")

type accountResponse struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type gasEstimateResponse struct {
	DeprioritizedGasEstimate uint64 `json:"deprioritized_gas_estimate"`
	GasEstimate              uint64 `json:"gas_estimate"`
	PrioritizedGasEstimate   uint64 `json:"prioritized_gas_estimate"`
}

// price returns the gas unit price for a priority.
func (r gasEstimateResponse) price(priority txModel.FeePriority) uint64 {
	switch priority {
	case txModel.FeePrioritySlow:
		return r.GasEstimate
	case txModel.FeePriorityFast:
		return r.PrioritizedGasEstimate * 2
	}
	return r.PrioritizedGasEstimate
}

type ledgerInfoResponse struct {
	ChainID         uint8  `json:"chain_id"`
	LedgerVersion   string `json:"ledger_version"`
	BlockHeight     string `json:"block_height"`
	LedgerTimestamp string `json:"ledger_timestamp"`
}

type entryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
}

type simulationSignature struct {
	Type string `json:"type"`
}

type simulationRequest struct {
	Sender                  string               `json:"sender"`
	SequenceNumber          string               `json:"sequence_number"`
	MaxGasAmount            string               `json:"max_gas_amount"`
	GasUnitPrice            string               `json:"gas_unit_price"`
	ExpirationTimestampSecs string               `json:"expiration_timestamp_secs"`
	Payload                 entryFunctionPayload `json:"payload"`
	Signature               simulationSignature  `json:"signature"`
}

type simulatedTransaction struct {
	Success  bool   `json:"success"`
	GasUsed  string `json:"gas_used"`
	VMStatus string `json:"vm_status"`
}

// Preload fetches the sequence number, gas estimates and chain id concurrently.
// Native transfers are simulated for their gas use; everything else takes the
// default gas limit.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	switch intent.Type {
	case txModel.TransactionTypeTransfer, txModel.TransactionTypeSwap:
	default:
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	if err := intent.Validate(); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, err)
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	sender, err := parseAddress(txErrors.OpPreload, intent.From.Address)
	if err != nil {
		return nil, err
	}
	if intent.Type == txModel.TransactionTypeTransfer {
		if _, err := parseAddress(txErrors.OpPreload, intent.Destination.Address); err != nil {
			return nil, err
		}
		if !intent.Asset.Id.IsNative() {
			if _, err := parseStructTag(txErrors.OpPreload, intent.Asset.Id.TokenID); err != nil {
				return nil, err
			}
		}
	}

	var (
		sequence uint64
		gas      gasEstimateResponse
		ledger   ledgerInfoResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sequence, err = accountSequence(gctx, client, network, sender)
		return err
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/v1/estimate_gas_price", &gas)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/v1", &ledger)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ledger.ChainID == 0 {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errors.New("ledger info has no chain id"))
	}
	expireAt := uint64(c.now().Unix()) + expireWindow

	limit := uint64(maxGasAmount)
	if intent.Type == txModel.TransactionTypeSwap && intent.Swap.GasLimit != nil && intent.Swap.GasLimit.IsUint64() {
		limit = intent.Swap.GasLimit.Uint64()
	}
	if intent.Type == txModel.TransactionTypeTransfer && intent.Asset.Id.IsNative() {
		limit, err = simulate(ctx, client, intent, sender, sequence, gas.price(txModel.FeePriorityNormal), expireAt)
		if err != nil {
			return nil, err
		}
	}

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		fee, err := txModel.NewGasFee(priority, txModel.NativeAsset(network),
			new(big.Int).SetUint64(limit), new(big.Int).SetUint64(gas.price(priority)), nil)
		if err != nil {
			return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, err)
		}
		fees = append(fees, fee)
	}

	c.logger.Sugar().Debugw("Preloaded Aptos transaction",
		zap.String("chain", string(network)),
		zap.Uint64("sequence", sequence),
		zap.Uint64("gasLimit", limit),
	)
	return &txModel.SignerParams{
		Input: intent,
		ChainData: txModel.AptosChainData{
			Sequence: sequence,
			ChainID:  ledger.ChainID,
			ExpireAt: expireAt,
		},
		Fees: fees,
	}, nil
}

// accountSequence returns the next sequence number of the account. An account
// the node does not know yet starts at zero.
func accountSequence(ctx context.Context, client *nodeClient.Client, network chain.Chain, addr accountAddress) (uint64, error) {
	var account accountResponse
	if err := client.GetJSON(ctx, "/v1/accounts/"+addr.String(), &account); err != nil {
		if nodeClient.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	sequence, err := strconv.ParseUint(account.SequenceNumber, 10, 64)
	if err != nil {
		return 0, txErrors.New(txErrors.KindAccountNotInitialized, txErrors.OpPreload, network, fmt.Errorf("invalid sequence number %q", account.SequenceNumber))
	}
	return sequence, nil
}

// simulate runs the native transfer without a signature and returns the gas it used.
func simulate(ctx context.Context, client *nodeClient.Client, intent txModel.TransferIntent, sender accountAddress, sequence, price, expireAt uint64) (uint64, error) {
	network := intent.Chain()
	req := simulationRequest{
		Sender:                  sender.String(),
		SequenceNumber:          strconv.FormatUint(sequence, 10),
		MaxGasAmount:            strconv.Itoa(maxGasAmount),
		GasUnitPrice:            strconv.FormatUint(price, 10),
		ExpirationTimestampSecs: strconv.FormatUint(expireAt, 10),
		Payload: entryFunctionPayload{
			Type:          "entry_function_payload",
			Function:      "0x1::" + accountModule + "::" + transferFunction,
			TypeArguments: []string{},
			Arguments:     []string{intent.Destination.Address, intent.Amount.String()},
		},
		Signature: simulationSignature{Type: "no_account_signature"},
	}
	var simulated []simulatedTransaction
	if err := client.PostJSON(ctx, "/v1/transactions/simulate", req, &simulated); err != nil {
		return 0, err
	}
	if len(simulated) == 0 {
		return 0, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errNoSimulation)
	}
	result := simulated[0]
	if !result.Success {
		return 0, txErrors.Rejected(txErrors.OpPreload, network, result.VMStatus)
	}
	gasUsed, err := strconv.ParseUint(result.GasUsed, 10, 64)
	if err != nil || gasUsed == 0 {
		return 0, txErrors.Rejected(txErrors.OpPreload, network, fmt.Sprintf("simulation reported no gas used: %s", result.VMStatus))
	}
	return gasUsed, nil
}
