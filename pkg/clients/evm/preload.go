package evm

import (
	"context"
	"errors"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/Layr-Labs/multichain-tx-go/pkg/util"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	feeHistoryBlocks = 10
	// transferGas is the intrinsic gas of a plain value transfer, used without a buffer
	transferGas = 21_000
)

var errSwapGasLimit = errors.New("a swap preceded by an approval needs a provider gas limit")

// feeHistoryPercentiles are the reward percentiles for Slow, Normal and Fast tips.
var feeHistoryPercentiles = []float64{25, 50, 75}

// Preload fetches the nonce, fee history and gas estimate of the intent concurrently.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	params, ok := chain.Evm(network)
	if !ok {
		return nil, txErrors.Unsupported(txErrors.OpPreload, network)
	}
	client, err := chainManager.EthClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	from, err := parseAddress(network, txErrors.OpPreload, intent.From.Address)
	if err != nil {
		return nil, err
	}
	main, err := mainCall(intent, txErrors.OpPreload, intent.Amount)
	if err != nil {
		return nil, err
	}

	approval := swapApproval(intent)
	var approve call
	if approval != nil {
		if intent.Swap.GasLimit == nil || intent.Swap.GasLimit.Sign() <= 0 {
			// the swap reverts until the approval is mined, so it cannot be estimated yet
			return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, errSwapGasLimit)
		}
		if approve, err = approvalCall(network, txErrors.OpPreload, approval); err != nil {
			return nil, err
		}
	}

	var (
		nonce       uint64
		history     *ethereum.FeeHistory
		gasLimit    uint64
		approvalGas uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nonce, err = client.PendingNonceAt(gctx, from)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = client.FeeHistory(gctx, feeHistoryBlocks, nil, feeHistoryPercentiles)
		return err
	})
	if intent.Type == txModel.TransactionTypeSwap && intent.Swap.GasLimit != nil && intent.Swap.GasLimit.Sign() > 0 {
		gasLimit = intent.Swap.GasLimit.Uint64()
	} else {
		g.Go(func() error {
			estimate, err := client.EstimateGas(gctx, msg(from, main))
			if err != nil {
				return err
			}
			gasLimit = addGasBuffer(estimate)
			return nil
		})
	}
	if approval != nil {
		g.Go(func() error {
			estimate, err := client.EstimateGas(gctx, msg(from, approve))
			if err != nil {
				return err
			}
			approvalGas = addGasBuffer(estimate)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nodeClient.Classify(err)
	}

	useMax := intent.UseMaxAmount && intent.Asset.Id.IsNative()
	fees, err := gasFees(network, history, big.NewInt(params.MinPriorityFee), gasLimit, approvalGas, useMax)
	if err != nil {
		return nil, txErrors.New(txErrors.KindRejected, txErrors.OpPreload, network, err)
	}

	c.logger.Sugar().Debugw("Preloaded EVM transaction",
		zap.String("chain", string(network)),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gasLimit", gasLimit),
	)
	return &txModel.SignerParams{
		Input: intent,
		ChainData: txModel.EvmChainData{
			ChainID:          big.NewInt(params.ChainID),
			Nonce:            nonce,
			ApprovalGasLimit: approvalGas,
		},
		Fees: fees,
	}, nil
}

func msg(from common.Address, c call) ethereum.CallMsg {
	to := c.to
	return ethereum.CallMsg{From: from, To: &to, Value: c.value, Data: c.data}
}

// addGasBuffer adds 50% to a gas estimate. Plain transfers cost exactly 21000 and are kept.
func addGasBuffer(estimate uint64) uint64 {
	if estimate == transferGas {
		return estimate
	}
	return estimate + estimate/2
}

// gasFees builds one EIP-1559 fee per priority. The tip of a priority is the mean
// of its reward percentile over the history window, floored at minTip;
// the max gas price allows the latest base fee to rise 50%.
func gasFees(network chain.Chain, history *ethereum.FeeHistory, minTip *big.Int, gasLimit, approvalGas uint64, useMax bool) ([]txModel.Fee, error) {
	baseFee := new(big.Int)
	if history != nil && len(history.BaseFee) > 0 {
		if latest := history.BaseFee[len(history.BaseFee)-1]; latest != nil {
			baseFee.Set(latest)
		}
	}
	raisedBase := new(big.Int).Div(new(big.Int).Mul(baseFee, big.NewInt(3)), big.NewInt(2))
	limit := new(big.Int).SetUint64(gasLimit)

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for i, priority := range txModel.FeePriorities {
		var rewards []*big.Int
		if history != nil {
			rewards = util.Map(history.Reward, func(r []*big.Int, _ uint64) *big.Int {
				if i < len(r) {
					return r[i]
				}
				return nil
			})
		}
		tip := util.MaxBig(util.MeanBig(rewards), minTip)
		maxGasPrice := new(big.Int).Add(raisedBase, tip)
		minerFee := tip
		if useMax {
			// spending the whole balance needs the fee to be exactly limit × price
			minerFee = maxGasPrice
		}
		fee, err := txModel.NewGasFee(priority, txModel.NativeAsset(network), limit, maxGasPrice, minerFee)
		if err != nil {
			return nil, err
		}
		if approvalGas > 0 {
			fee = fee.WithOption(txModel.FeeOptionTokenApproval, new(big.Int).Mul(new(big.Int).SetUint64(approvalGas), maxGasPrice))
		}
		fees = append(fees, fee)
	}
	return fees, nil
}
