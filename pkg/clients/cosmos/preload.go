package cosmos

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

type baseAccount struct {
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
}

// accountResponse covers BaseAccount, module/eth accounts wrapping base_account,
// and vesting accounts wrapping base_vesting_account.base_account.
type accountResponse struct {
	Account struct {
		baseAccount
		BaseAccount        *baseAccount `json:"base_account"`
		BaseVestingAccount *struct {
			BaseAccount *baseAccount `json:"base_account"`
		} `json:"base_vesting_account"`
	} `json:"account"`
}

func (r accountResponse) base() baseAccount {
	switch {
	case r.Account.BaseAccount != nil:
		return *r.Account.BaseAccount
	case r.Account.BaseVestingAccount != nil && r.Account.BaseVestingAccount.BaseAccount != nil:
		return *r.Account.BaseVestingAccount.BaseAccount
	}
	return r.Account.baseAccount
}

type latestBlockResponse struct {
	Block struct {
		Header struct {
			ChainID string `json:"chain_id"`
			Height  string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

type validatorResponse struct {
	Validator struct {
		Description struct {
			Moniker string `json:"moniker"`
		} `json:"description"`
	} `json:"validator"`
}

// Preload fetches the account numbers and the chain id concurrently, and the
// stake target's display name when the intent has one.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	p, err := networkParams(network, txErrors.OpPreload)
	if err != nil {
		return nil, err
	}
	if intent.Type == txModel.TransactionTypeTokenApproval || intent.Type == txModel.TransactionTypeStakeWithdraw {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s is not available on %s", intent.Type, network))
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}
	if _, err := decodeAddress(network, txErrors.OpPreload, p.Prefix, intent.From.Address); err != nil {
		return nil, err
	}

	var (
		account       accountResponse
		block         latestBlockResponse
		validatorName string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.GetJSON(gctx, "/cosmos/auth/v1beta1/accounts/"+intent.From.Address, &account)
		if nodeClient.IsNotFound(err) {
			return txErrors.New(txErrors.KindAccountNotInitialized, txErrors.OpPreload, network, err)
		}
		return err
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/cosmos/base/tendermint/v1beta1/blocks/latest", &block)
	})
	if validator := stakeValidator(intent); validator != "" {
		g.Go(func() error {
			var resp validatorResponse
			if err := client.GetJSON(gctx, "/cosmos/staking/v1beta1/validators/"+validator, &resp); err != nil {
				c.logger.Sugar().Warnw("Failed to fetch validator name",
					zap.String("chain", string(network)),
					zap.String("validator", validator),
					zap.Error(err),
				)
				return nil
			}
			validatorName = resp.Validator.Description.Moniker
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := account.base()
	accountNumber, err := parseUint(base.AccountNumber)
	if err != nil {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, fmt.Errorf("invalid account number: %w", err))
	}
	sequence, err := parseUint(base.Sequence)
	if err != nil {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, fmt.Errorf("invalid sequence: %w", err))
	}
	chainID := block.Block.Header.ChainID
	if chainID == "" {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, errors.New("latest block has no chain id"))
	}

	c.logger.Sugar().Debugw("Preloaded Cosmos transaction",
		zap.String("chain", string(network)),
		zap.String("chainId", chainID),
		zap.Uint64("accountNumber", accountNumber),
		zap.Uint64("sequence", sequence),
	)
	return &txModel.SignerParams{
		Input: intent,
		ChainData: txModel.CosmosChainData{
			ChainID:       chainID,
			AccountNumber: accountNumber,
			Sequence:      sequence,
		},
		Fees:          staticFees(network, p, intent),
		ValidatorName: validatorName,
	}, nil
}

// stakeValidator is the validator whose name is shown for the intent, if any.
func stakeValidator(intent txModel.TransferIntent) string {
	switch intent.Type {
	case txModel.TransactionTypeStakeDelegate, txModel.TransactionTypeStakeUndelegate, txModel.TransactionTypeStakeRedelegate:
		if intent.Stake != nil {
			return intent.Stake.ValidatorID
		}
	}
	return ""
}

// staticFees returns the same flat fee for every priority. Amount and gas limit
// are fixed per transaction type, the limit scaled by the number of messages.
func staticFees(network chain.Chain, p chain.CosmosParams, intent txModel.TransferIntent) []txModel.Fee {
	gasPerMsg, amount := p.TransferGas, p.TransferFee
	if intent.Type.IsStake() {
		gasPerMsg, amount = p.StakeGas, p.StakeFee
	}
	limit := new(big.Int).SetUint64(gasPerMsg * uint64(messageCount(intent)))
	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		// configured fee amounts are never negative
		fee, _ := txModel.NewFee(priority, txModel.NativeAsset(network), big.NewInt(amount))
		fees = append(fees, fee.WithResourceLimit(limit, nil))
	}
	return fees
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
