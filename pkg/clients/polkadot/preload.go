package polkadot

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type blockRef struct {
	Hash   string `json:"hash"`
	Height string `json:"height"`
}

type materialResponse struct {
	At          blockRef `json:"at"`
	GenesisHash string   `json:"genesisHash"`
	ChainName   string   `json:"chainName"`
	SpecName    string   `json:"specName"`
	SpecVersion string   `json:"specVersion"`
	TxVersion   string   `json:"txVersion"`
}

type balanceInfoResponse struct {
	Nonce string `json:"nonce"`
	Free  string `json:"free"`
}

type txRequest struct {
	Tx string `json:"tx"`
}

type feeEstimateResponse struct {
	PartialFee string `json:"partialFee"`
}

// Preload fetches the transaction material and the sender's nonce concurrently,
// then has the node estimate the fee of the unsigned transfer.
func (c *Client) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	network := intent.Chain()
	if intent.Type != txModel.TransactionTypeTransfer || !intent.Asset.Id.IsNative() {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpPreload, network, fmt.Errorf("%s of %s is not available on %s", intent.Type, intent.Asset.Id, network))
	}
	if err := intent.Validate(); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, network, err)
	}
	p, err := networkParams(network, txErrors.OpPreload)
	if err != nil {
		return nil, err
	}
	from, err := decodeAddress(network, p, txErrors.OpPreload, intent.From.Address)
	if err != nil {
		return nil, err
	}
	dest, err := decodeAddress(network, p, txErrors.OpPreload, intent.Destination.Address)
	if err != nil {
		return nil, err
	}
	client, err := chainManager.NodeClient(c.cm, network)
	if err != nil {
		return nil, err
	}

	var (
		material materialResponse
		balance  balanceInfoResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.GetJSON(gctx, "/transaction/material?noMeta=true", &material)
	})
	g.Go(func() error {
		return client.GetJSON(gctx, "/accounts/"+intent.From.Address+"/balance-info", &balance)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := chainData(material, balance, p.Period)
	if err != nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
	}

	// the fee estimate needs a well-formed extrinsic, the signature is not checked
	unsigned, err := buildExtrinsic(p, data, from, dest, intent.Amount, make([]byte, 64))
	if err != nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
	}
	var estimate feeEstimateResponse
	if err := client.PostJSON(ctx, "/transaction/fee-estimate", txRequest{Tx: hexutil.Encode(unsigned)}, &estimate); err != nil {
		return nil, withNodeMessage(network, txErrors.OpPreload, err)
	}
	partialFee, ok := new(big.Int).SetString(estimate.PartialFee, 10)
	if !ok {
		return nil, txErrors.New(txErrors.KindTransient, txErrors.OpPreload, network, fmt.Errorf("invalid partial fee %q", estimate.PartialFee))
	}

	fees := make([]txModel.Fee, 0, len(txModel.FeePriorities))
	for _, priority := range txModel.FeePriorities {
		fee, err := txModel.NewFee(priority, txModel.NativeAsset(network), partialFee)
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpPreload, network, err)
		}
		fees = append(fees, fee)
	}

	c.logger.Sugar().Debugw("Preloaded Polkadot transaction",
		zap.String("chain", string(network)),
		zap.Uint64("nonce", data.Nonce),
		zap.Uint64("block", data.BlockNumber),
		zap.String("fee", partialFee.String()),
	)
	return &txModel.SignerParams{Input: intent, ChainData: data, Fees: fees}, nil
}

func chainData(material materialResponse, balance balanceInfoResponse, period uint64) (txModel.PolkadotChainData, error) {
	height, err := strconv.ParseUint(material.At.Height, 10, 64)
	if err != nil {
		return txModel.PolkadotChainData{}, fmt.Errorf("invalid block height %q", material.At.Height)
	}
	spec, err := strconv.ParseUint(material.SpecVersion, 10, 32)
	if err != nil {
		return txModel.PolkadotChainData{}, fmt.Errorf("invalid spec version %q", material.SpecVersion)
	}
	txVersion, err := strconv.ParseUint(material.TxVersion, 10, 32)
	if err != nil {
		return txModel.PolkadotChainData{}, fmt.Errorf("invalid transaction version %q", material.TxVersion)
	}
	nonce, err := strconv.ParseUint(balance.Nonce, 10, 64)
	if err != nil {
		return txModel.PolkadotChainData{}, fmt.Errorf("invalid nonce %q", balance.Nonce)
	}
	return txModel.PolkadotChainData{
		GenesisHash:        material.GenesisHash,
		BlockHash:          material.At.Hash,
		BlockNumber:        height,
		SpecVersion:        uint32(spec),
		TransactionVersion: uint32(txVersion),
		Nonce:              nonce,
		Period:             period,
	}, nil
}
