package evm

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/ethereum/go-ethereum/core/types"
)

// Broadcast submits one signed transaction and returns its hash.
func (c *Client) Broadcast(ctx context.Context, account txModel.Account, signed []byte, _ txModel.TransactionType) (string, error) {
	client, err := chainManager.EthClient(c.cm, account.Chain)
	if err != nil {
		return "", err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signed); err != nil {
		return "", txErrors.New(txErrors.KindInvalidInput, txErrors.OpBroadcast, account.Chain, fmt.Errorf("failed to decode transaction: %w", err))
	}
	if err := client.SendTransaction(ctx, tx); err != nil {
		return "", nodeClient.Classify(err)
	}
	return tx.Hash().Hex(), nil
}
