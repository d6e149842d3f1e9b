package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
)

type statusChecker interface {
	Status(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error)
}

// waitForTerminal polls the transaction every interval until it leaves the pending
// state or timeout elapses. Transient failures are retried; any other error stops
// polling. A NewHash reported by the network replaces the polled id.
func waitForTerminal(ctx context.Context, checker statusChecker, req txModel.TransactionStateRequest, interval, timeout time.Duration, l *zap.Logger) (txModel.TransactionChanges, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := txModel.PendingChanges()
	for {
		changes, err := checker.Status(ctx, req)
		switch {
		case err == nil:
			last = changes
			if changes.NewHash != "" && changes.NewHash != req.Hash {
				l.Sugar().Infow("Transaction replaced", "chain", req.Chain, "hash", req.Hash, "newHash", changes.NewHash)
				req.Hash = changes.NewHash
			}
			if changes.State.IsTerminal() {
				return changes, nil
			}
			l.Sugar().Debugw("Transaction pending", "chain", req.Chain, "hash", req.Hash)
		case txErrors.IsRetryable(err):
			l.Sugar().Warnw("Status query failed, retrying", "chain", req.Chain, "hash", req.Hash, zap.Error(err))
		default:
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("transaction %s still %s: %w", req.Hash, last.State, ctx.Err())
		case <-ticker.C:
		}
	}
}
