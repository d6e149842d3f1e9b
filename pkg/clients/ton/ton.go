// Package ton implements the lifecycle roles of TON for v4r2 wallets against
// the toncenter HTTP API. Messages are built as cells with tonutils-go.
package ton

import (
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

const (
	// expireWindow bounds how long a signed message stays valid, in seconds
	expireWindow = 600

	// networkFee is the flat fee estimate of a wallet transfer, in nanotons
	networkFee = 10_000_000
	// jettonTransferValue is attached to the sender's jetton wallet to pay for the transfer chain
	jettonTransferValue = 50_000_000
	// jettonWalletCreation is attached on top when the recipient's jetton wallet must be deployed
	jettonWalletCreation = 50_000_000

	jettonTransferOp = 0x0f8a7ea5

	defaultMode = int(wallet.PayGasSeparately | wallet.IgnoreErrors)
	maxMode     = defaultMode | int(wallet.CarryAllRemainingBalance)
)

var walletVersion = wallet.V4R2

// Client implements every lifecycle role for TON.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
	now    func() time.Time
}

// New creates the TON implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyTon),
		cm:              cm,
		logger:          l,
		now:             time.Now,
	}
}

// parseAddress accepts user-friendly and raw (workchain:hex) addresses.
func parseAddress(op txErrors.Op, s string) (*address.Address, error) {
	var (
		addr *address.Address
		err  error
	)
	if strings.Contains(s, ":") {
		addr, err = address.ParseRawAddr(s)
	} else {
		addr, err = address.ParseAddr(s)
	}
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, chain.Ton, fmt.Errorf("invalid address %q: %w", s, err))
	}
	return addr, nil
}

func sameAccount(a, b *address.Address) bool {
	return a.Workchain() == b.Workchain() && string(a.Data()) == string(b.Data())
}
