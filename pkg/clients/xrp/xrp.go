// Package xrp implements the lifecycle roles of the XRP Ledger against a
// rippled JSON-RPC endpoint. Transactions are serialized with the xrpl-go
// binary codec and signed locally with secp256k1.
package xrp

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	"go.uber.org/zap"
)

const (
	// ledgerWindow is how many ledgers after preload the transaction stays valid
	ledgerWindow = 12

	// currencyCodeLength is the hex length of a non-standard currency code
	currencyCodeLength = 40
)

// Client implements every lifecycle role for the XRP family.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the XRP implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyXrp),
		cm:              cm,
		logger:          l,
	}
}

func checkAddress(network chain.Chain, op txErrors.Op, address string) error {
	if !addresscodec.IsValidClassicAddress(address) {
		return txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid address %q", address))
	}
	return nil
}

// currencyCode returns the ledger code of a token symbol. Three letter symbols
// other than XRP are standard codes, longer ones are hex padded to 160 bits.
func currencyCode(network chain.Chain, op txErrors.Op, symbol string) (string, error) {
	switch {
	case symbol == "" || strings.EqualFold(symbol, "XRP"):
		return "", txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("invalid currency %q", symbol))
	case len(symbol) == 3:
		return symbol, nil
	case len(symbol) <= currencyCodeLength/2:
		code := strings.ToUpper(hex.EncodeToString([]byte(symbol)))
		return code + strings.Repeat("0", currencyCodeLength-len(code)), nil
	}
	return "", txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("currency %q is longer than 20 bytes", symbol))
}
