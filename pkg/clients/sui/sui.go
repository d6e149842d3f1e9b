// Package sui implements the lifecycle roles of Sui over its JSON-RPC API.
// Transaction bytes are built by the node; signing happens locally with ed25519.
package sui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	suiCoinType = "0x2::sui::SUI"

	// gasBudget caps what a transaction may spend on gas, in MIST
	gasBudget = 25_000_000
	// defaultGasPrice is used when the node does not report a reference price
	defaultGasPrice = 750

	// ed25519 signature scheme flag
	schemeEd25519 = 0x00
)

// intentPrefix marks a transaction data intent on the Sui mainnet, version 0.
var intentPrefix = []byte{0, 0, 0}

// Client implements every lifecycle role for Sui.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the Sui implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilySui),
		cm:              cm,
		logger:          l,
	}
}

// checkAddress accepts 0x-prefixed 32-byte hex addresses and object ids.
func checkAddress(op txErrors.Op, s string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || !strings.HasPrefix(s, "0x") || len(raw) != 32 {
		return txErrors.New(txErrors.KindInvalidInput, op, chain.Sui, fmt.Errorf("invalid address %q", s))
	}
	return nil
}

// addressOf derives the account address of an ed25519 public key.
func addressOf(pub []byte) string {
	sum := blake2b.Sum256(append([]byte{schemeEd25519}, pub...))
	return "0x" + hex.EncodeToString(sum[:])
}
