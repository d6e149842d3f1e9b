// Package aptos implements the lifecycle roles of Aptos over the node REST API.
// Transactions are BCS encoded and signed locally with ed25519.
package aptos

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

const (
	// maxGasAmount is the gas limit of transactions that are not simulated
	maxGasAmount = 1_500
	// expireWindow is how long a preloaded transaction stays valid, in seconds
	expireWindow = 3_600

	transferFunction      = "transfer"
	transferCoinsFunction = "transfer_coins"
	accountModule         = "aptos_account"

	// ed25519 authentication key scheme
	schemeEd25519 = 0x00
)

// Client implements every lifecycle role for Aptos.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
	now    func() time.Time
}

// New creates the Aptos implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyAptos),
		cm:              cm,
		logger:          l,
		now:             time.Now,
	}
}

// accountAddress is a 32 byte account address.
type accountAddress [32]byte

// String returns the long form 0x-prefixed address.
func (a accountAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// parseAddress accepts long and short form addresses, e.g. 0x1.
func parseAddress(op txErrors.Op, s string) (accountAddress, error) {
	var out accountAddress
	trimmed := strings.TrimPrefix(s, "0x")
	if !strings.HasPrefix(s, "0x") || trimmed == "" || len(trimmed) > 64 {
		return out, txErrors.New(txErrors.KindInvalidInput, op, chain.Aptos, fmt.Errorf("invalid address %q", s))
	}
	if len(trimmed)%2 == 1 {
		trimmed = "0" + trimmed
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, txErrors.New(txErrors.KindInvalidInput, op, chain.Aptos, fmt.Errorf("invalid address %q: %w", s, err))
	}
	copy(out[32-len(raw):], raw)
	return out, nil
}

// addressOf derives the account address of an ed25519 public key.
func addressOf(pub []byte) accountAddress {
	return accountAddress(sha3.Sum256(append(append([]byte{}, pub...), schemeEd25519)))
}

// structTag is a Move struct type such as 0x1::aptos_coin::AptosCoin.
type structTag struct {
	Address accountAddress
	Module  string
	Name    string
}

// parseStructTag parses a coin type of the form <address>::<module>::<name>.
func parseStructTag(op txErrors.Op, s string) (structTag, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return structTag{}, txErrors.New(txErrors.KindInvalidInput, op, chain.Aptos, fmt.Errorf("invalid coin type %q", s))
	}
	addr, err := parseAddress(op, parts[0])
	if err != nil {
		return structTag{}, err
	}
	return structTag{Address: addr, Module: parts[1], Name: parts[2]}, nil
}
