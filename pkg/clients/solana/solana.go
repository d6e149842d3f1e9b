// Package solana implements the lifecycle roles of Solana over its JSON-RPC API.
// Transactions are assembled and serialized with solana-go.
package solana

import (
	"fmt"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	// baseFee is the signature fee of a single-signer transaction, in lamports
	baseFee = 5_000
	// computeUnitLimit is the compute budget requested by transfers
	computeUnitLimit = 100_000
	// minNativeUnitPrice and minTokenUnitPrice floor the priority fee, in micro-lamports per unit
	minNativeUnitPrice = 10_000
	minTokenUnitPrice  = 100_000
	// tokenAccountRent is the rent-exempt balance of a new associated token account
	tokenAccountRent = 2_039_280
)

var (
	tokenProgramID     = solana.TokenProgramID
	token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// Client implements every lifecycle role for Solana.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the Solana implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilySolana),
		cm:              cm,
		logger:          l,
	}
}

func parseKey(op txErrors.Op, s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, txErrors.New(txErrors.KindInvalidInput, op, chain.Solana, fmt.Errorf("invalid address %q: %w", s, err))
	}
	return key, nil
}

func parseTokenProgram(op txErrors.Op, s string) (solana.PublicKey, error) {
	switch s {
	case "", tokenProgramID.String():
		return tokenProgramID, nil
	case token2022ProgramID.String():
		return token2022ProgramID, nil
	}
	return solana.PublicKey{}, txErrors.New(txErrors.KindInvalidInput, op, chain.Solana, fmt.Errorf("unknown token program %s", s))
}

// associatedTokenAddress derives the associated token account of wallet for mint under program.
func associatedTokenAddress(wallet, mint, program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{wallet[:], program[:], mint[:]},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	return addr, err
}
