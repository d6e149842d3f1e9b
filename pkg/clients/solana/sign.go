package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

var (
	errNoComputeBudget = errors.New("solana signing needs a compute unit limit")
	errForeignSigners  = errors.New("swap transaction expects signers other than the source account")
)

// Sign builds a compute-budgeted transfer, or signs the provider-built swap
// transaction as is, and returns the transaction base64 encoded.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.SolanaChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "solana", params.ChainData)
	}
	key, err := signingKey(privateKey)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	owner := key.PublicKey()
	if owner.String() != params.Input.From.Address {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, fmt.Errorf("key does not belong to %s", params.Input.From.Address))
	}

	var tx *solana.Transaction
	if params.Input.Type == txModel.TransactionTypeSwap {
		tx, err = swapTransaction(network, params.Input)
	} else {
		tx, err = transferTransaction(network, params.Input, data, owner, finalAmount, fee)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(owner) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{[]byte(base64.StdEncoding.EncodeToString(raw))}, nil
}

// signingKey accepts a 32-byte ed25519 seed or a 64-byte expanded key.
func signingKey(privateKey []byte) (solana.PrivateKey, error) {
	switch len(privateKey) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(privateKey)), nil
	case ed25519.PrivateKeySize:
		return solana.PrivateKey(append([]byte(nil), privateKey...)), nil
	}
	return nil, fmt.Errorf("private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
}

func transferTransaction(network chain.Chain, intent txModel.TransferIntent, data txModel.SolanaChainData, owner solana.PublicKey, amount *big.Int, fee txModel.Fee) (*solana.Transaction, error) {
	if fee.Limit == nil || fee.Limit.Units == nil || !fee.Limit.Units.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errNoComputeBudget)
	}
	blockhash, err := solana.HashFromBase58(data.Blockhash)
	if err != nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, fmt.Errorf("invalid blockhash: %w", err))
	}
	to, err := parseKey(txErrors.OpSign, intent.Destination.Address)
	if err != nil {
		return nil, err
	}
	if amount == nil || !amount.IsUint64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("amount %v out of range", amount))
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(uint32(fee.Limit.Units.Uint64())).Build(),
	}
	if price := fee.Limit.UnitPrice; price != nil && price.Sign() > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(price.Uint64()).Build())
	}

	if intent.Asset.Id.IsNative() {
		instructions = append(instructions, system.NewTransferInstruction(amount.Uint64(), owner, to).Build())
	} else {
		transfer, err := tokenInstructions(network, intent, data, owner, to, amount.Uint64())
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, transfer...)
	}
	if intent.Memo != "" {
		instructions = append(instructions, solana.NewInstruction(
			solana.MemoProgramID,
			solana.AccountMetaSlice{solana.Meta(owner).SIGNER().WRITE()},
			[]byte(intent.Memo),
		))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return tx, nil
}

// tokenInstructions returns a TransferChecked to the recipient's associated
// account, preceded by its creation when the account does not exist yet.
func tokenInstructions(network chain.Chain, intent txModel.TransferIntent, data txModel.SolanaChainData, owner, to solana.PublicKey, amount uint64) ([]solana.Instruction, error) {
	mint, err := parseKey(txErrors.OpSign, intent.Asset.Id.TokenID)
	if err != nil {
		return nil, err
	}
	program, err := parseTokenProgram(txErrors.OpSign, data.TokenProgram)
	if err != nil {
		return nil, err
	}
	source, err := parseKey(txErrors.OpSign, data.SenderTokenAddress)
	if err != nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, errNoSenderTokenAccount)
	}

	var out []solana.Instruction
	destination, err := associatedTokenAddress(to, mint, program)
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	if data.RecipientTokenAddress == "" {
		create := associatedtokenaccount.NewCreateInstruction(owner, to, mint).Build()
		out = append(out, withProgramAccount(create, program, destination))
	} else if destination, err = parseKey(txErrors.OpSign, data.RecipientTokenAddress); err != nil {
		return nil, err
	}

	transfer := token.NewTransferCheckedInstruction(
		amount,
		uint8(intent.Asset.Decimals),
		source,
		mint,
		destination,
		owner,
		nil,
	).Build()
	raw, err := transfer.Data()
	if err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	// token-2022 shares the instruction layout of the token program
	out = append(out, solana.NewInstruction(program, transfer.Accounts(), raw))
	return out, nil
}

// withProgramAccount rewrites the create instruction for token programs other
// than the default one, whose derived account and program account differ.
func withProgramAccount(create solana.Instruction, program, account solana.PublicKey) solana.Instruction {
	accounts := create.Accounts()
	raw, _ := create.Data()
	metas := make(solana.AccountMetaSlice, len(accounts))
	for i, meta := range accounts {
		m := *meta
		switch {
		case i == 1:
			m.PublicKey = account
		case m.PublicKey.Equals(tokenProgramID):
			m.PublicKey = program
		}
		metas[i] = &m
	}
	return solana.NewInstruction(create.ProgramID(), metas, raw)
}

// swapTransaction decodes the provider transaction. It is signed untouched, so
// it must need no other signer.
func swapTransaction(network chain.Chain, intent txModel.TransferIntent) (*solana.Transaction, error) {
	if intent.Swap == nil || len(intent.Swap.Data) == 0 {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, txModel.ErrMissingSwapData)
	}
	tx, err := solana.TransactionFromBase64(string(intent.Swap.Data))
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, fmt.Errorf("invalid swap transaction: %w", err))
	}
	if tx.Message.Header.NumRequiredSignatures != 1 {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errForeignSigners)
	}
	// providers ship a zeroed placeholder signature
	tx.Signatures = nil
	return tx, nil
}
