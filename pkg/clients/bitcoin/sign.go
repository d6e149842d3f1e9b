package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/gcash/bchd/bchec"
	bchtxscript "github.com/gcash/bchd/txscript"
	bchwire "github.com/gcash/bchd/wire"
)

var errInsufficientFunds = errors.New("insufficient funds")

// Sign builds and signs the transaction and returns it hex encoded, the form
// Blockbook accepts for submission. The fee amount is taken from fee as is;
// change below the dust limit is left to the miner.
func (c *Client) Sign(_ context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	network := params.Input.Chain()
	data, ok := params.ChainData.(txModel.UtxoChainData)
	if !ok {
		return nil, txErrors.ChainDataMismatch(network, "utxo", params.ChainData)
	}
	if fee.Amount == nil || !fee.Amount.IsInt64() || finalAmount == nil || !finalAmount.IsInt64() {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errors.New("amount out of range"))
	}

	from, err := decodeAddress(network, txErrors.OpSign, params.Input.From.Address)
	if err != nil {
		return nil, err
	}
	to, err := decodeAddress(network, txErrors.OpSign, destination(params.Input))
	if err != nil {
		return nil, err
	}
	memo, err := memoScript(network, txErrors.OpSign, params.Input)
	if err != nil {
		return nil, err
	}

	amount, feeAmount := finalAmount.Int64(), fee.Amount.Int64()
	useMax := params.Input.UseMaxAmount
	inputs, total := selectForFee(data.Utxos, amount, feeAmount, useMax)
	if useMax {
		amount = total - feeAmount
	}
	if amount <= 0 || total < amount+feeAmount {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, network, errInsufficientFunds)
	}

	tx := wire.NewMsgTx(txVersion(network))
	for _, u := range inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, network, fmt.Errorf("invalid utxo txid %q: %w", u.TxID, err))
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(amount, to.pkScript))
	if memo != nil {
		tx.AddTxOut(wire.NewTxOut(0, memo))
	}
	if change := total - amount - feeAmount; !useMax && change >= dustLimit {
		tx.AddTxOut(wire.NewTxOut(change, from.pkScript))
	}

	if len(privateKey) != btcec.PrivKeyBytesLen {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, errors.New("invalid private key length"))
	}
	if err := signInputs(network, tx, inputs, from, privateKey); err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, txErrors.New(txErrors.KindSigning, txErrors.OpSign, network, err)
	}
	return [][]byte{[]byte(hex.EncodeToString(buf.Bytes()))}, nil
}

func txVersion(c chain.Chain) int32 {
	if c == chain.Doge {
		return 1
	}
	return wire.TxVersion + 1
}

func signInputs(network chain.Chain, tx *wire.MsgTx, inputs []txModel.Utxo, from script, privateKey []byte) error {
	if usesForkID(network) {
		return signForkID(tx, inputs, from, privateKey)
	}
	key, _ := btcec.PrivKeyFromBytes(privateKey)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, u := range inputs {
		fetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, wire.NewTxOut(u.Value, from.pkScript))
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, u := range inputs {
		if from.segwit {
			witness, err := txscript.WitnessSignature(tx, sigHashes, i, u.Value, from.pkScript, txscript.SigHashAll, key, true)
			if err != nil {
				return err
			}
			tx.TxIn[i].Witness = witness
			continue
		}
		sigScript, err := txscript.SignatureScript(tx, i, from.pkScript, txscript.SigHashAll, key, true)
		if err != nil {
			return err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

// signForkID signs P2PKH inputs with SIGHASH_ALL|SIGHASH_FORKID. The unsigned
// transaction is handed to bchd in its wire form and the resulting signature
// scripts are copied back.
func signForkID(tx *wire.MsgTx, inputs []txModel.Utxo, from script, privateKey []byte) error {
	var unsigned bytes.Buffer
	if err := tx.Serialize(&unsigned); err != nil {
		return err
	}
	bchTx := bchwire.NewMsgTx(tx.Version)
	if err := bchTx.Deserialize(&unsigned); err != nil {
		return err
	}
	key, pub := bchec.PrivKeyFromBytes(bchec.S256(), privateKey)
	hashType := bchtxscript.SigHashAll | bchtxscript.SigHashForkID
	for i, u := range inputs {
		sig, err := bchtxscript.RawTxInECDSASignature(bchTx, i, from.pkScript, hashType, key, u.Value)
		if err != nil {
			return err
		}
		sigScript, err := bchtxscript.NewScriptBuilder().
			AddData(sig).
			AddData(pub.SerializeCompressed()).
			Script()
		if err != nil {
			return err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}
