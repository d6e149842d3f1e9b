// Package bitcoin implements the lifecycle roles of Bitcoin-like UTXO networks
// against a Blockbook REST node. Transactions are built and signed with btcd;
// Bitcoin Cash addresses and SIGHASH_FORKID signatures go through bchd.
package bitcoin

import (
	"fmt"
	"sort"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	bchchaincfg "github.com/gcash/bchd/chaincfg"
	bchtxscript "github.com/gcash/bchd/txscript"
	"github.com/gcash/bchutil"
	"go.uber.org/zap"
)

const (
	// dustLimit is the smallest change output worth creating, in satoshi
	dustLimit = 546

	// virtual sizes used for fee estimation
	segwitOverhead = 11
	segwitInput    = 68
	segwitOutput   = 31
	legacyOverhead = 10
	legacyInput    = 148
	legacyOutput   = 34
)

var (
	litecoinParams = func() chaincfg.Params {
		p := chaincfg.MainNetParams
		p.Name = "litecoin"
		p.Net = 0xdbb6c0fb
		p.Bech32HRPSegwit = "ltc"
		p.PubKeyHashAddrID = 0x30
		p.ScriptHashAddrID = 0x32
		p.PrivateKeyID = 0xb0
		return p
	}()
	dogeParams = func() chaincfg.Params {
		p := chaincfg.MainNetParams
		p.Name = "dogecoin"
		p.Net = 0xc0c0c0c0
		p.Bech32HRPSegwit = ""
		p.PubKeyHashAddrID = 0x1e
		p.ScriptHashAddrID = 0x16
		p.PrivateKeyID = 0x9e
		return p
	}()
)

func init() {
	// bech32 prefixes are only recognized for registered networks
	if err := chaincfg.Register(&litecoinParams); err != nil {
		panic(err)
	}
}

// netParams returns the address parameters of a network. Bitcoin Cash
// addresses are decoded with bchutil instead, see decodeAddress.
func netParams(c chain.Chain) *chaincfg.Params {
	switch c {
	case chain.Litecoin:
		return &litecoinParams
	case chain.Doge:
		return &dogeParams
	}
	return &chaincfg.MainNetParams
}

// usesForkID reports whether signatures commit to the amount with SIGHASH_FORKID.
func usesForkID(c chain.Chain) bool {
	return c == chain.BitcoinCash
}

// Client implements every lifecycle role for the Bitcoin family.
type Client struct {
	chain.FamilySupporter
	cm     chainManager.IChainManager
	logger *zap.Logger
}

// New creates the UTXO implementation.
func New(cm chainManager.IChainManager, l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	return &Client{
		FamilySupporter: chain.FamilySupporter(chain.FamilyBitcoin),
		cm:              cm,
		logger:          l,
	}
}

// script is the decoded form of an address.
type script struct {
	pkScript []byte
	segwit   bool
}

func decodeAddress(c chain.Chain, op txErrors.Op, address string) (script, error) {
	if c == chain.BitcoinCash {
		return decodeCashAddress(op, address)
	}
	addr, err := btcutil.DecodeAddress(address, netParams(c))
	if err != nil {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, c, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if !addr.IsForNet(netParams(c)) {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, c, fmt.Errorf("address %q belongs to another network", address))
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, c, err)
	}
	_, segwit := addr.(*btcutil.AddressWitnessPubKeyHash)
	return script{pkScript: pkScript, segwit: segwit}, nil
}

// decodeCashAddress accepts cashaddr, with or without the bitcoincash: prefix,
// and legacy base58 addresses.
func decodeCashAddress(op txErrors.Op, address string) (script, error) {
	addr, err := bchutil.DecodeAddress(address, &bchchaincfg.MainNetParams)
	if err != nil {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, chain.BitcoinCash, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if !addr.IsForNet(&bchchaincfg.MainNetParams) {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, chain.BitcoinCash, fmt.Errorf("address %q belongs to another network", address))
	}
	pkScript, err := bchtxscript.PayToAddrScript(addr)
	if err != nil {
		return script{}, txErrors.New(txErrors.KindInvalidInput, op, chain.BitcoinCash, err)
	}
	return script{pkScript: pkScript}, nil
}

// sortUtxos orders outputs by value descending, then txid and vout ascending.
func sortUtxos(utxos []txModel.Utxo) []txModel.Utxo {
	out := append([]txModel.Utxo(nil), utxos...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		if out[i].TxID != out[j].TxID {
			return out[i].TxID < out[j].TxID
		}
		return out[i].Vout < out[j].Vout
	})
	return out
}

// vsize estimates the virtual size of a transaction. extra is the size of
// outputs not paying to an address, such as a swap memo.
func vsize(segwit bool, inputs, outputs int, extra int64) int64 {
	if segwit {
		return int64(segwitOverhead+inputs*segwitInput+outputs*segwitOutput) + extra
	}
	return int64(legacyOverhead+inputs*legacyInput+outputs*legacyOutput) + extra
}

// memoScript returns the OP_RETURN script carrying a swap memo, or nil when the
// intent is not a swap.
func memoScript(network chain.Chain, op txErrors.Op, intent txModel.TransferIntent) ([]byte, error) {
	if intent.Type != txModel.TransactionTypeSwap {
		return nil, nil
	}
	if intent.Swap == nil || len(intent.Swap.Data) == 0 {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, txModel.ErrMissingSwapData)
	}
	pkScript, err := txscript.NullDataScript(intent.Swap.Data)
	if err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, op, network, fmt.Errorf("swap memo: %w", err))
	}
	return pkScript, nil
}

// outputSize is the serialized size of an output with the given script.
func outputSize(pkScript []byte) int64 {
	if pkScript == nil {
		return 0
	}
	return int64(wire.NewTxOut(0, pkScript).SerializeSize())
}

// destination is the address the intent pays: the provider's inbound address for swaps.
func destination(intent txModel.TransferIntent) string {
	if intent.Type == txModel.TransactionTypeSwap && intent.Swap != nil {
		return intent.Swap.To
	}
	return intent.Destination.Address
}

// selection is the result of coin selection for a fee rate.
type selection struct {
	utxos []txModel.Utxo
	total int64
	vsize int64
}

// selectForRate picks outputs until amount plus the fee of the growing
// transaction is covered. useMax spends everything into one output. When the
// balance is insufficient every output is selected.
func selectForRate(utxos []txModel.Utxo, segwit bool, amount, rate, extra int64, useMax bool) selection {
	sorted := sortUtxos(utxos)
	if useMax {
		return selection{utxos: sorted, total: sum(sorted), vsize: vsize(segwit, len(sorted), 1, extra)}
	}
	var sel selection
	for _, u := range sorted {
		sel.utxos = append(sel.utxos, u)
		sel.total += u.Value
		sel.vsize = vsize(segwit, len(sel.utxos), 2, extra)
		if sel.total >= amount+sel.vsize*rate {
			return sel
		}
	}
	return sel
}

// selectForFee picks outputs until amount plus a fixed fee is covered.
func selectForFee(utxos []txModel.Utxo, amount, fee int64, useMax bool) ([]txModel.Utxo, int64) {
	sorted := sortUtxos(utxos)
	if useMax {
		return sorted, sum(sorted)
	}
	var (
		picked []txModel.Utxo
		total  int64
	)
	for _, u := range sorted {
		picked = append(picked, u)
		total += u.Value
		if total >= amount+fee {
			break
		}
	}
	return picked, total
}

func sum(utxos []txModel.Utxo) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
