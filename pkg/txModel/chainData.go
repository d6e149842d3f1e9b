package txModel

import "math/big"

// ChainData is the closed set of per-family preload results. The unexported
// marker method keeps the set closed to this package; signers type-switch over
// the variants and reject anything but their own.
type ChainData interface {
	// Family returns the family name of the variant, used in mismatch errors
	Family() string
	chainData()
}

// EvmChainData is used by account+nonce EVM networks.
type EvmChainData struct {
	ChainID *big.Int
	Nonce   uint64
	// ApprovalGasLimit is set when a swap is preceded by a token approval
	ApprovalGasLimit uint64
}

// Utxo is one spendable output.
type Utxo struct {
	TxID  string
	Vout  uint32
	Value int64
}

// UtxoChainData is used by Bitcoin-like networks.
type UtxoChainData struct {
	Utxos []Utxo
}

// CosmosChainData is used by Cosmos SDK networks.
type CosmosChainData struct {
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
}

// SolanaChainData is used by Solana.
type SolanaChainData struct {
	Blockhash string
	// SenderTokenAddress and RecipientTokenAddress are set for token transfers.
	// An empty RecipientTokenAddress means the account has to be created.
	SenderTokenAddress    string
	RecipientTokenAddress string
	TokenProgram          string
}

// TronChainData is used by Tron and carries the reference block header.
type TronChainData struct {
	BlockNumber    int64
	BlockID        string
	Timestamp      int64
	ParentHash     string
	WitnessAddress string
	TxTrieRoot     string
	Version        int32
	// Votes is the full vote set a staking change leaves the account with, keyed by witness address
	Votes map[string]int64
}

// TonChainData is used by TON wallets.
type TonChainData struct {
	Sequence uint32
	// JettonAddress is the sender's jetton wallet for token transfers
	JettonAddress string
	ExpireAt      uint32
}

// SuiChainData carries the node-built transaction bytes, base64 encoded.
type SuiChainData struct {
	MessageBytes string
}

// AptosChainData is used by Aptos.
type AptosChainData struct {
	Sequence uint64
	ChainID  uint8
	ExpireAt uint64
}

// PolkadotChainData is used by Substrate networks and carries the
// transaction material of the reference block.
type PolkadotChainData struct {
	GenesisHash        string
	BlockHash          string
	BlockNumber        uint64
	SpecVersion        uint32
	TransactionVersion uint32
	Nonce              uint64
	// Period is the mortal era length in blocks, zero for an immortal transaction
	Period uint64
}

// XrpChainData is used by the XRP Ledger.
type XrpChainData struct {
	Sequence uint32
	// LedgerIndex is the current ledger, the transaction expires a few ledgers later
	LedgerIndex uint32
}

func (EvmChainData) Family() string      { return "evm" }
func (UtxoChainData) Family() string     { return "utxo" }
func (CosmosChainData) Family() string   { return "cosmos" }
func (SolanaChainData) Family() string   { return "solana" }
func (TronChainData) Family() string     { return "tron" }
func (TonChainData) Family() string      { return "ton" }
func (SuiChainData) Family() string      { return "sui" }
func (AptosChainData) Family() string    { return "aptos" }
func (PolkadotChainData) Family() string { return "polkadot" }
func (XrpChainData) Family() string      { return "xrp" }

func (EvmChainData) chainData()      {}
func (UtxoChainData) chainData()     {}
func (CosmosChainData) chainData()   {}
func (SolanaChainData) chainData()   {}
func (TronChainData) chainData()     {}
func (TonChainData) chainData()      {}
func (SuiChainData) chainData()      {}
func (AptosChainData) chainData()    {}
func (PolkadotChainData) chainData() {}
func (XrpChainData) chainData()      {}

// AllChainDataVariants returns one zero value of every variant.
func AllChainDataVariants() []ChainData {
	return []ChainData{
		EvmChainData{}, UtxoChainData{}, CosmosChainData{}, SolanaChainData{},
		TronChainData{}, TonChainData{}, SuiChainData{}, AptosChainData{},
		PolkadotChainData{}, XrpChainData{},
	}
}
