package chain

// EvmParams holds the static values an EVM network needs for fee calculation and signing.
type EvmParams struct {
	// ChainID is the EIP-155 chain id
	ChainID int64
	// MinPriorityFee is the floor applied to the suggested tip, in wei
	MinPriorityFee int64
}

// UtxoParams holds the static values of a Bitcoin-like network.
type UtxoParams struct {
	Decimals int32
	// MinByteFee is the lowest accepted fee rate in satoshi per virtual byte
	MinByteFee int64
	// FastBlocks, NormalBlocks and SlowBlocks are the confirmation targets per fee priority
	FastBlocks   int
	NormalBlocks int
	SlowBlocks   int
}

// CosmosParams holds the static values of a Cosmos SDK network.
type CosmosParams struct {
	Denom  string
	Prefix string
	// TransferGas and StakeGas are gas limits per message
	TransferGas uint64
	StakeGas    uint64
	// TransferFee and StakeFee are fee amounts in Denom
	TransferFee int64
	StakeFee    int64
	// KeccakSigning marks networks using eth_secp256k1 keys hashed with keccak256
	KeccakSigning bool
	// OmitFeeAmount marks networks where the fee is charged by the protocol rather than the tx
	OmitFeeAmount bool
	// SendMsgType is the type url of the bank send message
	SendMsgType string
}

const gwei = 1_000_000_000

var evmChains = map[Chain]EvmParams{
	Ethereum:   {ChainID: 1, MinPriorityFee: gwei},
	SmartChain: {ChainID: 56, MinPriorityFee: gwei / 10},
	Polygon:    {ChainID: 137, MinPriorityFee: 30 * gwei},
	Arbitrum:   {ChainID: 42161, MinPriorityFee: gwei / 100},
	Optimism:   {ChainID: 10, MinPriorityFee: gwei / 100},
	Base:       {ChainID: 8453, MinPriorityFee: gwei / 100},
	AvalancheC: {ChainID: 43114, MinPriorityFee: gwei},
	Fantom:     {ChainID: 250, MinPriorityFee: gwei},
	Gnosis:     {ChainID: 100, MinPriorityFee: gwei},
	Linea:      {ChainID: 59144, MinPriorityFee: gwei / 20},
	Manta:      {ChainID: 169, MinPriorityFee: gwei / 100},
	Blast:      {ChainID: 81457, MinPriorityFee: gwei / 100},
	ZkSync:     {ChainID: 324, MinPriorityFee: gwei / 100},
	OpBNB:      {ChainID: 204, MinPriorityFee: gwei / 1000},
	Celo:       {ChainID: 42220, MinPriorityFee: gwei},
	Mantle:     {ChainID: 5000, MinPriorityFee: gwei / 100},
}

var utxoChains = map[Chain]UtxoParams{
	Bitcoin:     {Decimals: 8, MinByteFee: 1, FastBlocks: 1, NormalBlocks: 6, SlowBlocks: 12},
	BitcoinCash: {Decimals: 8, MinByteFee: 1, FastBlocks: 1, NormalBlocks: 6, SlowBlocks: 12},
	Litecoin:    {Decimals: 8, MinByteFee: 5, FastBlocks: 1, NormalBlocks: 6, SlowBlocks: 12},
	Doge:        {Decimals: 8, MinByteFee: 1000, FastBlocks: 1, NormalBlocks: 6, SlowBlocks: 12},
}

const cosmosBankSend = "/cosmos.bank.v1beta1.MsgSend"

var cosmosChains = map[Chain]CosmosParams{
	Cosmos: {Denom: "uatom", Prefix: "cosmos", TransferGas: 200_000, StakeGas: 1_000_000,
		TransferFee: 3_000, StakeFee: 25_000, SendMsgType: cosmosBankSend},
	Osmosis: {Denom: "uosmo", Prefix: "osmo", TransferGas: 200_000, StakeGas: 1_000_000,
		TransferFee: 10_000, StakeFee: 100_000, SendMsgType: cosmosBankSend},
	Celestia: {Denom: "utia", Prefix: "celestia", TransferGas: 200_000, StakeGas: 1_000_000,
		TransferFee: 3_000, StakeFee: 20_000, SendMsgType: cosmosBankSend},
	Injective: {Denom: "inj", Prefix: "inj", TransferGas: 200_000, StakeGas: 1_000_000,
		TransferFee: 100_000_000_000_000, StakeFee: 1_000_000_000_000_000, KeccakSigning: true,
		SendMsgType: cosmosBankSend},
	Sei: {Denom: "usei", Prefix: "sei", TransferGas: 200_000, StakeGas: 1_000_000,
		TransferFee: 100_000, StakeFee: 200_000, SendMsgType: cosmosBankSend},
	Noble: {Denom: "uusdc", Prefix: "noble", TransferGas: 200_000, StakeGas: 200_000,
		TransferFee: 25_000, StakeFee: 25_000, SendMsgType: cosmosBankSend},
	Thorchain: {Denom: "rune", Prefix: "thor", TransferGas: 200_000, StakeGas: 200_000,
		TransferFee: 2_000_000, StakeFee: 2_000_000, OmitFeeAmount: true, SendMsgType: "/types.MsgSend"},
}

// PolkadotParams holds the static values of a Substrate network.
type PolkadotParams struct {
	// SS58Prefix is the address format of the network
	SS58Prefix uint16
	// TransferCall is the call index of Balances.transfer_allow_death as section, method
	TransferCall [2]uint8
	// Period is the mortal era length of a transaction, in blocks
	Period uint64
}

var polkadotChains = map[Chain]PolkadotParams{
	Polkadot: {SS58Prefix: 0, TransferCall: [2]uint8{5, 0}, Period: 64},
}

// PolkadotConfig returns the Substrate parameters of the network.
func PolkadotConfig(c Chain) (PolkadotParams, bool) {
	p, ok := polkadotChains[c]
	return p, ok
}

// Evm returns the EVM parameters of the network and whether it is an EVM network.
func Evm(c Chain) (EvmParams, bool) {
	p, ok := evmChains[c]
	return p, ok
}

// Utxo returns the UTXO parameters of the network and whether it is a UTXO network.
func Utxo(c Chain) (UtxoParams, bool) {
	p, ok := utxoChains[c]
	return p, ok
}

// CosmosConfig returns the Cosmos SDK parameters of the network.
func CosmosConfig(c Chain) (CosmosParams, bool) {
	p, ok := cosmosChains[c]
	return p, ok
}

// NativeDecimals returns the number of decimals of the network's native coin.
func NativeDecimals(c Chain) int32 {
	switch c.Family() {
	case FamilyEVM:
		return 18
	case FamilyBitcoin:
		return utxoChains[c].Decimals
	case FamilyCosmos:
		if c == Injective {
			return 18
		}
		if c == Thorchain {
			return 8
		}
		return 6
	case FamilySolana, FamilyTon, FamilySui:
		return 9
	case FamilyTron:
		return 6
	case FamilyAptos:
		return 8
	case FamilyPolkadot:
		return 10
	case FamilyXrp:
		return 6
	}
	return 0
}
