// Package chain defines the networks the engine can originate transactions on.
// Every network belongs to exactly one Family, and every family shares a single
// preload, sign, broadcast and status implementation parameterised by the
// per-network values declared here.
package chain

import "errors"

var (
	// ErrUnknownChain is returned when a chain identifier is not declared in this package
	ErrUnknownChain = errors.New("unknown chain")
)

// Chain is the canonical identifier of a network.
type Chain string

const (
	Ethereum   Chain = "ethereum"
	SmartChain Chain = "smartchain"
	Polygon    Chain = "polygon"
	Arbitrum   Chain = "arbitrum"
	Optimism   Chain = "optimism"
	Base       Chain = "base"
	AvalancheC Chain = "avalanchec"
	Fantom     Chain = "fantom"
	Gnosis     Chain = "gnosis"
	Linea      Chain = "linea"
	Manta      Chain = "manta"
	Blast      Chain = "blast"
	ZkSync     Chain = "zksync"
	OpBNB      Chain = "opbnb"
	Celo       Chain = "celo"
	Mantle     Chain = "mantle"

	Bitcoin     Chain = "bitcoin"
	BitcoinCash Chain = "bitcoincash"
	Litecoin    Chain = "litecoin"
	Doge        Chain = "doge"

	Cosmos    Chain = "cosmos"
	Osmosis   Chain = "osmosis"
	Celestia  Chain = "celestia"
	Injective Chain = "injective"
	Sei       Chain = "sei"
	Noble     Chain = "noble"
	Thorchain Chain = "thorchain"

	Solana Chain = "solana"
	Tron   Chain = "tron"
	Ton    Chain = "ton"
	Sui    Chain = "sui"
	Aptos  Chain = "aptos"

	Polkadot Chain = "polkadot"
	Xrp      Chain = "xrp"
)

// Family groups networks that share a transaction model.
type Family string

const (
	FamilyEVM      Family = "evm"
	FamilyBitcoin  Family = "bitcoin"
	FamilyCosmos   Family = "cosmos"
	FamilySolana   Family = "solana"
	FamilyTron     Family = "tron"
	FamilyTon      Family = "ton"
	FamilySui      Family = "sui"
	FamilyAptos    Family = "aptos"
	FamilyPolkadot Family = "polkadot"
	FamilyXrp      Family = "xrp"
)

// Supporter is the capability predicate every per-chain implementation satisfies.
type Supporter interface {
	// Supported reports whether the implementation can handle the given network
	Supported(c Chain) bool
}

var all = []Chain{
	Ethereum, SmartChain, Polygon, Arbitrum, Optimism, Base, AvalancheC, Fantom,
	Gnosis, Linea, Manta, Blast, ZkSync, OpBNB, Celo, Mantle,
	Bitcoin, BitcoinCash, Litecoin, Doge,
	Cosmos, Osmosis, Celestia, Injective, Sei, Noble, Thorchain,
	Solana, Tron, Ton, Sui, Aptos, Polkadot, Xrp,
}

// All returns every declared network in declaration order.
// The returned slice is a copy and may be modified by the caller.
func All() []Chain {
	out := make([]Chain, len(all))
	copy(out, all)
	return out
}

// Parse converts a string into a declared Chain.
func Parse(s string) (Chain, error) {
	for _, c := range all {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrUnknownChain
}

// Family returns the family the network belongs to.
func (c Chain) Family() Family {
	switch {
	case evmChains[c].ChainID != 0:
		return FamilyEVM
	case utxoChains[c].Decimals != 0:
		return FamilyBitcoin
	case cosmosChains[c].Denom != "":
		return FamilyCosmos
	}
	switch c {
	case Solana:
		return FamilySolana
	case Tron:
		return FamilyTron
	case Ton:
		return FamilyTon
	case Sui:
		return FamilySui
	case Aptos:
		return FamilyAptos
	case Polkadot:
		return FamilyPolkadot
	case Xrp:
		return FamilyXrp
	}
	return ""
}

// OfFamily returns the declared networks of a family, in declaration order.
func OfFamily(f Family) []Chain {
	var out []Chain
	for _, c := range all {
		if c.Family() == f {
			out = append(out, c)
		}
	}
	return out
}

// FamilySupporter is a Supporter matching every network of one family.
type FamilySupporter Family

// Supported implements Supporter
func (f FamilySupporter) Supported(c Chain) bool {
	return c.Family() == Family(f)
}

func (c Chain) String() string {
	return string(c)
}
