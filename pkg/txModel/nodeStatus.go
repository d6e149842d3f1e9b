package txModel

import (
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
)

// NodeStatus is the health snapshot of a node.
type NodeStatus struct {
	Chain       chain.Chain
	URL         string
	ChainID     string
	LatestBlock uint64
	InSync      bool
	Latency     time.Duration
}
