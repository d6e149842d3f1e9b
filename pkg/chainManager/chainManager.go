// Package chainManager owns the node endpoints of every configured network.
// It is the configuration collaborator the per-chain implementations read their
// node connection from: one REST/JSON-RPC client per chain, plus an ethclient
// connection for EVM networks.
package chainManager

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var (
	// ErrChainNotFound is returned when a requested chain is not configured in the manager
	ErrChainNotFound = errors.New("chain not found")
)

// IChainManager defines the interface for managing node connections.
type IChainManager interface {
	// AddChain adds a node connection to the manager
	AddChain(cfg *ChainConfig) error
	// GetChainForId retrieves a node connection by its chain
	GetChainForId(c chain.Chain) (*Chain, error)
}

// ChainConfig holds the configuration for connecting to a network's node.
type ChainConfig struct {
	// Chain is the network the node serves
	Chain chain.Chain
	// RPCUrl is the REST or JSON-RPC endpoint of the node
	RPCUrl string
	// APIKeyHeader and APIKey are sent with every request when set
	APIKeyHeader string
	APIKey       string
}

// Chain represents a configured node connection.
type Chain struct {
	config *ChainConfig
	// Client is the REST/JSON-RPC client for the node
	Client *nodeClient.Client
	// RPCClient is the ethclient connection, set for EVM networks only
	RPCClient EthClientInterface
}

// Config returns a copy of the configuration the connection was created from.
func (c *Chain) Config() ChainConfig {
	if c.config == nil {
		return ChainConfig{}
	}
	return *c.config
}

// ChainManager implements IChainManager.
// This implementation is thread-safe using sync.Map for concurrent access.
type ChainManager struct {
	Chains sync.Map // map[chain.Chain]*Chain
	logger *zap.Logger
}

// NewChainManager creates a new ChainManager instance with no chains.
//
// Parameters:
//   - l: The logger passed to every node client
//
// Returns:
//   - *ChainManager: A new chain manager instance
func NewChainManager(l *zap.Logger) *ChainManager {
	if l == nil {
		l = zap.NewNop()
	}
	return &ChainManager{logger: l}
}

// AddChain creates the node client for a network and stores it.
// This method is thread-safe and can be called concurrently.
//
// Parameters:
//   - cfg: The chain configuration containing the chain and node URL
//
// Returns:
//   - error: An error if the chain already exists, is unknown, or the URL cannot be used
func (cm *ChainManager) AddChain(cfg *ChainConfig) error {
	if cfg.Chain.Family() == "" {
		return fmt.Errorf("%w: %s", chain.ErrUnknownChain, cfg.Chain)
	}
	if cfg.RPCUrl == "" {
		return fmt.Errorf("chain %s has no RPC URL", cfg.Chain)
	}

	var opts []nodeClient.Option
	if cfg.APIKeyHeader != "" && cfg.APIKey != "" {
		opts = append(opts, nodeClient.WithHeader(cfg.APIKeyHeader, cfg.APIKey))
	}
	client := nodeClient.New(cfg.RPCUrl, cm.logger.With(zap.String("chain", string(cfg.Chain))), opts...)

	entry := &Chain{config: cfg, Client: client}
	if cfg.Chain.Family() == chain.FamilyEVM {
		rpcClient, err := client.RPC()
		if err != nil {
			return fmt.Errorf("failed to connect to RPC URL %s: %w", cfg.RPCUrl, err)
		}
		entry.RPCClient = ethclient.NewClient(rpcClient)
	}

	if _, exists := cm.Chains.LoadOrStore(cfg.Chain, entry); exists {
		return fmt.Errorf("chain %s already exists", cfg.Chain)
	}
	return nil
}

// GetChainForId retrieves the node connection of a network.
// This method is thread-safe and can be called concurrently.
//
// Parameters:
//   - c: The chain to look up
//
// Returns:
//   - *Chain: The connection if found
//   - error: ErrChainNotFound if the chain is not configured
func (cm *ChainManager) GetChainForId(c chain.Chain) (*Chain, error) {
	value, exists := cm.Chains.Load(c)
	if !exists {
		return nil, ErrChainNotFound
	}
	entry, ok := value.(*Chain)
	if !ok {
		return nil, fmt.Errorf("invalid chain type stored for %s", c)
	}
	return entry, nil
}

// NodeURL returns the node URL configured for a network.
func (cm *ChainManager) NodeURL(c chain.Chain) (string, error) {
	entry, err := cm.GetChainForId(c)
	if err != nil {
		return "", err
	}
	return entry.Config().RPCUrl, nil
}

// Configured returns every configured network in chain.All() order.
func (cm *ChainManager) Configured() []chain.Chain {
	var out []chain.Chain
	for _, c := range chain.All() {
		if _, ok := cm.Chains.Load(c); ok {
			out = append(out, c)
		}
	}
	return out
}

// NodeClient returns the REST/JSON-RPC client of a network. A network without a
// configured node is reported as unsupported.
func NodeClient(cm IChainManager, c chain.Chain) (*nodeClient.Client, error) {
	entry, err := cm.GetChainForId(c)
	if err != nil {
		return nil, txErrors.New(txErrors.KindUnsupported, "", c, fmt.Errorf("no node configured: %w", err))
	}
	return entry.Client, nil
}

// EthClient returns the ethclient connection of an EVM network.
func EthClient(cm IChainManager, c chain.Chain) (EthClientInterface, error) {
	entry, err := cm.GetChainForId(c)
	if err != nil {
		return nil, txErrors.New(txErrors.KindUnsupported, "", c, fmt.Errorf("no node configured: %w", err))
	}
	if entry.RPCClient == nil {
		return nil, txErrors.New(txErrors.KindUnsupported, "", c, fmt.Errorf("chain %s has no ethclient connection", c))
	}
	return entry.RPCClient, nil
}

// NodeClientAt returns the configured client of a network when url is empty or
// matches the configured node, and a new client for url otherwise. It is used to
// check the health of candidate nodes.
func NodeClientAt(cm IChainManager, c chain.Chain, url string, l *zap.Logger) (*nodeClient.Client, error) {
	entry, err := cm.GetChainForId(c)
	if err == nil && (url == "" || url == entry.Config().RPCUrl) {
		return entry.Client, nil
	}
	if url == "" {
		return nil, txErrors.New(txErrors.KindUnsupported, txErrors.OpNodeStatus, c, fmt.Errorf("no node configured: %w", err))
	}
	if l == nil {
		l = zap.NewNop()
	}
	return nodeClient.New(url, l.With(zap.String("chain", string(c)))), nil
}
