// Package engine wires every per-chain implementation into the five dispatch
// proxies of the transaction lifecycle.
package engine

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/aptos"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/bitcoin"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/cosmos"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/evm"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/polkadot"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/solana"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/sui"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/ton"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/tron"
	"github.com/Layr-Labs/multichain-tx-go/pkg/clients/xrp"
	"github.com/Layr-Labs/multichain-tx-go/pkg/metrics"
	"github.com/Layr-Labs/multichain-tx-go/pkg/proxy"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
)

// Family implements every lifecycle role for one chain family.
type Family interface {
	proxy.Preloader
	proxy.Signer
	proxy.Broadcaster
	proxy.StatusChecker
	proxy.NodeStatusChecker
}

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	// Recorder observes every proxy call, metrics.NopRecorder when nil
	Recorder metrics.Recorder
}

// Engine routes lifecycle calls to the implementation of the requested network.
// It is safe for concurrent use.
type Engine struct {
	preload    *proxy.PreloadProxy
	sign       *proxy.SignProxy
	broadcast  *proxy.BroadcastProxy
	status     *proxy.StatusProxy
	nodeStatus *proxy.NodeStatusProxy
}

// Families builds the implementation of every chain family over cm.
func Families(cm chainManager.IChainManager, l *zap.Logger) []Family {
	return []Family{
		evm.New(cm, l),
		bitcoin.New(cm, l),
		cosmos.New(cm, l),
		solana.New(cm, l),
		tron.New(cm, l),
		ton.New(cm, l),
		sui.New(cm, l),
		aptos.New(cm, l),
		polkadot.New(cm, l),
		xrp.New(cm, l),
	}
}

// NewEngine assembles the proxies over the given families.
//
// Parameters:
//   - families: The implementations, usually Families(cm, l)
//   - cfg: The engine configuration, may be nil
//   - l: The logger
//
// Returns:
//   - *Engine: The engine
//   - error: registry.ErrDuplicateImplementation if two families claim one network
func NewEngine(families []Family, cfg *EngineConfig, l *zap.Logger) (*Engine, error) {
	if l == nil {
		l = zap.NewNop()
	}
	opts := []proxy.Option{proxy.WithLogger(l)}
	if cfg != nil && cfg.Recorder != nil {
		opts = append(opts, proxy.WithRecorder(cfg.Recorder))
	}

	preloaders := make([]proxy.Preloader, 0, len(families))
	signers := make([]proxy.Signer, 0, len(families))
	broadcasters := make([]proxy.Broadcaster, 0, len(families))
	checkers := make([]proxy.StatusChecker, 0, len(families))
	nodeCheckers := make([]proxy.NodeStatusChecker, 0, len(families))
	for _, f := range families {
		preloaders = append(preloaders, f)
		signers = append(signers, f)
		broadcasters = append(broadcasters, f)
		checkers = append(checkers, f)
		nodeCheckers = append(nodeCheckers, f)
	}

	e := &Engine{}
	var err error
	if e.preload, err = proxy.NewPreloadProxy(preloaders, opts...); err != nil {
		return nil, err
	}
	if e.sign, err = proxy.NewSignProxy(signers, opts...); err != nil {
		return nil, err
	}
	if e.broadcast, err = proxy.NewBroadcastProxy(broadcasters, opts...); err != nil {
		return nil, err
	}
	if e.status, err = proxy.NewStatusProxy(checkers, opts...); err != nil {
		return nil, err
	}
	if e.nodeStatus, err = proxy.NewNodeStatusProxy(nodeCheckers, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// New builds the engine over every chain family.
func New(cm chainManager.IChainManager, cfg *EngineConfig, l *zap.Logger) (*Engine, error) {
	return NewEngine(Families(cm, l), cfg, l)
}

// Supported reports whether every role handles the network.
func (e *Engine) Supported(c chain.Chain) bool {
	return e.preload.Supported(c) && e.sign.Supported(c) && e.broadcast.Supported(c) && e.status.Supported(c)
}

// Chains returns the networks every role handles, in declaration order.
func (e *Engine) Chains() []chain.Chain {
	var out []chain.Chain
	for _, c := range chain.All() {
		if e.Supported(c) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) Preload(ctx context.Context, intent txModel.TransferIntent) (*txModel.SignerParams, error) {
	return e.preload.Preload(ctx, intent)
}

func (e *Engine) Sign(ctx context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) ([][]byte, error) {
	return e.sign.Sign(ctx, params, finalAmount, fee, privateKey)
}

// Broadcast submits each signed payload in order and returns their ids. It stops
// at the first failure and returns the ids submitted so far.
func (e *Engine) Broadcast(ctx context.Context, account txModel.Account, signed [][]byte, txType txModel.TransactionType) ([]string, error) {
	hashes := make([]string, 0, len(signed))
	for _, payload := range signed {
		hash, err := e.broadcast.Broadcast(ctx, account, payload, txType)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (e *Engine) Status(ctx context.Context, req txModel.TransactionStateRequest) (txModel.TransactionChanges, error) {
	return e.status.GetStatus(ctx, req)
}

func (e *Engine) NodeStatus(ctx context.Context, c chain.Chain, url string) (*txModel.NodeStatus, error) {
	return e.nodeStatus.GetNodeStatus(ctx, c, url)
}
