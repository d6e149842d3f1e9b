package proxy

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/metrics"
	"github.com/Layr-Labs/multichain-tx-go/pkg/registry"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"go.uber.org/zap"
)

var errNilParams = errors.New("signer params are nil")

type options struct {
	logger   *zap.Logger
	recorder metrics.Recorder
	chains   []chain.Chain
}

// Option configures a proxy.
type Option func(*options)

// WithLogger sets the logger used for dispatch misses and failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithChains limits the networks checked when building the registry.
func WithChains(chains []chain.Chain) Option {
	return func(o *options) { o.chains = chains }
}

func buildOptions(opts []Option) *options {
	o := &options{
		logger:   zap.NewNop(),
		recorder: metrics.NopRecorder{},
		chains:   chain.All(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) observe(op txErrors.Op, c chain.Chain, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = txErrors.KindOf(err).String()
		o.logger.Sugar().Debugw("proxy call failed",
			zap.String("role", string(op)),
			zap.String("chain", string(c)),
			zap.Error(err),
		)
	}
	o.recorder.Observe(string(op), string(c), outcome, time.Since(start))
}

// PreloadProxy dispatches preload requests.
type PreloadProxy struct {
	registry *registry.Registry[Preloader]
	opts     *options
}

// NewPreloadProxy builds the proxy over the given implementations.
//
// Returns:
//   - *PreloadProxy: The proxy
//   - error: registry.ErrDuplicateImplementation if two implementations claim one network
func NewPreloadProxy(impls []Preloader, opts ...Option) (*PreloadProxy, error) {
	o := buildOptions(opts)
	r, err := registry.New(o.chains, impls...)
	if err != nil {
		return nil, err
	}
	return &PreloadProxy{registry: r, opts: o}, nil
}

func (p *PreloadProxy) Supported(c chain.Chain) bool {
	return p.registry.Supported(c)
}

// Preload validates the intent and fetches its signer params.
// On any failure the returned SignerParams is nil.
func (p *PreloadProxy) Preload(ctx context.Context, intent txModel.TransferIntent) (params *txModel.SignerParams, err error) {
	c := intent.Chain()
	defer func(start time.Time) { p.opts.observe(txErrors.OpPreload, c, start, err) }(time.Now())

	impl, err := p.registry.Get(c)
	if err != nil {
		return nil, txErrors.Unsupported(txErrors.OpPreload, c)
	}
	if err := intent.Validate(); err != nil {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpPreload, c, err)
	}
	params, err = impl.Preload(ctx, intent)
	if err != nil {
		return nil, txErrors.Tag(txErrors.OpPreload, c, err)
	}
	return params, nil
}

// SignProxy dispatches signing requests.
type SignProxy struct {
	registry *registry.Registry[Signer]
	opts     *options
}

func NewSignProxy(impls []Signer, opts ...Option) (*SignProxy, error) {
	o := buildOptions(opts)
	r, err := registry.New(o.chains, impls...)
	if err != nil {
		return nil, err
	}
	return &SignProxy{registry: r, opts: o}, nil
}

func (p *SignProxy) Supported(c chain.Chain) bool {
	return p.registry.Supported(c)
}

// Sign returns the ordered signed blobs for the params.
func (p *SignProxy) Sign(ctx context.Context, params *txModel.SignerParams, finalAmount *big.Int, fee txModel.Fee, privateKey []byte) (out [][]byte, err error) {
	if params == nil {
		return nil, txErrors.New(txErrors.KindContractViolation, txErrors.OpSign, "", errNilParams)
	}
	c := params.Input.Chain()
	defer func(start time.Time) { p.opts.observe(txErrors.OpSign, c, start, err) }(time.Now())

	impl, err := p.registry.Get(c)
	if err != nil {
		return nil, txErrors.Unsupported(txErrors.OpSign, c)
	}
	if finalAmount == nil || finalAmount.Sign() < 0 {
		return nil, txErrors.New(txErrors.KindInvalidInput, txErrors.OpSign, c, txModel.ErrNegativeAmount)
	}
	out, err = impl.Sign(ctx, params, finalAmount, fee, privateKey)
	if err != nil {
		if txErrors.KindOf(err) == txErrors.KindContractViolation {
			p.opts.logger.Sugar().Errorw("signer received foreign chain data",
				zap.String("chain", string(c)),
				zap.Error(err),
			)
		}
		return nil, txErrors.Tag(txErrors.OpSign, c, err)
	}
	return out, nil
}

// BroadcastProxy dispatches submissions.
type BroadcastProxy struct {
	registry *registry.Registry[Broadcaster]
	opts     *options
}

func NewBroadcastProxy(impls []Broadcaster, opts ...Option) (*BroadcastProxy, error) {
	o := buildOptions(opts)
	r, err := registry.New(o.chains, impls...)
	if err != nil {
		return nil, err
	}
	return &BroadcastProxy{registry: r, opts: o}, nil
}

func (p *BroadcastProxy) Supported(c chain.Chain) bool {
	return p.registry.Supported(c)
}

// Broadcast submits the payload once. It never resubmits on failure.
func (p *BroadcastProxy) Broadcast(ctx context.Context, account txModel.Account, signed []byte, txType txModel.TransactionType) (hash string, err error) {
	c := account.Chain
	defer func(start time.Time) { p.opts.observe(txErrors.OpBroadcast, c, start, err) }(time.Now())

	impl, err := p.registry.Get(c)
	if err != nil {
		return "", txErrors.Unsupported(txErrors.OpBroadcast, c)
	}
	hash, err = impl.Broadcast(ctx, account, signed, txType)
	if err != nil {
		return "", txErrors.Tag(txErrors.OpBroadcast, c, err)
	}
	p.opts.logger.Sugar().Infow("transaction broadcast",
		zap.String("chain", string(c)),
		zap.String("hash", hash),
		zap.String("type", string(txType)),
	)
	return hash, nil
}

// StatusProxy dispatches status queries.
type StatusProxy struct {
	registry *registry.Registry[StatusChecker]
	opts     *options
}

func NewStatusProxy(impls []StatusChecker, opts ...Option) (*StatusProxy, error) {
	o := buildOptions(opts)
	r, err := registry.New(o.chains, impls...)
	if err != nil {
		return nil, err
	}
	return &StatusProxy{registry: r, opts: o}, nil
}

func (p *StatusProxy) Supported(c chain.Chain) bool {
	return p.registry.Supported(c)
}

// GetStatus classifies the transaction once. An unsupported network yields a
// pending result and no error, so callers polling many networks are not interrupted.
func (p *StatusProxy) GetStatus(ctx context.Context, req txModel.TransactionStateRequest) (changes txModel.TransactionChanges, err error) {
	defer func(start time.Time) { p.opts.observe(txErrors.OpStatus, req.Chain, start, err) }(time.Now())

	impl, err := p.registry.Get(req.Chain)
	if err != nil {
		p.opts.logger.Sugar().Warnw("no status implementation for chain", zap.String("chain", string(req.Chain)))
		return txModel.PendingChanges(), nil
	}
	changes, err = impl.GetStatus(ctx, req)
	if err != nil {
		return txModel.TransactionChanges{}, txErrors.Tag(txErrors.OpStatus, req.Chain, err)
	}
	return changes, nil
}

// NodeStatusProxy dispatches node health checks.
type NodeStatusProxy struct {
	registry *registry.Registry[NodeStatusChecker]
	opts     *options
}

func NewNodeStatusProxy(impls []NodeStatusChecker, opts ...Option) (*NodeStatusProxy, error) {
	o := buildOptions(opts)
	r, err := registry.New(o.chains, impls...)
	if err != nil {
		return nil, err
	}
	return &NodeStatusProxy{registry: r, opts: o}, nil
}

func (p *NodeStatusProxy) Supported(c chain.Chain) bool {
	return p.registry.Supported(c)
}

// GetNodeStatus returns nil and no error for an unsupported network.
func (p *NodeStatusProxy) GetNodeStatus(ctx context.Context, c chain.Chain, url string) (status *txModel.NodeStatus, err error) {
	defer func(start time.Time) { p.opts.observe(txErrors.OpNodeStatus, c, start, err) }(time.Now())

	impl, err := p.registry.Get(c)
	if err != nil {
		return nil, nil
	}
	start := time.Now()
	status, err = impl.GetNodeStatus(ctx, c, url)
	if err != nil {
		return nil, txErrors.Tag(txErrors.OpNodeStatus, c, err)
	}
	if status.Latency == 0 {
		status.Latency = time.Since(start)
	}
	return status, nil
}
