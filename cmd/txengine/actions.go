package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/config"
	"github.com/Layr-Labs/multichain-tx-go/pkg/engine"
	"github.com/Layr-Labs/multichain-tx-go/pkg/keySource"
	"github.com/Layr-Labs/multichain-tx-go/pkg/logger"
	"github.com/Layr-Labs/multichain-tx-go/pkg/metrics"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultAWSRegion = "us-east-1"

type app struct {
	cfg    *config.Config
	l      *zap.Logger
	cm     *chainManager.ChainManager
	engine *engine.Engine
	server *http.Server
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: cfg.Debug || c.Bool("debug"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	cm := chainManager.NewChainManager(l)
	if err := cfg.Register(cm); err != nil {
		return nil, fmt.Errorf("failed to setup chain manager: %w", err)
	}

	a := &app{cfg: cfg, l: l, cm: cm}
	engineCfg := &engine.EngineConfig{}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		engineCfg.Recorder = recorder
		a.serveMetrics(reg)
	}

	a.engine, err = engine.New(cm, engineCfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup engine: %w", err)
	}
	return a, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.l.Sugar().Errorw("Metrics server stopped", zap.Error(err))
		}
	}()
	a.l.Sugar().Infow("Serving metrics", "addr", a.cfg.MetricsAddr)
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	_ = a.l.Sync()
}

func withApp(action func(*cli.Context, *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := setup(c)
		if err != nil {
			return err
		}
		defer a.close()
		return action(c, a)
	}
}

func (a *app) keySource(c *cli.Context) (keySource.IKeySource, error) {
	if pk := c.String("private-key"); pk != "" {
		return keySource.NewHexKeySource(pk)
	}
	secret := c.String("aws-secret-name")
	if secret == "" {
		secret = a.cfg.AWS.SecretName
	}
	if secret == "" {
		return nil, fmt.Errorf("must specify either --private-key or --aws-secret-name for transaction signing")
	}
	region := a.cfg.AWS.Region
	if region == "" {
		region = defaultAWSRegion
	}
	return keySource.NewAWSSMKeySource(&keySource.AWSSMKeySourceConfig{
		Region:     region,
		SecretName: secret,
		Field:      a.cfg.AWS.Field,
	}, a.l)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type chainInfo struct {
	Chain  chain.Chain  `json:"chain"`
	Family chain.Family `json:"family"`
	Node   string       `json:"node,omitempty"`
}

var chainsAction = withApp(func(c *cli.Context, a *app) error {
	configured := a.cm.Configured()
	var out []chainInfo
	for _, ch := range a.engine.Chains() {
		info := chainInfo{Chain: ch, Family: ch.Family()}
		if slices.Contains(configured, ch) {
			info.Node, _ = a.cm.NodeURL(ch)
		}
		out = append(out, info)
	}
	return printJSON(out)
})

var preloadAction = withApp(func(c *cli.Context, a *app) error {
	intent, err := intentOptionsFrom(c).intent()
	if err != nil {
		return err
	}
	params, err := a.engine.Preload(c.Context, intent)
	if err != nil {
		return fmt.Errorf("failed to preload: %w", err)
	}
	return printJSON(params)
})

type signResult struct {
	Fee         txModel.Fee `json:"fee"`
	FinalAmount string      `json:"finalAmount"`
	Signed      []string    `json:"signed"`
}

// signIntent runs preload and sign for the intent on the command line. The key
// is zeroed before returning.
func (a *app) signIntent(c *cli.Context) (txModel.TransferIntent, [][]byte, *signResult, error) {
	intent, err := intentOptionsFrom(c).intent()
	if err != nil {
		return intent, nil, nil, err
	}
	balance, err := parseBalance(c.String("balance"))
	if err != nil {
		return intent, nil, nil, err
	}
	src, err := a.keySource(c)
	if err != nil {
		return intent, nil, nil, err
	}

	params, err := a.engine.Preload(c.Context, intent)
	if err != nil {
		return intent, nil, nil, fmt.Errorf("failed to preload: %w", err)
	}
	if params.ValidatorName != "" {
		a.l.Sugar().Infow("Staking with validator", "validator", params.ValidatorName)
	}
	fee := params.Fee(txModel.ParseFeePriority(c.String("priority")))
	finalAmount := params.FinalAmount(balance, fee)

	key, err := src.PrivateKey(c.Context)
	if err != nil {
		return intent, nil, nil, fmt.Errorf("failed to load private key: %w", err)
	}
	defer keySource.Zero(key)

	signed, err := a.engine.Sign(c.Context, params, finalAmount, fee, key)
	if err != nil {
		return intent, nil, nil, fmt.Errorf("failed to sign: %w", err)
	}

	res := &signResult{Fee: fee, FinalAmount: finalAmount.String()}
	for _, s := range signed {
		res.Signed = append(res.Signed, hex.EncodeToString(s))
	}
	return intent, signed, res, nil
}

var signAction = withApp(func(c *cli.Context, a *app) error {
	_, _, res, err := a.signIntent(c)
	if err != nil {
		return err
	}
	return printJSON(res)
})

var broadcastAction = withApp(func(c *cli.Context, a *app) error {
	ch, err := chain.Parse(c.String("chain"))
	if err != nil {
		return fmt.Errorf("chain %q: %w", c.String("chain"), err)
	}
	var signed [][]byte
	for _, tx := range c.StringSlice("tx") {
		b, err := hex.DecodeString(strings.TrimPrefix(tx, "0x"))
		if err != nil {
			return fmt.Errorf("tx is not hex: %w", err)
		}
		signed = append(signed, b)
	}
	account := txModel.Account{Chain: ch, Address: c.String("from")}
	hashes, err := a.engine.Broadcast(c.Context, account, signed, txModel.TransactionType(c.String("type")))
	if err != nil {
		if len(hashes) > 0 {
			_ = printJSON(hashes)
		}
		return fmt.Errorf("failed to broadcast payload %d of %d: %w", len(hashes)+1, len(signed), err)
	}
	return printJSON(hashes)
})

var statusAction = withApp(func(c *cli.Context, a *app) error {
	ch, err := chain.Parse(c.String("chain"))
	if err != nil {
		return fmt.Errorf("chain %q: %w", c.String("chain"), err)
	}
	req := txModel.TransactionStateRequest{
		Chain:  ch,
		Hash:   c.String("hash"),
		Block:  c.String("block"),
		Sender: c.String("sender"),
	}
	var changes txModel.TransactionChanges
	if c.Bool("wait") {
		changes, err = waitForTerminal(c.Context, a.engine, req, a.cfg.Poll.Interval, a.cfg.Poll.Timeout, a.l)
	} else {
		changes, err = a.engine.Status(c.Context, req)
	}
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return printJSON(changes)
})

var nodeStatusAction = withApp(func(c *cli.Context, a *app) error {
	ch, err := chain.Parse(c.String("chain"))
	if err != nil {
		return fmt.Errorf("chain %q: %w", c.String("chain"), err)
	}
	status, err := a.engine.NodeStatus(c.Context, ch, c.String("url"))
	if err != nil {
		return fmt.Errorf("failed to get node status: %w", err)
	}
	if status == nil {
		return fmt.Errorf("node status is not available for %s", ch)
	}
	return printJSON(status)
})

type sendResult struct {
	*signResult
	Hashes []string                     `json:"hashes"`
	Status []txModel.TransactionChanges `json:"status"`
}

var sendAction = withApp(func(c *cli.Context, a *app) error {
	intent, signed, res, err := a.signIntent(c)
	if err != nil {
		return err
	}
	hashes, err := a.engine.Broadcast(c.Context, intent.From, signed, intent.Type)
	if err != nil {
		return fmt.Errorf("failed to broadcast payload %d of %d: %w", len(hashes)+1, len(signed), err)
	}
	a.l.Sugar().Infow("Broadcast transaction", "chain", intent.Chain(), "hashes", hashes)

	out := sendResult{signResult: res, Hashes: hashes}
	for _, hash := range hashes {
		changes, err := waitForTerminal(c.Context, a.engine, txModel.TransactionStateRequest{
			Chain:  intent.Chain(),
			Hash:   hash,
			Sender: intent.From.Address,
		}, a.cfg.Poll.Interval, a.cfg.Poll.Timeout, a.l)
		if err != nil {
			return fmt.Errorf("failed to wait for %s: %w", hash, err)
		}
		out.Status = append(out.Status, changes)
	}
	return printJSON(out)
})
