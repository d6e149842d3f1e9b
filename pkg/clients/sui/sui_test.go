package sui

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

var testSeed = bytes.Repeat([]byte{9}, ed25519.SeedSize)

func testAddress() string {
	return addressOf(ed25519.NewKeyFromSeed(testSeed).Public().(ed25519.PublicKey))
}

func objectID(b byte) string {
	return fmt.Sprintf("0x%064x", b)
}

var testTxBytes = base64.StdEncoding.EncodeToString([]byte("sui transaction data"))

type rpcCall struct {
	Method string
	Params []json.RawMessage
}

// rpcNode answers JSON-RPC calls from a method -> raw result table and records
// every call. Entries starting with "error:" are returned as rpc errors.
type rpcNode struct {
	mu      sync.Mutex
	results map[string]string
	calls   []rpcCall
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls = append(n.calls, rpcCall{Method: req.Method, Params: req.Params})
	result, ok := n.results[req.Method]
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case !ok:
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method %s not found"}}`, req.ID, req.Method)
	case strings.HasPrefix(result, "error:"):
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32602,"message":%q}}`, req.ID, result[6:])
	default:
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}
}

func (n *rpcNode) call(t *testing.T, method string) rpcCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.calls {
		if c.Method == method {
			return c
		}
	}
	t.Fatalf("%s was not called", method)
	return rpcCall{}
}

func setupNode(t *testing.T, results map[string]string) (*Client, *rpcNode) {
	node := &rpcNode{results: results}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	cm := chainManager.NewChainManager(nil)
	require.NoError(t, cm.AddChain(&chainManager.ChainConfig{Chain: chain.Sui, RPCUrl: srv.URL}))
	return New(cm, zap.NewNop()), node
}

func preloadResults() map[string]string {
	coins := fmt.Sprintf(`{"data":[{"coinType":"0x2::sui::SUI","coinObjectId":%q,"version":"1","digest":"d1","balance":"5000000000"},{"coinType":"0x2::sui::SUI","coinObjectId":%q,"version":"2","digest":"d2","balance":"100"}],"nextCursor":null,"hasNextPage":false}`, objectID(1), objectID(2))
	return map[string]string{
		"suix_getCoins":              coins,
		"suix_getReferenceGasPrice":  `"1000"`,
		"unsafe_paySui":              fmt.Sprintf(`{"txBytes":%q}`, testTxBytes),
		"unsafe_payAllSui":           fmt.Sprintf(`{"txBytes":%q}`, testTxBytes),
		"unsafe_requestAddStake":     fmt.Sprintf(`{"txBytes":%q}`, testTxBytes),
		"sui_dryRunTransactionBlock": `{"effects":{"status":{"status":"success"},"gasUsed":{"computationCost":"1000000","storageCost":"2000000","storageRebate":"978120"}}}`,
	}
}

func nativeIntent(amount int64) txModel.TransferIntent {
	return txModel.TransferIntent{
		Type:        txModel.TransactionTypeTransfer,
		Asset:       txModel.Asset{Id: txModel.NativeAsset(chain.Sui), Symbol: "SUI", Decimals: 9},
		From:        txModel.Account{Chain: chain.Sui, Address: testAddress()},
		Destination: txModel.Destination{Address: objectID(0xaa)},
		Amount:      big.NewInt(amount),
	}
}

func TestSupported(t *testing.T) {
	c := New(nil, nil)
	assert.True(t, c.Supported(chain.Sui))
	assert.False(t, c.Supported(chain.Aptos))
}

func TestPreload_Native(t *testing.T) {
	c, node := setupNode(t, preloadResults())

	params, err := c.Preload(context.Background(), nativeIntent(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, txModel.SuiChainData{MessageBytes: testTxBytes}, params.ChainData)

	require.Len(t, params.Fees, 3)
	for _, fee := range params.Fees {
		assert.Equal(t, big.NewInt(2_021_880), fee.Amount)
		assert.Nil(t, fee.Gas)
		require.NotNil(t, fee.Limit)
		assert.Equal(t, big.NewInt(gasBudget), fee.Limit.Units)
		assert.Equal(t, big.NewInt(1000), fee.Limit.UnitPrice)
	}

	pay := node.call(t, "unsafe_paySui")
	require.Len(t, pay.Params, 5)
	assert.JSONEq(t, fmt.Sprintf(`[%q,%q]`, objectID(1), objectID(2)), string(pay.Params[1]))
	assert.JSONEq(t, `["1000000000"]`, string(pay.Params[3]))
	assert.JSONEq(t, `"25000000"`, string(pay.Params[4]))
}

func TestPreload_MaxAmountPaysAll(t *testing.T) {
	c, node := setupNode(t, preloadResults())

	_, err := c.Preload(context.Background(), nativeIntent(1).WithMaxAmount())
	require.NoError(t, err)
	node.call(t, "unsafe_payAllSui")
}

func TestPreload_GasPriceDefault(t *testing.T) {
	results := preloadResults()
	results["suix_getReferenceGasPrice"] = "error:unavailable"
	c, _ := setupNode(t, results)

	params, err := c.Preload(context.Background(), nativeIntent(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(defaultGasPrice), params.Fee(txModel.FeePriorityFast).Limit.UnitPrice)
}

func TestPreload_Stake(t *testing.T) {
	c, node := setupNode(t, preloadResults())
	intent := txModel.TransferIntent{
		Type:   txModel.TransactionTypeStakeDelegate,
		Asset:  txModel.Asset{Id: txModel.NativeAsset(chain.Sui), Decimals: 9},
		From:   txModel.Account{Chain: chain.Sui, Address: testAddress()},
		Amount: big.NewInt(1_000_000_000),
		Stake:  &txModel.StakeTarget{ValidatorID: objectID(0xbb)},
	}

	_, err := c.Preload(context.Background(), intent)
	require.NoError(t, err)
	stake := node.call(t, "unsafe_requestAddStake")
	assert.JSONEq(t, fmt.Sprintf("%q", objectID(0xbb)), string(stake.Params[3]))
}

func TestPreload_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(results map[string]string)
		intent  txModel.TransferIntent
		wantErr error
	}{
		{
			name:    "no coins",
			mutate:  func(r map[string]string) { r["suix_getCoins"] = `{"data":[],"hasNextPage":false}` },
			intent:  nativeIntent(1),
			wantErr: txErrors.ErrRejected,
		},
		{
			name: "dry run fails",
			mutate: func(r map[string]string) {
				r["sui_dryRunTransactionBlock"] = `{"effects":{"status":{"status":"failure","error":"InsufficientGas"},"gasUsed":{}}}`
			},
			intent:  nativeIntent(1),
			wantErr: txErrors.ErrRejected,
		},
		{
			name:    "invalid destination",
			mutate:  func(map[string]string) {},
			intent:  func() txModel.TransferIntent { i := nativeIntent(1); i.Destination.Address = "0x1234"; return i }(),
			wantErr: txErrors.ErrInvalidInput,
		},
		{
			name:   "rewards",
			mutate: func(map[string]string) {},
			intent: func() txModel.TransferIntent {
				i := nativeIntent(1)
				i.Type = txModel.TransactionTypeStakeRewards
				i.Stake = &txModel.StakeTarget{}
				return i
			}(),
			wantErr: txErrors.ErrUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := preloadResults()
			tt.mutate(results)
			c, _ := setupNode(t, results)

			params, err := c.Preload(context.Background(), tt.intent)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, params)
		})
	}
}

func TestSign(t *testing.T) {
	c := New(nil, nil)
	params := &txModel.SignerParams{Input: nativeIntent(1), ChainData: txModel.SuiChainData{MessageBytes: testTxBytes}}

	out, err := c.Sign(context.Background(), params, big.NewInt(1), txModel.Fee{}, testSeed)
	require.NoError(t, err)
	require.Len(t, out, 1)

	again, err := c.Sign(context.Background(), params, big.NewInt(1), txModel.Fee{}, testSeed)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	txBytes, sig64, ok := splitSigned(out[0])
	require.True(t, ok)
	assert.Equal(t, testTxBytes, txBytes)

	signature, err := base64.StdEncoding.DecodeString(sig64)
	require.NoError(t, err)
	require.Len(t, signature, 97)
	assert.Equal(t, byte(schemeEd25519), signature[0])

	pub := ed25519.NewKeyFromSeed(testSeed).Public().(ed25519.PublicKey)
	assert.Equal(t, []byte(pub), signature[65:])
	raw, _ := base64.StdEncoding.DecodeString(testTxBytes)
	digest := blake2b.Sum256(append([]byte{0, 0, 0}, raw...))
	assert.True(t, ed25519.Verify(pub, digest[:], signature[1:65]))
}

func TestSign_Rejections(t *testing.T) {
	c := New(nil, nil)
	intent := nativeIntent(1)

	for _, variant := range txModel.AllChainDataVariants() {
		if _, ok := variant.(txModel.SuiChainData); ok {
			continue
		}
		_, err := c.Sign(context.Background(), &txModel.SignerParams{Input: intent, ChainData: variant}, big.NewInt(1), txModel.Fee{}, testSeed)
		assert.ErrorIs(t, err, txErrors.ErrContractViolation, variant.Family())
	}

	params := &txModel.SignerParams{Input: intent, ChainData: txModel.SuiChainData{MessageBytes: testTxBytes}}
	_, err := c.Sign(context.Background(), params, big.NewInt(1), txModel.Fee{}, bytes.Repeat([]byte{1}, 32))
	assert.ErrorIs(t, err, txErrors.ErrSigning)

	params.ChainData = txModel.SuiChainData{MessageBytes: "%%%"}
	_, err = c.Sign(context.Background(), params, big.NewInt(1), txModel.Fee{}, testSeed)
	assert.ErrorIs(t, err, txErrors.ErrContractViolation)
}

func TestSign_AmountAndFeeMustMatchPreload(t *testing.T) {
	c := New(nil, nil)
	preloaded, err := txModel.NewFee(txModel.FeePriorityNormal, txModel.NativeAsset(chain.Sui), big.NewInt(2_021_880))
	require.NoError(t, err)
	other, err := txModel.NewFee(txModel.FeePriorityNormal, txModel.NativeAsset(chain.Sui), big.NewInt(5_000_000))
	require.NoError(t, err)

	tests := []struct {
		name        string
		intent      txModel.TransferIntent
		finalAmount *big.Int
		fee         txModel.Fee
		wantErr     bool
	}{
		{name: "preloaded values", intent: nativeIntent(1_000), finalAmount: big.NewInt(1_000), fee: preloaded},
		{name: "lower amount", intent: nativeIntent(1_000), finalAmount: big.NewInt(900), fee: preloaded, wantErr: true},
		{name: "missing amount", intent: nativeIntent(1_000), fee: preloaded, wantErr: true},
		{name: "fee not preloaded", intent: nativeIntent(1_000), finalAmount: big.NewInt(1_000), fee: other, wantErr: true},
		{name: "max amount", intent: nativeIntent(1_000).WithMaxAmount(), finalAmount: big.NewInt(987), fee: preloaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := &txModel.SignerParams{
				Input:     tt.intent,
				Fees:      []txModel.Fee{preloaded},
				ChainData: txModel.SuiChainData{MessageBytes: testTxBytes},
			}
			out, err := c.Sign(context.Background(), params, tt.finalAmount, tt.fee, testSeed)
			if tt.wantErr {
				assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
				assert.Nil(t, out)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, 1)
		})
	}
}

func TestBroadcast(t *testing.T) {
	c, node := setupNode(t, map[string]string{
		"sui_executeTransactionBlock": `{"digest":"5mFLm2Qh3uy","effects":{"status":{"status":"success"},"gasUsed":{}}}`,
	})

	digest, err := c.Broadcast(context.Background(), txModel.Account{Chain: chain.Sui}, []byte(testTxBytes+"_c2ln"), txModel.TransactionTypeTransfer)
	require.NoError(t, err)
	assert.Equal(t, "5mFLm2Qh3uy", digest)

	call := node.call(t, "sui_executeTransactionBlock")
	assert.JSONEq(t, fmt.Sprintf("%q", testTxBytes), string(call.Params[0]))
	assert.JSONEq(t, `["c2ln"]`, string(call.Params[1]))

	_, err = c.Broadcast(context.Background(), txModel.Account{Chain: chain.Sui}, []byte("no-separator"), txModel.TransactionTypeTransfer)
	assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   txModel.TransactionChanges
	}{
		{
			name:   "unknown",
			result: "error:Could not find the referenced transaction",
			want:   txModel.PendingChanges(),
		},
		{
			name:   "success",
			result: `{"digest":"d","effects":{"status":{"status":"success"},"gasUsed":{"computationCost":"750000","storageCost":"1976000","storageRebate":"978120"}}}`,
			want:   txModel.TransactionChanges{State: txModel.TransactionStateConfirmed, Fee: big.NewInt(1_747_880)},
		},
		{
			name:   "failure",
			result: `{"digest":"d","effects":{"status":{"status":"failure","error":"MoveAbort"},"gasUsed":{"computationCost":"750000","storageCost":"0","storageRebate":"0"}}}`,
			want:   txModel.TransactionChanges{State: txModel.TransactionStateFailed, Fee: big.NewInt(750_000)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupNode(t, map[string]string{"sui_getTransactionBlock": tt.result})
			req := txModel.TransactionStateRequest{Chain: chain.Sui, Hash: "d"}

			got, err := c.GetStatus(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := c.GetStatus(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestGetNodeStatus(t *testing.T) {
	now := time.Now().UnixMilli()
	c, _ := setupNode(t, map[string]string{
		"sui_getChainIdentifier":                `"35834a8a"`,
		"sui_getLatestCheckpointSequenceNumber": `"120000000"`,
		"sui_getCheckpoint":                     fmt.Sprintf(`{"sequenceNumber":"120000000","timestampMs":"%d"}`, now),
	})

	status, err := c.GetNodeStatus(context.Background(), chain.Sui, "")
	require.NoError(t, err)
	assert.Equal(t, "35834a8a", status.ChainID)
	assert.Equal(t, uint64(120_000_000), status.LatestBlock)
	assert.True(t, status.InSync)
}
