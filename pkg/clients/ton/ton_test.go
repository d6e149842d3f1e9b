package ton

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

var testSeed = bytes.Repeat([]byte{7}, ed25519.SeedSize)

func testWallet(t *testing.T) string {
	pub := ed25519.NewKeyFromSeed(testSeed).Public().(ed25519.PublicKey)
	addr, err := wallet.AddressFromPubKey(pub, wallet.V4R2, wallet.DefaultSubwallet)
	require.NoError(t, err)
	return addr.String()
}

func accountOf(b byte) string {
	return address.NewAddress(0, 0, bytes.Repeat([]byte{b}, 32)).String()
}

func rawAccountOf(b byte) string {
	return "0:" + strings.ToUpper(hex.EncodeToString(bytes.Repeat([]byte{b}, 32)))
}

func setupNode(t *testing.T, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cm := chainManager.NewChainManager(nil)
	require.NoError(t, cm.AddChain(&chainManager.ChainConfig{Chain: chain.Ton, RPCUrl: srv.URL}))
	c := New(cm, zap.NewNop())
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func center(t *testing.T, seqno uint32, jettonWallets map[string]string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/getWalletInformation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testWallet(t), r.URL.Query().Get("address"))
		state := "active"
		if seqno == 0 {
			state = "uninitialized"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"wallet": seqno > 0, "balance": "5000000000", "account_state": state, "seqno": seqno},
		})
	})
	mux.HandleFunc("/api/v3/jetton/wallets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, accountOf(0x22), r.URL.Query().Get("jetton_address"))
		wallets := []map[string]string{}
		if addr, ok := jettonWallets[r.URL.Query().Get("owner_address")]; ok {
			wallets = append(wallets, map[string]string{"address": addr})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jetton_wallets": wallets})
	})
	return mux
}

func nativeIntent(t *testing.T, amount int64) txModel.TransferIntent {
	return txModel.TransferIntent{
		Type:        txModel.TransactionTypeTransfer,
		Asset:       txModel.Asset{Id: txModel.NativeAsset(chain.Ton), Symbol: "TON", Decimals: 9},
		From:        txModel.Account{Chain: chain.Ton, Address: testWallet(t)},
		Destination: txModel.Destination{Address: accountOf(0x11)},
		Amount:      big.NewInt(amount),
		Memo:        "hello",
	}
}

func jettonIntent(t *testing.T, amount int64) txModel.TransferIntent {
	intent := nativeIntent(t, amount)
	intent.Asset = txModel.Asset{Id: txModel.AssetId{Chain: chain.Ton, TokenID: accountOf(0x22)}, Symbol: "USDT", Decimals: 6}
	return intent
}

func TestSupported(t *testing.T) {
	c := New(nil, nil)
	assert.True(t, c.Supported(chain.Ton))
	assert.False(t, c.Supported(chain.Solana))
}

func TestParseAddress(t *testing.T) {
	friendly, err := parseAddress(txErrors.OpSign, accountOf(0xab))
	require.NoError(t, err)
	raw, err := parseAddress(txErrors.OpSign, rawAccountOf(0xab))
	require.NoError(t, err)
	assert.True(t, sameAccount(friendly, raw))

	_, err = parseAddress(txErrors.OpSign, "not an address")
	assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
}

func TestPreload_Native(t *testing.T) {
	c := setupNode(t, center(t, 12, nil))

	params, err := c.Preload(context.Background(), nativeIntent(t, 1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, txModel.TonChainData{Sequence: 12, ExpireAt: 1_700_000_600}, params.ChainData)
	require.Len(t, params.Fees, 3)
	for _, fee := range params.Fees {
		assert.Equal(t, big.NewInt(networkFee), fee.Amount)
		assert.Empty(t, fee.Options)
	}
}

func TestPreload_Jetton(t *testing.T) {
	tests := []struct {
		name         string
		wallets      func(t *testing.T) map[string]string
		wantCreation *big.Int
	}{
		{
			name: "recipient has a jetton wallet",
			wallets: func(t *testing.T) map[string]string {
				return map[string]string{testWallet(t): rawAccountOf(0x33), accountOf(0x11): rawAccountOf(0x44)}
			},
			wantCreation: big.NewInt(0),
		},
		{
			name: "recipient jetton wallet is deployed",
			wallets: func(t *testing.T) map[string]string {
				return map[string]string{testWallet(t): rawAccountOf(0x33)}
			},
			wantCreation: big.NewInt(jettonWalletCreation),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupNode(t, center(t, 3, tt.wallets(t)))

			params, err := c.Preload(context.Background(), jettonIntent(t, 5_000_000))
			require.NoError(t, err)
			data := params.ChainData.(txModel.TonChainData)
			assert.Equal(t, rawAccountOf(0x33), data.JettonAddress)

			fee := params.Fee(txModel.FeePriorityNormal)
			assert.Equal(t, big.NewInt(networkFee+jettonTransferValue), fee.Amount)
			assert.Equal(t, tt.wantCreation, fee.Option(txModel.FeeOptionTokenAccountCreation))
		})
	}
}

func TestPreload_Rejections(t *testing.T) {
	t.Run("no sender jetton wallet", func(t *testing.T) {
		c := setupNode(t, center(t, 3, nil))
		_, err := c.Preload(context.Background(), jettonIntent(t, 1))
		assert.ErrorIs(t, err, txErrors.ErrRejected)
	})
	t.Run("staking", func(t *testing.T) {
		intent := nativeIntent(t, 1)
		intent.Type = txModel.TransactionTypeStakeDelegate
		_, err := New(chainManager.NewChainManager(nil), nil).Preload(context.Background(), intent)
		assert.ErrorIs(t, err, txErrors.ErrUnsupported)
	})
	t.Run("center down", func(t *testing.T) {
		c := setupNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		_, err := c.Preload(context.Background(), nativeIntent(t, 1))
		assert.ErrorIs(t, err, txErrors.ErrTransient)
	})
}

type externalMessage struct {
	dst       *address.Address
	stateInit bool
	signature []byte
	payload   *cell.Cell
}

// parseExternal decodes ext_in_msg_info$10 and, for deployed wallets, the signed body.
func parseExternal(t *testing.T, blob []byte) externalMessage {
	raw, err := base64.StdEncoding.DecodeString(string(blob))
	require.NoError(t, err)
	root, err := cell.FromBOC(raw)
	require.NoError(t, err)

	s := root.BeginParse()
	require.Equal(t, uint64(2), s.MustLoadUInt(2))
	s.MustLoadAddr()
	msg := externalMessage{dst: s.MustLoadAddr()}
	s.MustLoadCoins()
	if msg.stateInit = s.MustLoadBoolBit(); msg.stateInit {
		return msg
	}
	body := s
	if s.MustLoadBoolBit() {
		body = s.MustLoadRef()
	}
	msg.signature = body.MustLoadSlice(512)
	msg.payload, err = body.ToCell()
	require.NoError(t, err)
	return msg
}

func signParams(intent txModel.TransferIntent, data txModel.TonChainData) *txModel.SignerParams {
	return &txModel.SignerParams{Input: intent, ChainData: data}
}

func TestSign_Native(t *testing.T) {
	c := New(nil, nil)
	intent := nativeIntent(t, 1_000_000_000)
	params := signParams(intent, txModel.TonChainData{Sequence: 12, ExpireAt: 1_700_000_600})

	out, err := c.Sign(context.Background(), params, intent.Amount, txModel.Fee{}, testSeed)
	require.NoError(t, err)
	require.Len(t, out, 1)

	again, err := c.Sign(context.Background(), params, intent.Amount, txModel.Fee{}, testSeed)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	msg := parseExternal(t, out[0])
	from, err := parseAddress(txErrors.OpSign, testWallet(t))
	require.NoError(t, err)
	assert.True(t, sameAccount(from, msg.dst))
	assert.False(t, msg.stateInit)

	pub := ed25519.NewKeyFromSeed(testSeed).Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, msg.payload.Hash(), msg.signature))

	p := msg.payload.BeginParse()
	assert.Equal(t, uint64(wallet.DefaultSubwallet), p.MustLoadUInt(32))
	assert.Equal(t, uint64(1_700_000_600), p.MustLoadUInt(32))
	assert.Equal(t, uint64(12), p.MustLoadUInt(32))
	assert.Equal(t, uint64(0), p.MustLoadUInt(8))
	assert.Equal(t, uint64(defaultMode), p.MustLoadUInt(8))
}

func TestSign_DeploysFirstMessage(t *testing.T) {
	c := New(nil, nil)
	intent := nativeIntent(t, 1)
	out, err := c.Sign(context.Background(), signParams(intent, txModel.TonChainData{Sequence: 0, ExpireAt: 1}), intent.Amount, txModel.Fee{}, testSeed)
	require.NoError(t, err)
	assert.True(t, parseExternal(t, out[0]).stateInit)
}

func TestInternalMessage(t *testing.T) {
	from, err := parseAddress(txErrors.OpSign, testWallet(t))
	require.NoError(t, err)

	t.Run("native max", func(t *testing.T) {
		intent := nativeIntent(t, 1_000).WithMaxAmount()
		msg, mode, err := internalMessage(chain.Ton, intent, txModel.TonChainData{}, from, big.NewInt(1_000), txModel.Fee{})
		require.NoError(t, err)
		assert.Equal(t, maxMode, mode)
		assert.False(t, msg.Bounce)
		assert.Equal(t, big.NewInt(1_000), msg.Amount.Nano())
		to, _ := parseAddress(txErrors.OpSign, accountOf(0x11))
		assert.True(t, sameAccount(to, msg.DstAddr))
		require.NotNil(t, msg.Body)
		b := msg.Body.BeginParse()
		assert.Equal(t, uint64(0), b.MustLoadUInt(32))
	})

	t.Run("jetton", func(t *testing.T) {
		fee := txModel.Fee{Amount: big.NewInt(networkFee + jettonTransferValue)}.
			WithOption(txModel.FeeOptionTokenAccountCreation, big.NewInt(jettonWalletCreation))
		data := txModel.TonChainData{Sequence: 3, ExpireAt: 99, JettonAddress: rawAccountOf(0x33)}
		msg, mode, err := internalMessage(chain.Ton, jettonIntent(t, 5_000_000), data, from, big.NewInt(5_000_000), fee)
		require.NoError(t, err)
		assert.Equal(t, defaultMode, mode)
		assert.True(t, msg.Bounce)
		assert.Equal(t, big.NewInt(jettonTransferValue+jettonWalletCreation), msg.Amount.Nano())

		jettonWallet, _ := parseAddress(txErrors.OpSign, rawAccountOf(0x33))
		assert.True(t, sameAccount(jettonWallet, msg.DstAddr))

		b := msg.Body.BeginParse()
		assert.Equal(t, uint64(jettonTransferOp), b.MustLoadUInt(32))
		assert.Equal(t, uint64(99), b.MustLoadUInt(64))
		assert.Equal(t, big.NewInt(5_000_000), b.MustLoadBigCoins())
		to, _ := parseAddress(txErrors.OpSign, accountOf(0x11))
		assert.True(t, sameAccount(to, b.MustLoadAddr()))
		assert.True(t, sameAccount(from, b.MustLoadAddr()))
		assert.False(t, b.MustLoadBoolBit())
		assert.Equal(t, big.NewInt(1), b.MustLoadBigCoins())
		assert.True(t, b.MustLoadBoolBit(), "comment is forwarded")
	})

	t.Run("swap", func(t *testing.T) {
		payload := cell.BeginCell().MustStoreUInt(0x25938561, 32).EndCell()
		intent := nativeIntent(t, 2_000)
		intent.Type = txModel.TransactionTypeSwap
		intent.Swap = &txModel.SwapData{
			To:    accountOf(0x55),
			Data:  []byte(base64.StdEncoding.EncodeToString(payload.ToBOC())),
			Value: big.NewInt(2_500),
		}
		msg, _, err := internalMessage(chain.Ton, intent, txModel.TonChainData{}, from, big.NewInt(2_000), txModel.Fee{})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(2_500), msg.Amount.Nano())
		assert.Equal(t, payload.Hash(), msg.Body.Hash())
	})
}

func TestSign_Rejections(t *testing.T) {
	c := New(nil, nil)
	intent := nativeIntent(t, 1)

	for _, variant := range txModel.AllChainDataVariants() {
		if _, ok := variant.(txModel.TonChainData); ok {
			continue
		}
		_, err := c.Sign(context.Background(), &txModel.SignerParams{Input: intent, ChainData: variant}, intent.Amount, txModel.Fee{}, testSeed)
		assert.ErrorIs(t, err, txErrors.ErrContractViolation, variant.Family())
	}

	_, err := c.Sign(context.Background(), signParams(intent, txModel.TonChainData{Sequence: 1}), intent.Amount, txModel.Fee{}, bytes.Repeat([]byte{8}, 32))
	assert.ErrorIs(t, err, txErrors.ErrSigning)

	_, err = c.Sign(context.Background(), signParams(jettonIntent(t, 1), txModel.TonChainData{Sequence: 1}), intent.Amount, txModel.Fee{}, testSeed)
	assert.ErrorIs(t, err, txErrors.ErrContractViolation)
}

func TestBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
		wantMsg string
	}{
		{name: "accepted", status: http.StatusOK, body: `{"ok":true,"result":{"hash":"bXNnaGFzaA=="}}`, want: "bXNnaGFzaA=="},
		{name: "center error", status: http.StatusInternalServerError, body: `{"ok":false,"error":"exitcode=33"}`, wantErr: txErrors.ErrTransient},
		{name: "bad boc", status: http.StatusBadRequest, body: `{"ok":false,"error":"failed to parse boc"}`, wantErr: txErrors.ErrRejected, wantMsg: "failed to parse boc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v2/sendBocReturnHash", r.URL.Path)
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"boc":"te6c"}`, string(body))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			hash, err := c.Broadcast(context.Background(), txModel.Account{Chain: chain.Ton}, []byte("te6c"), txModel.TransactionTypeTransfer)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				if tt.wantMsg != "" {
					var typed *txErrors.Error
					require.ErrorAs(t, err, &typed)
					assert.Equal(t, tt.wantMsg, typed.Message)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, hash)
		})
	}
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want txModel.TransactionChanges
	}{
		{name: "not indexed", body: `{"transactions":[]}`, want: txModel.PendingChanges()},
		{
			name: "confirmed",
			body: `{"transactions":[{"hash":"dHg=","total_fees":"3000000","description":{"aborted":false}}]}`,
			want: txModel.TransactionChanges{State: txModel.TransactionStateConfirmed, NewHash: "dHg=", Fee: big.NewInt(3_000_000)},
		},
		{
			name: "aborted",
			body: `{"transactions":[{"hash":"dHg=","total_fees":"1000","description":{"aborted":true}}]}`,
			want: txModel.TransactionChanges{State: txModel.TransactionStateFailed, NewHash: "dHg=", Fee: big.NewInt(1_000)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v3/transactionsByMessage", r.URL.Path)
				assert.Equal(t, "bXNn", r.URL.Query().Get("msg_hash"))
				_, _ = io.WriteString(w, tt.body)
			}))
			req := txModel.TransactionStateRequest{Chain: chain.Ton, Hash: "bXNn"}

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
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/getMasterchainInfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"last":{"seqno":41000000},"init":{"root_hash":"F6OpKZKqvqeFp6CQmFomXNMfMj2EnaUSOXN+Mh+wVWk="}}}`)
	})
	mux.HandleFunc("/api/v2/getConsensusBlock", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"consensus_block":41000002,"timestamp":1700000000.5}}`)
	})
	c := setupNode(t, mux)

	status, err := c.GetNodeStatus(context.Background(), chain.Ton, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(41_000_000), status.LatestBlock)
	assert.Equal(t, "F6OpKZKqvqeFp6CQmFomXNMfMj2EnaUSOXN+Mh+wVWk=", status.ChainID)
	assert.False(t, status.InSync)
}
