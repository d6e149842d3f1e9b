package cosmos

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/chainManager"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txModel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testKey(t *testing.T) []byte {
	key, err := hex.DecodeString(testKeyHex)
	require.NoError(t, err)
	return key
}

func addresses(t *testing.T, prefix string) (string, string) {
	_, pub := btcec.PrivKeyFromBytes(testKey(t))
	from, err := bech32.EncodeFromBase256(prefix, btcutil.Hash160(pub.SerializeCompressed()))
	require.NoError(t, err)
	to, err := bech32.EncodeFromBase256(prefix, btcutil.Hash160([]byte("destination")))
	require.NoError(t, err)
	return from, to
}

func valoper(t *testing.T, prefix string) string {
	addr, err := bech32.EncodeFromBase256(prefix+"valoper", btcutil.Hash160([]byte("validator")))
	require.NoError(t, err)
	return addr
}

func setupNode(t *testing.T, network chain.Chain, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cm := chainManager.NewChainManager(nil)
	require.NoError(t, cm.AddChain(&chainManager.ChainConfig{Chain: network, RPCUrl: srv.URL}))
	return New(cm, zap.NewNop())
}

func intentFor(network chain.Chain, from, to string, amount int64) txModel.TransferIntent {
	return txModel.TransferIntent{
		Type:        txModel.TransactionTypeTransfer,
		Asset:       txModel.Asset{Id: txModel.NativeAsset(network), Decimals: 6},
		From:        txModel.Account{Chain: network, Address: from},
		Destination: txModel.Destination{Address: to},
		Amount:      big.NewInt(amount),
		Memo:        "hello",
	}
}

func lcdHandler(t *testing.T, from, accountJSON string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/cosmos/auth/v1beta1/accounts/"+from, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, accountJSON)
	})
	mux.HandleFunc("/cosmos/base/tendermint/v1beta1/blocks/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"block":{"header":{"chain_id":"cosmoshub-4","height":"19000000"}}}`)
	})
	return mux
}

const baseAccountJSON = `{"account":{"@type":"/cosmos.auth.v1beta1.BaseAccount","account_number":"12345","sequence":"7"}}`

func TestSupported(t *testing.T) {
	c := New(nil, nil)
	for _, network := range chain.OfFamily(chain.FamilyCosmos) {
		assert.True(t, c.Supported(network), network)
	}
	assert.False(t, c.Supported(chain.Ethereum))
}

func TestPreload(t *testing.T) {
	from, to := addresses(t, "cosmos")
	c := setupNode(t, chain.Cosmos, lcdHandler(t, from, baseAccountJSON))

	params, err := c.Preload(context.Background(), intentFor(chain.Cosmos, from, to, 1_000_000))
	require.NoError(t, err)

	data, ok := params.ChainData.(txModel.CosmosChainData)
	require.True(t, ok)
	assert.Equal(t, txModel.CosmosChainData{ChainID: "cosmoshub-4", AccountNumber: 12345, Sequence: 7}, data)

	require.Len(t, params.Fees, 3)
	for _, fee := range params.Fees {
		assert.Equal(t, big.NewInt(3_000), fee.Amount)
		assert.Equal(t, big.NewInt(200_000), fee.Limit.Units)
	}
	assert.Empty(t, params.ValidatorName)
}

func TestPreload_AccountWrappers(t *testing.T) {
	tests := []struct {
		name    string
		account string
	}{
		{
			name:    "vesting",
			account: `{"account":{"@type":"/cosmos.vesting.v1beta1.ContinuousVestingAccount","base_vesting_account":{"base_account":{"account_number":"12345","sequence":"7"}}}}`,
		},
		{
			name:    "eth account",
			account: `{"account":{"@type":"/injective.types.v1beta1.EthAccount","base_account":{"account_number":"12345","sequence":"7"}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := addresses(t, "cosmos")
			c := setupNode(t, chain.Cosmos, lcdHandler(t, from, tt.account))

			params, err := c.Preload(context.Background(), intentFor(chain.Cosmos, from, to, 1))
			require.NoError(t, err)
			data := params.ChainData.(txModel.CosmosChainData)
			assert.Equal(t, uint64(12345), data.AccountNumber)
			assert.Equal(t, uint64(7), data.Sequence)
		})
	}
}

func TestPreload_AccountNotInitialized(t *testing.T) {
	from, to := addresses(t, "cosmos")
	mux := lcdHandler(t, "unused", baseAccountJSON)
	mux.HandleFunc("/cosmos/auth/v1beta1/accounts/"+from, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":5,"message":"account not found"}`)
	})
	c := setupNode(t, chain.Cosmos, mux)

	params, err := c.Preload(context.Background(), intentFor(chain.Cosmos, from, to, 1))
	assert.Nil(t, params)
	assert.ErrorIs(t, err, txErrors.ErrAccountNotInitialized)
}

func TestPreload_ValidatorName(t *testing.T) {
	from, _ := addresses(t, "cosmos")
	validator := valoper(t, "cosmos")
	intent := intentFor(chain.Cosmos, from, "", 1_000_000)
	intent.Type = txModel.TransactionTypeStakeDelegate
	intent.Stake = &txModel.StakeTarget{ValidatorID: validator}

	t.Run("found", func(t *testing.T) {
		mux := lcdHandler(t, from, baseAccountJSON)
		mux.HandleFunc("/cosmos/staking/v1beta1/validators/"+validator, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"validator":{"description":{"moniker":"Everstake"}}}`)
		})
		params, err := setupNode(t, chain.Cosmos, mux).Preload(context.Background(), intent)
		require.NoError(t, err)
		assert.Equal(t, "Everstake", params.ValidatorName)
		assert.Equal(t, big.NewInt(25_000), params.Fees[0].Amount)
		assert.Equal(t, big.NewInt(1_000_000), params.Fees[0].Limit.Units)
	})

	t.Run("lookup failure degrades", func(t *testing.T) {
		mux := lcdHandler(t, from, baseAccountJSON)
		mux.HandleFunc("/cosmos/staking/v1beta1/validators/"+validator, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		params, err := setupNode(t, chain.Cosmos, mux).Preload(context.Background(), intent)
		require.NoError(t, err)
		assert.Empty(t, params.ValidatorName)
	})
}

func TestPreload_RewardsScaleGas(t *testing.T) {
	from, _ := addresses(t, "cosmos")
	intent := intentFor(chain.Cosmos, from, "", 0)
	intent.Type = txModel.TransactionTypeStakeRewards
	intent.Stake = &txModel.StakeTarget{Validators: []string{valoper(t, "cosmos"), valoper(t, "cosmos")}}

	params, err := setupNode(t, chain.Cosmos, lcdHandler(t, from, baseAccountJSON)).Preload(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000), params.Fees[0].Limit.Units)
}

func TestPreload_InvalidAddress(t *testing.T) {
	from, to := addresses(t, "osmo")
	c := setupNode(t, chain.Cosmos, http.NotFoundHandler())

	_, err := c.Preload(context.Background(), intentFor(chain.Cosmos, from, to, 1))
	assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
}

func TestPreload_NoNode(t *testing.T) {
	from, to := addresses(t, "cosmos")
	c := New(chainManager.NewChainManager(nil), nil)

	_, err := c.Preload(context.Background(), intentFor(chain.Cosmos, from, to, 1))
	assert.ErrorIs(t, err, txErrors.ErrUnsupported)
}

// fields splits an encoded message into its length-delimited fields.
func fields(t *testing.T, b []byte) map[protowire.Number][][]byte {
	out := map[protowire.Number][][]byte{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.Greater(t, n, 0)
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			require.Greater(t, n, 0)
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		require.Greater(t, n, 0)
		out[num] = append(out[num], v)
		b = b[n:]
	}
	return out
}

func signedTxRaw(t *testing.T, blob []byte) map[protowire.Number][][]byte {
	var req broadcastRequest
	require.NoError(t, json.Unmarshal(blob, &req))
	assert.Equal(t, "BROADCAST_MODE_SYNC", req.Mode)
	raw, err := base64.StdEncoding.DecodeString(req.TxBytes)
	require.NoError(t, err)
	return fields(t, raw)
}

func signParams(network chain.Chain, intent txModel.TransferIntent, chainID string) *txModel.SignerParams {
	p, _ := chain.CosmosConfig(network)
	return &txModel.SignerParams{
		Input:     intent,
		ChainData: txModel.CosmosChainData{ChainID: chainID, AccountNumber: 12345, Sequence: 7},
		Fees:      staticFees(network, p, intent),
	}
}

func signDoc(t *testing.T, body, authInfo []byte, chainID string) []byte {
	doc, err := (&txtypes.SignDoc{BodyBytes: body, AuthInfoBytes: authInfo, ChainId: chainID, AccountNumber: 12345}).Marshal()
	require.NoError(t, err)
	return doc
}

func TestSign_VerifiesAgainstSignDoc(t *testing.T) {
	from, to := addresses(t, "cosmos")
	c := New(nil, nil)
	params := signParams(chain.Cosmos, intentFor(chain.Cosmos, from, to, 1_000_000), "cosmoshub-4")
	fee := params.Fee(txModel.FeePriorityNormal)

	out, err := c.Sign(context.Background(), params, big.NewInt(1_000_000), fee, testKey(t))
	require.NoError(t, err)
	require.Len(t, out, 1)

	again, err := c.Sign(context.Background(), params, big.NewInt(1_000_000), fee, testKey(t))
	require.NoError(t, err)
	assert.Equal(t, out, again)

	tx := signedTxRaw(t, out[0])
	require.Len(t, tx[1], 1)
	require.Len(t, tx[2], 1)
	require.Len(t, tx[3], 1)
	body, authInfo, sig := tx[1][0], tx[2][0], tx[3][0]
	assert.Len(t, sig, 64)

	var txBody txtypes.TxBody
	require.NoError(t, txBody.Unmarshal(body))
	assert.Equal(t, "hello", txBody.Memo)
	require.Len(t, txBody.Messages, 1)
	assert.Equal(t, "/cosmos.bank.v1beta1.MsgSend", txBody.Messages[0].TypeUrl)
	var send banktypes.MsgSend
	require.NoError(t, send.Unmarshal(txBody.Messages[0].Value))
	assert.Equal(t, from, send.FromAddress)
	assert.Equal(t, to, send.ToAddress)
	require.Len(t, send.Amount, 1)
	assert.Equal(t, "uatom", send.Amount[0].Denom)
	assert.Equal(t, "1000000", send.Amount[0].Amount.String())

	var info txtypes.AuthInfo
	require.NoError(t, info.Unmarshal(authInfo))
	require.Len(t, info.SignerInfos, 1)
	assert.Equal(t, uint64(7), info.SignerInfos[0].Sequence)
	assert.Equal(t, uint64(200_000), info.Fee.GasLimit)
	assert.Equal(t, "3000uatom", info.Fee.Amount.String())

	digest := sha256.Sum256(signDoc(t, body, authInfo, "cosmoshub-4"))
	_, pub := btcec.PrivKeyFromBytes(testKey(t))
	assert.True(t, crypto.VerifySignature(pub.SerializeCompressed(), digest[:], sig))
	assert.True(t, bytes.Contains(authInfo, []byte("/cosmos.crypto.secp256k1.PubKey")))
}

func TestSign_Injective(t *testing.T) {
	from, to := addresses(t, "inj")
	params := signParams(chain.Injective, intentFor(chain.Injective, from, to, 5), "injective-1")

	out, err := New(nil, nil).Sign(context.Background(), params, big.NewInt(5), params.Fees[0], testKey(t))
	require.NoError(t, err)

	tx := signedTxRaw(t, out[0])
	body, authInfo, sig := tx[1][0], tx[2][0], tx[3][0]
	assert.True(t, bytes.Contains(authInfo, []byte("/injective.crypto.v1beta1.ethsecp256k1.PubKey")))

	_, pub := btcec.PrivKeyFromBytes(testKey(t))
	assert.True(t, crypto.VerifySignature(pub.SerializeCompressed(), crypto.Keccak256(signDoc(t, body, authInfo, "injective-1")), sig))
}

func TestSign_Thorchain(t *testing.T) {
	from, to := addresses(t, "thor")
	params := signParams(chain.Thorchain, intentFor(chain.Thorchain, from, to, 5), "thorchain-1")

	out, err := New(nil, nil).Sign(context.Background(), params, big.NewInt(5), params.Fees[0], testKey(t))
	require.NoError(t, err)

	tx := signedTxRaw(t, out[0])
	msg := fields(t, fields(t, tx[1][0])[1][0])
	assert.Equal(t, "/types.MsgSend", string(msg[1][0]))
	send := fields(t, msg[2][0])
	_, pub := btcec.PrivKeyFromBytes(testKey(t))
	assert.Equal(t, btcutil.Hash160(pub.SerializeCompressed()), send[1][0])

	fee := fields(t, fields(t, tx[2][0])[2][0])
	assert.Empty(t, fee[1], "thorchain fee carries no amount")
}

func TestSign_ThorchainSwapDeposit(t *testing.T) {
	from, _ := addresses(t, "thor")
	intent := intentFor(chain.Thorchain, from, "", 5)
	intent.Type = txModel.TransactionTypeSwap
	intent.Swap = &txModel.SwapData{To: "thorchain", Data: []byte("=:ETH.ETH:0xabc")}
	params := signParams(chain.Thorchain, intent, "thorchain-1")

	out, err := New(nil, nil).Sign(context.Background(), params, big.NewInt(5), params.Fees[0], testKey(t))
	require.NoError(t, err)

	body := fields(t, signedTxRaw(t, out[0])[1][0])
	assert.Equal(t, "=:ETH.ETH:0xabc", string(body[2][0]))
	msg := fields(t, body[1][0])
	assert.Equal(t, "/types.MsgDeposit", string(msg[1][0]))
	deposit := fields(t, msg[2][0])
	assert.Equal(t, "=:ETH.ETH:0xabc", string(deposit[2][0]))
	coin := fields(t, deposit[1][0])
	assert.Equal(t, "5", string(coin[2][0]))
}

func TestSign_StakeMessages(t *testing.T) {
	from, _ := addresses(t, "cosmos")
	validator := valoper(t, "cosmos")
	tests := []struct {
		name     string
		txType   txModel.TransactionType
		stake    *txModel.StakeTarget
		typeURL  string
		messages int
	}{
		{name: "delegate", txType: txModel.TransactionTypeStakeDelegate, stake: &txModel.StakeTarget{ValidatorID: validator}, typeURL: typeMsgDelegate, messages: 1},
		{name: "undelegate", txType: txModel.TransactionTypeStakeUndelegate, stake: &txModel.StakeTarget{ValidatorID: validator}, typeURL: typeMsgUndelegate, messages: 1},
		{name: "redelegate", txType: txModel.TransactionTypeStakeRedelegate, stake: &txModel.StakeTarget{ValidatorID: validator, SrcValidatorID: validator}, typeURL: typeMsgRedelegate, messages: 1},
		{name: "rewards", txType: txModel.TransactionTypeStakeRewards, stake: &txModel.StakeTarget{Validators: []string{validator, validator}}, typeURL: typeMsgWithdrawRewards, messages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := intentFor(chain.Cosmos, from, "", 100)
			intent.Type = tt.txType
			intent.Stake = tt.stake
			params := signParams(chain.Cosmos, intent, "cosmoshub-4")

			out, err := New(nil, nil).Sign(context.Background(), params, big.NewInt(100), params.Fees[0], testKey(t))
			require.NoError(t, err)

			body := fields(t, signedTxRaw(t, out[0])[1][0])
			require.Len(t, body[1], tt.messages)
			assert.Equal(t, tt.typeURL, string(fields(t, body[1][0])[1][0]))
			assert.Equal(t, stakeMemo, string(body[2][0]))
		})
	}
}

func TestSign_RejectsForeignChainData(t *testing.T) {
	from, to := addresses(t, "cosmos")
	for _, data := range txModel.AllChainDataVariants() {
		if _, ok := data.(txModel.CosmosChainData); ok {
			continue
		}
		params := signParams(chain.Cosmos, intentFor(chain.Cosmos, from, to, 1), "cosmoshub-4")
		params.ChainData = data

		out, err := New(nil, nil).Sign(context.Background(), params, big.NewInt(1), params.Fees[0], testKey(t))
		assert.Nil(t, out)
		assert.ErrorIs(t, err, txErrors.ErrContractViolation, data.Family())
	}
}

func TestSign_NeedsGasLimit(t *testing.T) {
	from, to := addresses(t, "cosmos")
	params := signParams(chain.Cosmos, intentFor(chain.Cosmos, from, to, 1), "cosmoshub-4")

	fee, err := txModel.NewFee(txModel.FeePriorityNormal, txModel.NativeAsset(chain.Cosmos), big.NewInt(3000))
	require.NoError(t, err)
	_, err = New(nil, nil).Sign(context.Background(), params, big.NewInt(1), fee, testKey(t))
	assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
}

func TestBroadcast(t *testing.T) {
	blob := []byte(`{"mode":"BROADCAST_MODE_SYNC","tx_bytes":"CgA="}`)
	tests := []struct {
		name    string
		status  int
		resp    string
		hash    string
		kind    txErrors.Kind
		message string
	}{
		{name: "accepted", status: http.StatusOK, resp: `{"tx_response":{"txhash":"ABCDEF","code":0}}`, hash: "ABCDEF"},
		{name: "non-zero code", status: http.StatusOK, resp: `{"tx_response":{"txhash":"ABCDEF","code":32,"raw_log":"account sequence mismatch, expected 8, got 7"}}`,
			kind: txErrors.KindRejected, message: "account sequence mismatch, expected 8, got 7"},
		{name: "gateway error", status: http.StatusBadRequest, resp: `{"code":3,"message":"invalid tx bytes"}`,
			kind: txErrors.KindRejected, message: "invalid tx bytes"},
		{name: "node down", status: http.StatusBadGateway, resp: `bad gateway`, kind: txErrors.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/cosmos/tx/v1beta1/txs", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, blob, body)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.resp)
			})
			c := setupNode(t, chain.Cosmos, mux)

			hash, err := c.Broadcast(context.Background(), txModel.Account{Chain: chain.Cosmos}, blob, txModel.TransactionTypeTransfer)
			if tt.kind == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.hash, hash)
				return
			}
			assert.Equal(t, tt.kind, txErrors.KindOf(err))
			if tt.message != "" {
				var e *txErrors.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.message, e.Message)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		resp   string
		state  txModel.TransactionState
		fee    *big.Int
	}{
		{name: "not found", status: http.StatusNotFound, resp: `{"code":5,"message":"tx not found: ABC"}`, state: txModel.TransactionStatePending},
		{name: "not found as bad request", status: http.StatusBadRequest, resp: `{"code":5,"message":"tx not found: ABC"}`, state: txModel.TransactionStatePending},
		{name: "confirmed", status: http.StatusOK, resp: `{"tx_response":{"height":"100","code":0,"tx":{"auth_info":{"fee":{"amount":[{"denom":"uatom","amount":"3000"}]}}}}}`,
			state: txModel.TransactionStateConfirmed, fee: big.NewInt(3000)},
		{name: "failed", status: http.StatusOK, resp: `{"tx_response":{"height":"100","code":11,"raw_log":"out of gas"}}`, state: txModel.TransactionStateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/cosmos/tx/v1beta1/txs/ABC", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.resp)
			})
			c := setupNode(t, chain.Cosmos, mux)
			req := txModel.TransactionStateRequest{Chain: chain.Cosmos, Hash: "ABC"}

			changes, err := c.GetStatus(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.state, changes.State)
			assert.Equal(t, tt.fee, changes.Fee)

			again, err := c.GetStatus(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, changes, again)
		})
	}
}

func TestGetNodeStatus(t *testing.T) {
	mux := lcdHandler(t, "unused", baseAccountJSON)
	mux.HandleFunc("/cosmos/base/tendermint/v1beta1/syncing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"syncing":false}`)
	})
	c := setupNode(t, chain.Cosmos, mux)

	status, err := c.GetNodeStatus(context.Background(), chain.Cosmos, "")
	require.NoError(t, err)
	assert.Equal(t, "cosmoshub-4", status.ChainID)
	assert.Equal(t, uint64(19_000_000), status.LatestBlock)
	assert.True(t, status.InSync)
}
