package tron

import (
	"context"
	"crypto/sha256"
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
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

const testBlockID = "00000000035b2a4c6b6f9d0c4e1f2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b"

func testKey(t *testing.T) []byte {
	key, err := hex.DecodeString(testKeyHex)
	require.NoError(t, err)
	return key
}

func ownerAddress(t *testing.T) string {
	key, err := crypto.ToECDSA(testKey(t))
	require.NoError(t, err)
	return base58.CheckEncode(crypto.PubkeyToAddress(key.PublicKey).Bytes(), addressPrefix)
}

func addressOf(seed string) string {
	return base58.CheckEncode(crypto.Keccak256([]byte(seed))[12:], addressPrefix)
}

type node struct {
	accounts   map[string]string
	energyUsed int64
	freeNet    int64
	blockTime  int64
}

func (n *node) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/getnowblock", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"blockID":"`+testBlockID+`","block_header":{"raw_data":{"number":56306252,"txTrieRoot":"aa","witness_address":"41bb","parentHash":"cc","version":30,"timestamp":`+jsonInt(n.blockTime)+`}}}`)
	})
	mux.HandleFunc("/wallet/getaccount", func(w http.ResponseWriter, r *http.Request) {
		var req addressRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		account, ok := n.accounts[req.Address]
		if !ok {
			account = `{}`
		}
		_, _ = io.WriteString(w, account)
	})
	mux.HandleFunc("/wallet/getaccountresource", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"freeNetLimit":600,"freeNetUsed":`+jsonInt(600-n.freeNet)+`}`)
	})
	mux.HandleFunc("/wallet/getchainparameters", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"chainParameter":[{"key":"getEnergyFee","value":420},{"key":"getCreateAccountFee","value":100000},{"key":"getCreateNewAccountFeeInSystemContract","value":1000000}]}`)
	})
	mux.HandleFunc("/wallet/triggerconstantcontract", func(w http.ResponseWriter, r *http.Request) {
		var req constantContractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Visible)
		assert.Len(t, req.Parameter, 128)
		_, _ = io.WriteString(w, `{"energy_used":`+jsonInt(n.energyUsed)+`,"result":{"result":true}}`)
	})
	return mux
}

func jsonInt(v int64) string {
	return big.NewInt(v).String()
}

func setupNode(t *testing.T, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cm := chainManager.NewChainManager(nil)
	require.NoError(t, cm.AddChain(&chainManager.ChainConfig{Chain: chain.Tron, RPCUrl: srv.URL}))
	return New(cm, zap.NewNop())
}

func transferIntent(t *testing.T, to string, amount int64) txModel.TransferIntent {
	return txModel.TransferIntent{
		Type:        txModel.TransactionTypeTransfer,
		Asset:       txModel.Asset{Id: txModel.NativeAsset(chain.Tron), Symbol: "TRX", Decimals: 6},
		From:        txModel.Account{Chain: chain.Tron, Address: ownerAddress(t)},
		Destination: txModel.Destination{Address: to},
		Amount:      big.NewInt(amount),
	}
}

func tokenIntent(t *testing.T, to string, amount int64) txModel.TransferIntent {
	intent := transferIntent(t, to, amount)
	intent.Asset = txModel.Asset{Id: txModel.AssetId{Chain: chain.Tron, TokenID: addressOf("usdt")}, Symbol: "USDT", Decimals: 6}
	return intent
}

func stakeIntent(t *testing.T, kind txModel.TransactionType, stake txModel.StakeTarget, amount int64) txModel.TransferIntent {
	return txModel.TransferIntent{
		Type:   kind,
		Asset:  txModel.Asset{Id: txModel.NativeAsset(chain.Tron), Symbol: "TRX", Decimals: 6},
		From:   txModel.Account{Chain: chain.Tron, Address: ownerAddress(t)},
		Amount: big.NewInt(amount),
		Stake:  &stake,
	}
}

func TestSupported(t *testing.T) {
	c := New(nil, nil)
	assert.True(t, c.Supported(chain.Tron))
	assert.False(t, c.Supported(chain.Ethereum))
}

func TestAddressRoundTrip(t *testing.T) {
	addr := ownerAddress(t)
	raw, err := decodeAddress(txErrors.OpSign, addr)
	require.NoError(t, err)
	require.Len(t, raw, 21)
	assert.Equal(t, byte(addressPrefix), raw[0])
	assert.Equal(t, addr, encodeAddress(raw))

	_, err = decodeAddress(txErrors.OpSign, base58.CheckEncode(make([]byte, 20), 0x00))
	assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
}

func TestPreload_Fees(t *testing.T) {
	existing := addressOf("existing")
	fresh := addressOf("fresh")
	tests := []struct {
		name    string
		intent  func(t *testing.T) txModel.TransferIntent
		freeNet int64
		energy  int64
		want    int64
	}{
		{
			name:    "native with free bandwidth",
			intent:  func(t *testing.T) txModel.TransferIntent { return transferIntent(t, existing, 1_000_000) },
			freeNet: 600,
			want:    0,
		},
		{
			name:    "native burning bandwidth",
			intent:  func(t *testing.T) txModel.TransferIntent { return transferIntent(t, existing, 1_000_000) },
			freeNet: 100,
			want:    300_000,
		},
		{
			name:    "native to a new account",
			intent:  func(t *testing.T) txModel.TransferIntent { return transferIntent(t, fresh, 1_000_000) },
			freeNet: 600,
			want:    1_100_000,
		},
		{
			name:    "token",
			intent:  func(t *testing.T) txModel.TransferIntent { return tokenIntent(t, existing, 5_000_000) },
			freeNet: 600,
			energy:  13_000,
			want:    6_552_000,
		},
		{
			name:    "token to a new account",
			intent:  func(t *testing.T) txModel.TransferIntent { return tokenIntent(t, fresh, 5_000_000) },
			freeNet: 600,
			energy:  13_000,
			want:    7_552_000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &node{
				accounts:   map[string]string{existing: `{"address":"` + existing + `","balance":1}`},
				freeNet:    tt.freeNet,
				energyUsed: tt.energy,
				blockTime:  1_700_000_000_000,
			}
			c := setupNode(t, n.handler(t))

			params, err := c.Preload(context.Background(), tt.intent(t))
			require.NoError(t, err)
			require.Len(t, params.Fees, 3)
			for _, fee := range params.Fees {
				assert.Equal(t, big.NewInt(tt.want), fee.Amount)
				assert.Nil(t, fee.Gas)
			}

			data := params.ChainData.(txModel.TronChainData)
			assert.Equal(t, int64(56306252), data.BlockNumber)
			assert.Equal(t, testBlockID, data.BlockID)
			assert.Equal(t, int64(1_700_000_000_000), data.Timestamp)
			assert.Nil(t, data.Votes)
		})
	}
}

func TestPreload_Votes(t *testing.T) {
	w1, w2 := addressOf("witness-1"), addressOf("witness-2")
	votes := `"votes":[{"vote_address":"` + w1 + `","vote_count":10}]`

	tests := []struct {
		name  string
		kind  txModel.TransactionType
		stake txModel.StakeTarget
		want  map[string]int64
		fee   int64
	}{
		{
			name:  "delegate adds to the validator",
			kind:  txModel.TransactionTypeStakeDelegate,
			stake: txModel.StakeTarget{ValidatorID: w2},
			want:  map[string]int64{w1: 10, w2: 5},
			fee:   580_000,
		},
		{
			name:  "undelegate removes votes",
			kind:  txModel.TransactionTypeStakeUndelegate,
			stake: txModel.StakeTarget{ValidatorID: w1},
			want:  map[string]int64{w1: 5},
			fee:   1_160_000,
		},
		{
			name:  "undelegate without votes",
			kind:  txModel.TransactionTypeStakeUndelegate,
			stake: txModel.StakeTarget{ValidatorID: w2},
			want:  nil,
			fee:   580_000,
		},
		{
			name:  "redelegate moves votes",
			kind:  txModel.TransactionTypeStakeRedelegate,
			stake: txModel.StakeTarget{SrcValidatorID: w1, ValidatorID: w2},
			want:  map[string]int64{w1: 5, w2: 5},
			fee:   300_000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &node{
				accounts: map[string]string{
					ownerAddress(t): `{"address":"` + ownerAddress(t) + `",` + votes + `}`,
					w2:              `{"address":"` + w2 + `","account_name":"Binance Staking"}`,
				},
				freeNet:   100,
				blockTime: 1_700_000_000_000,
			}
			c := setupNode(t, n.handler(t))

			params, err := c.Preload(context.Background(), stakeIntent(t, tt.kind, tt.stake, 5_000_000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, params.ChainData.(txModel.TronChainData).Votes)
			assert.Equal(t, big.NewInt(tt.fee), params.Fee(txModel.FeePriorityNormal).Amount)
			if tt.kind != txModel.TransactionTypeStakeUndelegate {
				assert.Equal(t, "Binance Staking", params.ValidatorName)
			}
		})
	}
}

func TestPreload_WitnessNameDegrades(t *testing.T) {
	w := addressOf("witness")
	mux := http.NewServeMux()
	n := &node{accounts: map[string]string{}, freeNet: 600, blockTime: 1_700_000_000_000}
	base := n.handler(t)
	mux.HandleFunc("/wallet/getaccount", func(w2 http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), w) {
			w2.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w2, `{}`)
	})
	mux.Handle("/", base)
	c := setupNode(t, mux)

	params, err := c.Preload(context.Background(), stakeIntent(t, txModel.TransactionTypeStakeDelegate, txModel.StakeTarget{ValidatorID: w}, 1_000_000))
	require.NoError(t, err)
	assert.Empty(t, params.ValidatorName)
}

func TestPreload_Rejections(t *testing.T) {
	t.Run("swap", func(t *testing.T) {
		intent := transferIntent(t, addressOf("x"), 1)
		intent.Type = txModel.TransactionTypeSwap
		intent.Swap = &txModel.SwapData{To: addressOf("router")}
		_, err := New(chainManager.NewChainManager(nil), nil).Preload(context.Background(), intent)
		assert.ErrorIs(t, err, txErrors.ErrUnsupported)
	})
	t.Run("invalid destination", func(t *testing.T) {
		c := setupNode(t, (&node{}).handler(t))
		_, err := c.Preload(context.Background(), transferIntent(t, "0xdeadbeef", 1))
		assert.ErrorIs(t, err, txErrors.ErrInvalidInput)
	})
	t.Run("no node", func(t *testing.T) {
		_, err := New(chainManager.NewChainManager(nil), nil).Preload(context.Background(), transferIntent(t, addressOf("x"), 1))
		assert.ErrorIs(t, err, txErrors.ErrUnsupported)
	})
}

type decodedTx struct {
	raw       []byte
	signature []byte
	tx        *core.TransactionRaw
}

func decode(t *testing.T, blob []byte) decodedTx {
	b, err := hex.DecodeString(string(blob))
	require.NoError(t, err)
	var tx core.Transaction
	require.NoError(t, proto.Unmarshal(b, &tx))
	require.Len(t, tx.Signature, 1)
	raw, err := marshal.Marshal(tx.RawData)
	require.NoError(t, err)
	return decodedTx{raw: raw, signature: tx.Signature[0], tx: tx.RawData}
}

func contractType(t *testing.T, d decodedTx) core.Transaction_Contract_ContractType {
	require.Len(t, d.tx.Contract, 1)
	return d.tx.Contract[0].Type
}

func signParams(intent txModel.TransferIntent, votes map[string]int64) *txModel.SignerParams {
	return &txModel.SignerParams{
		Input: intent,
		ChainData: txModel.TronChainData{
			BlockNumber: 56306252,
			BlockID:     testBlockID,
			Timestamp:   1_700_000_000_000,
			Votes:       votes,
		},
	}
}

func TestSign_NativeTransfer(t *testing.T) {
	c := New(nil, nil)
	intent := transferIntent(t, addressOf("existing"), 2_500_000)
	params := signParams(intent, nil)
	fee := txModel.Fee{AssetId: txModel.NativeAsset(chain.Tron), Amount: big.NewInt(0)}

	out, err := c.Sign(context.Background(), params, intent.Amount, fee, testKey(t))
	require.NoError(t, err)
	require.Len(t, out, 1)

	again, err := c.Sign(context.Background(), params, intent.Amount, fee, testKey(t))
	require.NoError(t, err)
	assert.Equal(t, out, again)

	d := decode(t, out[0])
	assert.Equal(t, core.Transaction_Contract_TransferContract, contractType(t, d))
	assert.Equal(t, []byte{0x2a, 0x4c}, d.tx.RefBlockBytes)
	blockID, _ := hex.DecodeString(testBlockID)
	assert.Equal(t, blockID[8:16], d.tx.RefBlockHash)
	assert.Equal(t, int64(1_700_000_000_000+expiration), d.tx.Expiration)
	assert.Zero(t, d.tx.FeeLimit, "fee limit is only set on smart contract calls")

	var transfer core.TransferContract
	require.NoError(t, d.tx.Contract[0].Parameter.UnmarshalTo(&transfer))
	assert.Equal(t, int64(2_500_000), transfer.Amount)
	assert.Equal(t, "type.googleapis.com/protocol.TransferContract", d.tx.Contract[0].Parameter.TypeUrl)

	txID := sha256.Sum256(d.raw)
	require.Len(t, d.signature, 65)
	pub, err := crypto.SigToPub(txID[:], d.signature)
	require.NoError(t, err)
	key, _ := crypto.ToECDSA(testKey(t))
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(*pub))

	id, err := transactionID(chain.Tron, out[0])
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(txID[:]), id)
}

func TestSign_TokenTransferSetsFeeLimit(t *testing.T) {
	c := New(nil, nil)
	intent := tokenIntent(t, addressOf("existing"), 5_000_000)
	fee := txModel.Fee{AssetId: txModel.NativeAsset(chain.Tron), Amount: big.NewInt(6_552_000)}

	out, err := c.Sign(context.Background(), signParams(intent, nil), intent.Amount, fee, testKey(t))
	require.NoError(t, err)
	require.Len(t, out, 1)

	d := decode(t, out[0])
	assert.Equal(t, core.Transaction_Contract_TriggerSmartContract, contractType(t, d))
	assert.Equal(t, int64(6_552_000), d.tx.FeeLimit)
}

func TestSign_Delegate(t *testing.T) {
	c := New(nil, nil)
	w1, w2 := addressOf("witness-1"), addressOf("witness-2")
	intent := stakeIntent(t, txModel.TransactionTypeStakeDelegate, txModel.StakeTarget{ValidatorID: w2}, 5_000_000)
	fee := txModel.Fee{AssetId: txModel.NativeAsset(chain.Tron), Amount: big.NewInt(580_000)}

	out, err := c.Sign(context.Background(), signParams(intent, map[string]int64{w2: 5, w1: 10}), intent.Amount, fee, testKey(t))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, core.Transaction_Contract_FreezeBalanceV2Contract, contractType(t, decode(t, out[0])))
	vote := decode(t, out[1])
	assert.Equal(t, core.Transaction_Contract_VoteWitnessContract, contractType(t, vote))

	var votes core.VoteWitnessContract
	require.NoError(t, vote.tx.Contract[0].Parameter.UnmarshalTo(&votes))
	require.Len(t, votes.Votes, 2)
	for _, v := range votes.Votes {
		assert.Contains(t, []string{w1, w2}, encodeAddress(v.VoteAddress))
	}
}

func TestSign_UndelegateWithoutVotes(t *testing.T) {
	c := New(nil, nil)
	intent := stakeIntent(t, txModel.TransactionTypeStakeUndelegate, txModel.StakeTarget{ValidatorID: addressOf("w")}, 5_000_000)
	out, err := c.Sign(context.Background(), signParams(intent, nil), intent.Amount, txModel.Fee{Amount: big.NewInt(0)}, testKey(t))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core.Transaction_Contract_UnfreezeBalanceV2Contract, contractType(t, decode(t, out[0])))
}

func TestSign_Rejections(t *testing.T) {
	c := New(nil, nil)
	intent := transferIntent(t, addressOf("existing"), 1)

	for _, variant := range txModel.AllChainDataVariants() {
		if _, ok := variant.(txModel.TronChainData); ok {
			continue
		}
		_, err := c.Sign(context.Background(), &txModel.SignerParams{Input: intent, ChainData: variant}, intent.Amount, txModel.Fee{}, testKey(t))
		assert.ErrorIs(t, err, txErrors.ErrContractViolation, variant.Family())
	}

	other := crypto.Keccak256([]byte("other key"))
	_, err := c.Sign(context.Background(), signParams(intent, nil), intent.Amount, txModel.Fee{}, other)
	assert.ErrorIs(t, err, txErrors.ErrSigning)

	_, err = c.Sign(context.Background(), signParams(intent, nil), intent.Amount, txModel.Fee{}, []byte{1, 2, 3})
	assert.ErrorIs(t, err, txErrors.ErrSigning)
}

func TestBroadcast(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantID   string
		wantErr  error
		wantMsg  string
	}{
		{
			name:     "accepted",
			response: `{"result":true,"txid":"abc123"}`,
			wantID:   "abc123",
		},
		{
			name:     "rejected",
			response: `{"result":false,"code":"SIGERROR","message":"` + hex.EncodeToString([]byte("validate signature error")) + `"}`,
			wantErr:  txErrors.ErrRejected,
			wantMsg:  "SIGERROR: validate signature error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/wallet/broadcasthex", func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "0a02", body["transaction"])
				_, _ = io.WriteString(w, tt.response)
			})
			c := setupNode(t, mux)

			id, err := c.Broadcast(context.Background(), txModel.Account{Chain: chain.Tron}, []byte("0a02"), txModel.TransactionTypeTransfer)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     txModel.TransactionChanges
	}{
		{
			name:     "unknown",
			response: `{}`,
			want:     txModel.PendingChanges(),
		},
		{
			name:     "transfer confirmed",
			response: `{"id":"abc","fee":0,"blockNumber":56306260,"receipt":{"net_usage":268}}`,
			want:     txModel.TransactionChanges{State: txModel.TransactionStateConfirmed, Fee: big.NewInt(0)},
		},
		{
			name:     "contract succeeded",
			response: `{"id":"abc","fee":6552000,"blockNumber":56306260,"receipt":{"result":"SUCCESS"}}`,
			want:     txModel.TransactionChanges{State: txModel.TransactionStateConfirmed, Fee: big.NewInt(6_552_000)},
		},
		{
			name:     "contract reverted",
			response: `{"id":"abc","fee":300000,"blockNumber":56306260,"result":"FAILED","receipt":{"result":"REVERT"}}`,
			want:     txModel.TransactionChanges{State: txModel.TransactionStateReverted, Fee: big.NewInt(300_000)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/wallet/gettransactioninfobyid", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.response)
			})
			c := setupNode(t, mux)
			req := txModel.TransactionStateRequest{Chain: chain.Tron, Hash: "abc"}

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
	tests := []struct {
		name      string
		blockTime time.Time
		inSync    bool
	}{
		{name: "fresh head", blockTime: time.Now(), inSync: true},
		{name: "stale head", blockTime: time.Now().Add(-time.Hour), inSync: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &node{blockTime: tt.blockTime.UnixMilli()}
			c := setupNode(t, n.handler(t))

			status, err := c.GetNodeStatus(context.Background(), chain.Tron, "")
			require.NoError(t, err)
			assert.Equal(t, chain.Tron, status.Chain)
			assert.Equal(t, uint64(56306252), status.LatestBlock)
			assert.Equal(t, tt.inSync, status.InSync)
		})
	}
}
