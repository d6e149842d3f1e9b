package chainManager

import (
	"testing"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainManager_AddAndGet(t *testing.T) {
	cm := NewChainManager(nil)

	require.NoError(t, cm.AddChain(&ChainConfig{Chain: chain.Ethereum, RPCUrl: "http://localhost:8545"}))
	require.NoError(t, cm.AddChain(&ChainConfig{Chain: chain.Bitcoin, RPCUrl: "http://localhost:9130"}))

	eth, err := cm.GetChainForId(chain.Ethereum)
	require.NoError(t, err)
	assert.NotNil(t, eth.RPCClient)
	assert.NotNil(t, eth.Client)

	btc, err := cm.GetChainForId(chain.Bitcoin)
	require.NoError(t, err)
	assert.Nil(t, btc.RPCClient)
	assert.Equal(t, "http://localhost:9130", btc.Config().RPCUrl)

	assert.Equal(t, []chain.Chain{chain.Ethereum, chain.Bitcoin}, cm.Configured())
}

func TestChainManager_Errors(t *testing.T) {
	cm := NewChainManager(nil)

	_, err := cm.GetChainForId(chain.Ton)
	assert.ErrorIs(t, err, ErrChainNotFound)

	require.NoError(t, cm.AddChain(&ChainConfig{Chain: chain.Ton, RPCUrl: "https://toncenter.com"}))
	assert.Error(t, cm.AddChain(&ChainConfig{Chain: chain.Ton, RPCUrl: "https://toncenter.com"}))

	assert.ErrorIs(t, cm.AddChain(&ChainConfig{Chain: "moonchain", RPCUrl: "http://x"}), chain.ErrUnknownChain)
	assert.Error(t, cm.AddChain(&ChainConfig{Chain: chain.Sui}))

	url, err := cm.NodeURL(chain.Ton)
	require.NoError(t, err)
	assert.Equal(t, "https://toncenter.com", url)
}
