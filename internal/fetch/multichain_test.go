package fetch

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trove-labs/auction-view/internal/types"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type callArgs struct {
	Input hexutil.Bytes `json:"input"`
	Data  hexutil.Bytes `json:"data"`
}

// newRPCServer serves eth_call from backend over JSON-RPC
func newRPCServer(t *testing.T, backend *fakeBackend, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_call" || len(req.Params) == 0 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}

		var args callArgs
		if err := json.Unmarshal(req.Params[0], &args); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := args.Input
		if len(data) == 0 {
			data = args.Data
		}

		out := backend.results[backend.methodOf(data)]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  hexutil.Bytes(out),
		})
	}))
}

func TestMultiChainClient_ReadsOverJSONRPC(t *testing.T) {
	backend := newFakeBackend()
	backend.set(t, auctionHouseABI, "decimals", uint8(18))
	backend.set(t, auctionHouseABI, "getBids", []bidTuple{})

	var hits int32
	srv := newRPCServer(t, backend, &hits)
	defer srv.Close()

	client := NewMultiChainClient(map[types.ChainID]types.ChainConfig{
		types.ChainAnvil: {ChainID: types.ChainAnvil, RPCEndpoint: srv.URL, Enabled: true},
	}, MultiChainOptions{Timeout: 5 * time.Second, RetryMax: 0, FailureThreshold: 3, BreakerCooldown: time.Second})
	defer client.Close()

	ctx := context.Background()
	r, err := client.ReaderFor(ctx, types.ChainAnvil)
	require.NoError(t, err)

	dec, err := r.Decimals(ctx, testHouse)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), dec)

	bids, err := r.Bids(ctx, testHouse, big.NewInt(1))
	require.NoError(t, err)
	assert.Empty(t, bids)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	again, err := client.ReaderFor(ctx, types.ChainAnvil)
	require.NoError(t, err)
	assert.Same(t, r, again, "readers are dialed once per network")

	assert.Equal(t, []ChainHealth{
		{ChainID: types.ChainAnvil, Connected: true, Breaker: "closed"},
	}, client.Health())
}

func TestMultiChainClient_HealthReportsTrippedBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewMultiChainClient(map[types.ChainID]types.ChainConfig{
		types.ChainAnvil:       {ChainID: types.ChainAnvil, RPCEndpoint: srv.URL, Enabled: true},
		types.ChainBaseSepolia: {ChainID: types.ChainBaseSepolia, RPCEndpoint: "https://sepolia.base.org", Enabled: true},
	}, MultiChainOptions{Timeout: 5 * time.Second, FailureThreshold: 1, BreakerCooldown: time.Hour})
	defer client.Close()

	ctx := context.Background()
	r, err := client.ReaderFor(ctx, types.ChainAnvil)
	require.NoError(t, err)
	_, err = r.Decimals(ctx, testHouse)
	require.Error(t, err)

	health := client.Health()
	require.Len(t, health, 2)
	assert.Equal(t, types.ChainAnvil, health[0].ChainID, "ordered by chain id")
	assert.True(t, health[0].Connected)
	assert.Equal(t, "open", health[0].Breaker)
	assert.NotEmpty(t, health[0].LastError)

	assert.Equal(t, ChainHealth{ChainID: types.ChainBaseSepolia, Breaker: "closed"}, health[1], "never dialed")
}

func TestMultiChainClient_UnconfiguredNetworks(t *testing.T) {
	client := NewMultiChainClient(map[types.ChainID]types.ChainConfig{
		types.ChainBaseSepolia: {ChainID: types.ChainBaseSepolia, RPCEndpoint: "", Enabled: false},
	}, MultiChainOptions{})
	defer client.Close()

	_, err := client.ReaderFor(context.Background(), types.ChainBaseSepolia)
	assert.Error(t, err, "disabled network")

	_, err = client.ReaderFor(context.Background(), 1)
	assert.Error(t, err, "unknown network")

	assert.Empty(t, client.Chains())
}
