package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/trove-labs/auction-view/internal/circuitbreaker"
	"github.com/trove-labs/auction-view/internal/metrics"
	"github.com/trove-labs/auction-view/internal/types"
)

// MultiChainOptions is the transport policy applied to every network
type MultiChainOptions struct {
	Timeout          time.Duration
	RetryMax         int
	RateLimitRPS     float64
	RateLimitBurst   int
	FailureThreshold int
	SuccessThreshold int
	BreakerCooldown  time.Duration
	Metrics          *metrics.Metrics
}

// ChainHealth is the transport state of one configured network
type ChainHealth struct {
	ChainID   types.ChainID `json:"chain_id"`
	Connected bool          `json:"connected"`
	Breaker   string        `json:"breaker"`
	LastError string        `json:"last_error,omitempty"`
}

// MultiChainClient hands out one auction-house reader per configured network,
// dialing each endpoint on first use
type MultiChainClient struct {
	chains  map[types.ChainID]types.ChainConfig
	opts    MultiChainOptions
	mutex   sync.Mutex
	clients  map[types.ChainID]*ethclient.Client
	readers  map[types.ChainID]*AuctionHouseReader
	breakers map[types.ChainID]*circuitbreaker.CircuitBreaker
}

// NewMultiChainClient creates a client that can read from multiple chains
func NewMultiChainClient(chains map[types.ChainID]types.ChainConfig, opts MultiChainOptions) *MultiChainClient {
	return &MultiChainClient{
		chains:  chains,
		opts:    opts,
		clients:  make(map[types.ChainID]*ethclient.Client),
		readers:  make(map[types.ChainID]*AuctionHouseReader),
		breakers: make(map[types.ChainID]*circuitbreaker.CircuitBreaker),
	}
}

// ReaderFor returns the reader for chainID, dialing its endpoint if needed
func (c *MultiChainClient) ReaderFor(ctx context.Context, chainID types.ChainID) (*AuctionHouseReader, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if r, ok := c.readers[chainID]; ok {
		return r, nil
	}

	cfg, ok := c.chains[chainID]
	if !ok || !cfg.Enabled || cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("chain %d not configured or disabled", uint64(chainID))
	}

	httpClient := StandardClient(newRetryClient(c.opts.RetryMax, c.opts.Timeout))
	client, err := dial(ctx, cfg.RPCEndpoint, httpClient)
	if err != nil {
		return nil, err
	}

	label := chainID.String()
	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		FailureThreshold: c.opts.FailureThreshold,
	}).WithResetDelay(c.opts.BreakerCooldown).
		WithSuccessThreshold(max(c.opts.SuccessThreshold, 1)).
		WithStateCallback(func(s circuitbreaker.State) {
			c.opts.Metrics.BreakerState(label, int(s))
		}).
		WithTripCallback(func(reason string) {
			logrus.WithField("chain_id", uint64(chainID)).Warnf("RPC endpoint unhealthy: %s", reason)
		})

	caller := NewCaller(chainID, client, CallerOptions{
		Timeout:   c.opts.Timeout,
		RateLimit: rate.Limit(c.opts.RateLimitRPS),
		RateBurst: c.opts.RateLimitBurst,
		Breaker:   breaker,
		Metrics:   c.opts.Metrics,
	})
	reader := NewAuctionHouseReader(caller)

	c.clients[chainID] = client
	c.readers[chainID] = reader
	c.breakers[chainID] = breaker
	logrus.WithFields(logrus.Fields{
		"chain_id": uint64(chainID),
		"endpoint": cfg.RPCEndpoint,
	}).Info("Connected RPC endpoint")
	return reader, nil
}

// Chains returns the enabled networks in ascending chain id order
func (c *MultiChainClient) Chains() []types.ChainID {
	ids := make([]types.ChainID, 0, len(c.chains))
	for id, cfg := range c.chains {
		if cfg.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Health reports the transport state of every enabled network. A network that
// was never read from is not connected and its breaker is closed.
func (c *MultiChainClient) Health() []ChainHealth {
	ids := c.Chains()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]ChainHealth, 0, len(ids))
	for _, id := range ids {
		h := ChainHealth{ChainID: id, Breaker: circuitbreaker.StateClosed.String()}
		if breaker, ok := c.breakers[id]; ok {
			h.Connected = true
			h.Breaker = breaker.GetState().String()
			if err := breaker.LastError(); err != nil {
				h.LastError = err.Error()
			}
		}
		out = append(out, h)
	}
	return out
}

// Close releases every dialed endpoint
func (c *MultiChainClient) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for id, client := range c.clients {
		client.Close()
		delete(c.clients, id)
		delete(c.readers, id)
		delete(c.breakers, id)
	}
}
