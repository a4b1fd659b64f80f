package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/trove-labs/auction-view/internal/circuitbreaker"
	"github.com/trove-labs/auction-view/internal/metrics"
	"github.com/trove-labs/auction-view/internal/types"
)

// ErrNoCode is returned when a call comes back empty, which means there is no
// contract at the address on this network
var ErrNoCode = errors.New("empty call result: no contract code at address")

// CallError is a failed read-only call: transport error, revert, open breaker
// or undecodable result
type CallError struct {
	ChainID types.ChainID
	Address common.Address
	Method  string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s on %s (chain %d): %v", e.Method, e.Address.Hex(), uint64(e.ChainID), e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// CallerOptions tunes the per-network transport policy
type CallerOptions struct {
	Timeout   time.Duration
	RateLimit rate.Limit
	RateBurst int
	Breaker   *circuitbreaker.CircuitBreaker
	Metrics   *metrics.Metrics
}

// Caller performs ABI-encoded read-only calls against one network
type Caller struct {
	chainID types.ChainID
	backend ethereum.ContractCaller
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewCaller wraps backend with the policy in opts
func NewCaller(chainID types.ChainID, backend ethereum.ContractCaller, opts CallerOptions) *Caller {
	limit := opts.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Caller{
		chainID: chainID,
		backend: backend,
		limiter: rate.NewLimiter(limit, burst),
		breaker: opts.Breaker,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
	}
}

// Call packs method with args, executes eth_call at the latest block and
// returns the decoded outputs
func (c *Caller) Call(ctx context.Context, addr common.Address, contract *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	fail := func(err error) ([]interface{}, error) {
		c.metrics.RPCCall(c.chainID.String(), method, "error")
		return nil, &CallError{ChainID: c.chainID, Address: addr, Method: method, Err: err}
	}

	data, err := contract.Pack(method, args...)
	if err != nil {
		return fail(fmt.Errorf("error packing arguments: %w", err))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return fail(err)
		}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.backend.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		c.recordOutcome(err)
		return fail(err)
	}
	c.recordOutcome(nil)
	if len(out) == 0 {
		return fail(ErrNoCode)
	}

	values, err := contract.Unpack(method, out)
	if err != nil {
		return fail(fmt.Errorf("error decoding result: %w", err))
	}

	c.metrics.RPCCall(c.chainID.String(), method, "ok")
	logrus.WithFields(logrus.Fields{
		"chain_id": uint64(c.chainID),
		"address":  addr.Hex(),
		"method":   method,
	}).Debug("Contract call succeeded")
	return values, nil
}

// recordOutcome feeds the breaker. A revert means the endpoint answered, so it
// counts as a healthy transport; a cancelled context says nothing either way and
// only hands back a half-open probe slot.
func (c *Caller) recordOutcome(err error) {
	if c.breaker == nil {
		return
	}
	var dataErr rpc.DataError
	switch {
	case err == nil, errors.As(err, &dataErr):
		c.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
		c.breaker.ReleaseTrial()
	default:
		c.breaker.RecordFailure(err)
	}
}
