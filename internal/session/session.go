// Package session drives the data flow for one user session: a network change
// is resolved to an auction-house address, the aggregator is retargeted and a
// refresh is triggered; poll ticks refresh the current target.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trove-labs/auction-view/internal/aggregate"
	"github.com/trove-labs/auction-view/internal/model"
	"github.com/trove-labs/auction-view/internal/notify"
	"github.com/trove-labs/auction-view/internal/observe"
	"github.com/trove-labs/auction-view/internal/resolver"
	"github.com/trove-labs/auction-view/internal/types"
)

// ErrNoNetwork is returned before the first SwitchNetwork
var ErrNoNetwork = errors.New("no active network")

// ErrInvalidNetwork rejects chain id 0, which no wallet reports for a real network
var ErrInvalidNetwork = errors.New("chain id 0 is not a network")

// Resolver is the resolution policy the session applies
type Resolver interface {
	Resolve(ctx context.Context, role types.ContractRole, chainID types.ChainID) (resolver.Result, error)
}

// Session wires the resolver, notification channel and aggregator together
type Session struct {
	resolver Resolver
	notes    *notify.Channel
	agg      *aggregate.Aggregator

	// switchMu serializes SwitchNetwork so resolution and retarget of one switch
	// are never interleaved with another
	switchMu   sync.Mutex
	network    *observe.Value[types.ChainID]
	resolution *observe.Value[resolver.Result]

	kick chan struct{}
}

// New creates a session. Nothing is read until SwitchNetwork is called.
func New(res Resolver, notes *notify.Channel, agg *aggregate.Aggregator) *Session {
	return &Session{
		resolver:   res,
		notes:      notes,
		agg:        agg,
		network:    observe.New(types.ChainID(0)),
		resolution: observe.New(resolver.Result{}),
		kick:       make(chan struct{}, 1),
	}
}

// SwitchNetwork makes chainID the active network. The auction house is
// resolved for it, the result is published and the aggregator is pointed at the
// resolved address; a running Run loop refreshes immediately.
func (s *Session) SwitchNetwork(ctx context.Context, chainID types.ChainID) (resolver.Result, error) {
	if chainID == 0 {
		return resolver.Result{}, ErrInvalidNetwork
	}

	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	res, err := s.resolver.Resolve(ctx, types.RoleAuction, chainID)
	if err != nil {
		return resolver.Result{}, err
	}

	s.network.Set(chainID)
	s.resolution.Set(res)
	changed := s.agg.SetTarget(aggregate.Target{
		ChainID:       chainID,
		SourceChainID: res.SourceChainID,
		House:         res.Address,
		Informational: !res.Matched,
	})
	if changed {
		s.trigger()
	}

	logrus.WithFields(logrus.Fields{
		"chain_id": uint64(chainID),
		"address":  res.Address.Hex(),
		"matched":  res.Matched,
	}).Info("Active network switched")
	return res, nil
}

// Resolve resolves role on the active network. The auction house is already
// resolved by SwitchNetwork; this serves the other roles.
func (s *Session) Resolve(ctx context.Context, role types.ContractRole) (resolver.Result, error) {
	chainID, ok := s.Network()
	if !ok {
		return resolver.Result{}, ErrNoNetwork
	}
	return s.resolver.Resolve(ctx, role, chainID)
}

// Tick refreshes the current target once
func (s *Session) Tick(ctx context.Context) (model.Snapshot, error) {
	return s.agg.Refresh(ctx)
}

// Run refreshes on every tick of interval and whenever the network changes,
// until ctx is done
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}
		s.refresh(ctx)
	}
}

func (s *Session) refresh(ctx context.Context) {
	_, err := s.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, aggregate.ErrStale), errors.Is(err, aggregate.ErrNoTarget):
		logrus.Debugf("Refresh skipped: %v", err)
	case errors.Is(err, context.Canceled):
	default:
		logrus.Warnf("Refresh failed: %v", err)
	}
}

func (s *Session) trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Network returns the active network and whether one is set
func (s *Session) Network() (types.ChainID, bool) {
	id := s.network.Get()
	return id, id != 0
}

// Resolution returns the last auction-house resolution
func (s *Session) Resolution() resolver.Result {
	return s.resolution.Get()
}

// SubscribeResolution streams auction-house resolutions, starting with the
// current one
func (s *Session) SubscribeResolution() (<-chan resolver.Result, func()) {
	return s.resolution.Subscribe()
}

// Notifications returns the session's notification channel
func (s *Session) Notifications() *notify.Channel {
	return s.notes
}

// Auctions returns the last published aggregation snapshot
func (s *Session) Auctions() model.Snapshot {
	return s.agg.Current()
}

// SubscribeAuctions streams published aggregation snapshots
func (s *Session) SubscribeAuctions() (<-chan model.Snapshot, func()) {
	return s.agg.Subscribe()
}
