// Package aggregate turns the dependent auction-house reads into one published
// snapshot per cycle.
//
// A cycle runs three levels of reads, each awaited in full before the next one
// starts:
//
//	level 0: listAuctions, linkedCollection
//	level 1: collectionBaseURI          (needs linkedCollection)
//	level 2: bidHistories, housePrecision (need listAuctions)
//
// A dependency that failed is never replaced by a placeholder: the reads that
// need it are not issued and the auctions that need them are reported
// unavailable. Each cycle is tagged with the generation it started in; a cycle
// that finishes after a retarget is discarded, so a published snapshot never
// mixes two networks.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trove-labs/auction-view/internal/format"
	"github.com/trove-labs/auction-view/internal/metrics"
	"github.com/trove-labs/auction-view/internal/model"
	"github.com/trove-labs/auction-view/internal/observe"
	"github.com/trove-labs/auction-view/internal/otel"
	"github.com/trove-labs/auction-view/internal/types"
	"github.com/trove-labs/auction-view/internal/validation"
)

// ErrStale marks a cycle whose target changed before it completed. It is never
// shown to users.
var ErrStale = errors.New("aggregation result is stale")

// ErrNoTarget is returned by Refresh before the first SetTarget
var ErrNoTarget = errors.New("no auction house targeted")

// AuctionReader is the read-only contract surface the pipeline consumes
type AuctionReader interface {
	OngoingAuctions(ctx context.Context, house common.Address) ([]model.Auction, error)
	Collection(ctx context.Context, house common.Address) (common.Address, error)
	BaseURI(ctx context.Context, collection common.Address) (string, error)
	Bids(ctx context.Context, house common.Address, auctionID *big.Int) ([]model.Bid, error)
	Decimals(ctx context.Context, house common.Address) (uint8, error)
}

// ReaderSource returns the reader for the network a house is deployed on
type ReaderSource func(ctx context.Context, chainID types.ChainID) (AuctionReader, error)

// Target is what the aggregator reads
type Target struct {
	// ChainID is the wallet's active network
	ChainID types.ChainID

	// SourceChainID is the network House is deployed on. It differs from ChainID
	// only for an informational fallback.
	SourceChainID types.ChainID

	House         common.Address
	Informational bool
}

// Options configures an Aggregator
type Options struct {
	Validation validation.ValidationOptions
	Formatter  *format.Formatter
	Metrics    *metrics.Metrics

	// Now is the clock used for remaining time
	Now func() time.Time

	// MaxConcurrentReads bounds sibling reads within a level; 0 means unbounded
	MaxConcurrentReads int
}

// Aggregator owns the published snapshot. Consumers get copies through
// Current and Subscribe.
type Aggregator struct {
	source ReaderSource
	opts   Options

	mu         sync.Mutex
	target     Target
	hasTarget  bool
	generation uint64
	nextCycle  uint64
	published  uint64
	inflight   map[uint64]context.CancelFunc

	out *observe.Value[model.Snapshot]
}

// New creates an aggregator reading through source
func New(source ReaderSource, opts Options) *Aggregator {
	if opts.Formatter == nil {
		opts.Formatter = format.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Validation == (validation.ValidationOptions{}) {
		opts.Validation = validation.DefaultValidationOptions()
	}
	return &Aggregator{
		source:   source,
		opts:     opts,
		inflight: make(map[uint64]context.CancelFunc),
		out:      observe.New(model.Snapshot{State: model.StatePending}),
	}
}

// Current returns the last published snapshot
func (a *Aggregator) Current() model.Snapshot {
	return a.out.Get()
}

// Subscribe streams published snapshots, starting with the current one
func (a *Aggregator) Subscribe() (<-chan model.Snapshot, func()) {
	return a.out.Subscribe()
}

// Target returns the current target and whether one is set
func (a *Aggregator) Target() (Target, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target, a.hasTarget
}

// SetTarget switches the aggregator to t. When t differs from the current
// target the generation advances, in-flight cycles are cancelled and a pending
// snapshot for t replaces whatever was shown. It reports whether t was new.
func (a *Aggregator) SetTarget(t Target) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasTarget && a.target == t {
		return false
	}
	for id, cancel := range a.inflight {
		cancel()
		delete(a.inflight, id)
	}
	a.target = t
	a.hasTarget = true
	a.generation++

	a.out.Set(model.Snapshot{
		State:         model.StatePending,
		ChainID:       t.ChainID,
		SourceChainID: t.SourceChainID,
		House:         t.House,
		Informational: t.Informational,
		Generation:    a.generation,
	})
	logrus.WithFields(logrus.Fields{
		"chain_id":        uint64(t.ChainID),
		"source_chain_id": uint64(t.SourceChainID),
		"house":           t.House.Hex(),
		"generation":      a.generation,
	}).Info("Aggregation target changed")
	return true
}

// Refresh runs one cycle for the current target and publishes the result.
// It returns ErrStale when the target changed while the cycle ran; the result is
// then dropped. Cycles of the same generation publish in start order: one that
// finishes after a later-started cycle already published is dropped too.
func (a *Aggregator) Refresh(ctx context.Context) (model.Snapshot, error) {
	a.mu.Lock()
	if !a.hasTarget {
		a.mu.Unlock()
		return model.Snapshot{}, ErrNoTarget
	}
	gen := a.generation
	target := a.target
	a.nextCycle++
	cycle := a.nextCycle
	cycleCtx, cancel := context.WithCancel(ctx)
	a.inflight[cycle] = cancel
	a.mu.Unlock()

	started := time.Now()
	snap := a.run(cycleCtx, target, gen)
	cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inflight, cycle)

	log := logrus.WithFields(logrus.Fields{
		"chain_id":   uint64(target.ChainID),
		"generation": gen,
	})
	if a.generation != gen || cycle < a.published {
		a.opts.Metrics.Cycle("stale")
		log.Debug("Discarded stale aggregation result")
		return model.Snapshot{}, ErrStale
	}
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	a.published = cycle
	a.out.Set(snap)
	a.opts.Metrics.Cycle(string(snap.State))
	a.opts.Metrics.Rendered(len(snap.Views))
	a.opts.Metrics.ObserveStage("cycle", started)
	log.WithFields(logrus.Fields{
		"state":       snap.State,
		"auctions":    len(snap.Views),
		"unavailable": len(snap.Unavailable),
	}).Debug("Published aggregation snapshot")
	return snap, nil
}

func (a *Aggregator) run(ctx context.Context, target Target, gen uint64) model.Snapshot {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.cycle")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chain_id", int64(target.ChainID)),
		attribute.String("house", target.House.Hex()),
	)

	snap := model.Snapshot{
		State:         model.StateReady,
		ChainID:       target.ChainID,
		SourceChainID: target.SourceChainID,
		House:         target.House,
		Informational: target.Informational,
		Generation:    gen,
		Views:         []model.ViewModel{},
	}

	reader, err := a.source(ctx, target.SourceChainID)
	if err != nil {
		otel.RecordError(span, err)
		snap.State = model.StateError
		snap.Err = fmt.Sprintf("no reader for chain %d: %v", uint64(target.SourceChainID), err)
		return snap
	}

	listing := a.levelZero(ctx, reader, target.House)
	if listing.auctionsErr != nil {
		otel.RecordError(span, listing.auctionsErr)
		logrus.WithFields(logrus.Fields{
			"chain_id": uint64(target.ChainID),
			"house":    target.House.Hex(),
		}).Warnf("Auction list unavailable: %v", listing.auctionsErr)
		snap.State = model.StateError
		snap.Err = listing.auctionsErr.Error()
		return snap
	}
	if len(listing.auctions) == 0 {
		return snap
	}

	meta, details := a.dependentLevels(ctx, reader, target.House, listing)
	return a.assemble(snap, listing, meta, details)
}
