package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trove-labs/auction-view/internal/model"
	"github.com/trove-labs/auction-view/internal/otel"
	"github.com/trove-labs/auction-view/internal/validation"
)

// Exclusion reasons, also used as metric labels
const (
	ReasonMetadata  = "metadata"
	ReasonPrecision = "precision"
	ReasonBids      = "bids"
	ReasonInvalid   = "invalid"
	ReasonMedia     = "media"
)

// DependencyError means a read was not issued because a read it needs failed
type DependencyError struct {
	Stage string
	Err   error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Stage, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// listing is the level 0 outcome. Each sibling keeps its own result.
type listing struct {
	auctions      []model.Auction
	auctionsErr   error
	collection    common.Address
	collectionErr error
}

// metadata is the level 1 outcome
type metadata struct {
	baseURI string
	err     error
}

// details is the level 2 outcome. bidErrs is indexed like listing.auctions.
type details struct {
	bids        [][]model.Bid
	bidErrs     []error
	decimals    uint8
	decimalsErr error
}

// stage wraps a named read with a span and a duration sample
func (a *Aggregator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer().Start(ctx, "aggregate."+name)
	defer span.End()
	started := time.Now()
	err := fn(ctx)
	a.opts.Metrics.ObserveStage(name, started)
	if err != nil {
		otel.RecordError(span, err)
	}
	return err
}

// levelZero runs listAuctions and linkedCollection side by side. The group has
// no shared cancel: a failing sibling must not abort the other one.
func (a *Aggregator) levelZero(ctx context.Context, r AuctionReader, house common.Address) listing {
	var out listing
	var g errgroup.Group

	g.Go(func() error {
		out.auctionsErr = a.stage(ctx, "listAuctions", func(ctx context.Context) error {
			var err error
			out.auctions, err = r.OngoingAuctions(ctx, house)
			return err
		})
		return nil
	})
	g.Go(func() error {
		out.collectionErr = a.stage(ctx, "linkedCollection", func(ctx context.Context) error {
			var err error
			out.collection, err = r.Collection(ctx, house)
			return err
		})
		return nil
	})
	_ = g.Wait()
	return out
}

// dependentLevels issues level 1 once linkedCollection has resolved and level 2
// once listAuctions has resolved. Both levels wait for every sibling.
func (a *Aggregator) dependentLevels(ctx context.Context, r AuctionReader, house common.Address, l listing) (metadata, details) {
	var meta metadata
	var det details
	var g errgroup.Group

	g.Go(func() error {
		meta = a.levelOne(ctx, r, l)
		return nil
	})
	g.Go(func() error {
		det = a.levelTwo(ctx, r, house, l.auctions)
		return nil
	})
	_ = g.Wait()
	return meta, det
}

func (a *Aggregator) levelOne(ctx context.Context, r AuctionReader, l listing) metadata {
	if l.collectionErr != nil {
		return metadata{err: &DependencyError{Stage: "linkedCollection", Err: l.collectionErr}}
	}
	var meta metadata
	meta.err = a.stage(ctx, "collectionBaseURI", func(ctx context.Context) error {
		var err error
		meta.baseURI, err = r.BaseURI(ctx, l.collection)
		return err
	})
	return meta
}

func (a *Aggregator) levelTwo(ctx context.Context, r AuctionReader, house common.Address, auctions []model.Auction) details {
	det := details{
		bids:    make([][]model.Bid, len(auctions)),
		bidErrs: make([]error, len(auctions)),
	}

	var g errgroup.Group
	if a.opts.MaxConcurrentReads > 0 {
		// +1 keeps housePrecision from queueing behind the bid reads
		g.SetLimit(a.opts.MaxConcurrentReads + 1)
	}

	g.Go(func() error {
		det.decimalsErr = a.stage(ctx, "housePrecision", func(ctx context.Context) error {
			var err error
			det.decimals, err = r.Decimals(ctx, house)
			return err
		})
		return nil
	})

	started := time.Now()
	for i, auc := range auctions {
		g.Go(func() error {
			if auc.ID == nil {
				det.bidErrs[i] = fmt.Errorf("auction %d has no id", i)
				return nil
			}
			det.bids[i], det.bidErrs[i] = r.Bids(ctx, house, auc.ID)
			return nil
		})
	}
	_ = g.Wait()
	a.opts.Metrics.ObserveStage("bidHistories", started)
	return det
}

// assemble joins the per-level results into snapshot items. An auction missing
// any of its dependencies is listed in Unavailable instead of rendered.
func (a *Aggregator) assemble(snap model.Snapshot, l listing, meta metadata, det details) model.Snapshot {
	started := time.Now()
	defer a.opts.Metrics.ObserveStage("assemble", started)

	log := logrus.WithFields(logrus.Fields{
		"chain_id": uint64(snap.ChainID),
		"house":    snap.House.Hex(),
	})

	excluded := make(map[string]int)
	exclude := func(id, reason string, err error) {
		snap.Unavailable = append(snap.Unavailable, id)
		excluded[reason]++
		log.WithField("auction_id", id).Debugf("Auction unavailable (%s): %v", reason, err)
	}

	var joined []model.AuctionSnapshot
	for i, auc := range l.auctions {
		id := auctionLabel(auc, i)
		switch {
		case meta.err != nil:
			exclude(id, ReasonMetadata, meta.err)
		case det.decimalsErr != nil:
			exclude(id, ReasonPrecision, det.decimalsErr)
		case det.bidErrs[i] != nil:
			exclude(id, ReasonBids, det.bidErrs[i])
		default:
			joined = append(joined, model.AuctionSnapshot{
				Auction:  auc,
				Bids:     det.bids[i],
				Decimals: det.decimals,
				BaseURI:  meta.baseURI,
				ChainID:  snap.ChainID,
			})
		}
	}
	if meta.err != nil {
		log.Warnf("Collection metadata unavailable: %v", meta.err)
	}
	if det.decimalsErr != nil {
		log.Warnf("House precision unavailable: %v", det.decimalsErr)
	}

	report := validation.FilterInvalid(joined, a.opts.Validation)
	for _, rej := range report.Rejected {
		exclude(rej.AuctionID, ReasonInvalid, rej.Reason)
	}
	for range report.Drift {
		a.opts.Metrics.BidOrderViolation()
	}

	now := a.opts.Now()
	for _, s := range report.Valid {
		view, err := BuildView(s, a.opts.Formatter, now)
		if err != nil {
			exclude(view.AuctionID, ReasonMedia, err)
			continue
		}
		snap.Auctions = append(snap.Auctions, s)
		snap.Views = append(snap.Views, view)
	}

	for reason, n := range excluded {
		a.opts.Metrics.Unavailable(reason, n)
	}
	return snap
}

func auctionLabel(a model.Auction, index int) string {
	if a.ID == nil {
		return fmt.Sprintf("#%d", index)
	}
	return a.ID.String()
}
