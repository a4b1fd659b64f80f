// Package validation checks assembled auction snapshots before they are rendered.
package validation

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/trove-labs/auction-view/internal/format"
	"github.com/trove-labs/auction-view/internal/model"
)

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxDecimals rejects precisions whose scale would not fit a uint256
	MaxDecimals uint8

	// RequireTokenURI rejects auctions without a token URI, which cannot render an image
	RequireTokenURI bool

	// RejectBidOrderDrift excludes auctions whose bids decrease instead of only reporting them
	RejectBidOrderDrift bool
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxDecimals:         format.MaxDecimals,
		RequireTokenURI:     true,
		RejectBidOrderDrift: false,
	}
}

// BidOrderError reports the first bid whose amount is lower than its predecessor.
// The view treats the last bid as the highest, which only holds while amounts
// never decrease.
type BidOrderError struct {
	Index int
}

func (e *BidOrderError) Error() string {
	return fmt.Sprintf("bid %d is lower than bid %d: last bid is not the highest", e.Index, e.Index-1)
}

// Rejection is an auction excluded by validation
type Rejection struct {
	AuctionID string
	Reason    error
}

// Report is the outcome of FilterInvalid
type Report struct {
	Valid    []model.AuctionSnapshot
	Rejected []Rejection

	// Drift lists auctions whose bid history breaks the non-decreasing invariant
	Drift []string
}

// ValidateAuction checks that the auction record is well formed
func ValidateAuction(a model.Auction) error {
	var errs []error
	if a.ID == nil || a.ID.Sign() < 0 {
		errs = append(errs, errors.New("missing auction id"))
	}
	if a.Duration == 0 {
		errs = append(errs, errors.New("zero duration"))
	}
	if a.StartPrice == nil || a.BuyoutPrice == nil || a.MinimumIncrement == nil {
		errs = append(errs, errors.New("missing price field"))
	}
	return errors.Join(errs...)
}

// CheckBidOrder asserts bid amounts are non-decreasing in submission order
func CheckBidOrder(bids []model.Bid) error {
	for i, b := range bids {
		if b.Amount == nil {
			return fmt.Errorf("bid %d has no amount", i)
		}
		if i > 0 && b.Amount.Cmp(bids[i-1].Amount) < 0 {
			return &BidOrderError{Index: i}
		}
	}
	return nil
}

// FilterInvalid removes snapshots that fail validation and reports bid-order drift
func FilterInvalid(snaps []model.AuctionSnapshot, opts ValidationOptions) Report {
	report := Report{Valid: make([]model.AuctionSnapshot, 0, len(snaps))}
	for _, s := range snaps {
		id := auctionID(s.Auction)
		if err := validateSnapshot(s, opts); err != nil {
			report.Rejected = append(report.Rejected, Rejection{AuctionID: id, Reason: err})
			logrus.WithFields(logrus.Fields{
				"auction_id": id,
				"chain_id":   uint64(s.ChainID),
			}).Debugf("Filtered invalid auction: %v", err)
			continue
		}

		if err := CheckBidOrder(s.Bids); err != nil {
			var orderErr *BidOrderError
			if !errors.As(err, &orderErr) {
				report.Rejected = append(report.Rejected, Rejection{AuctionID: id, Reason: err})
				continue
			}
			report.Drift = append(report.Drift, id)
			logrus.WithFields(logrus.Fields{
				"auction_id": id,
				"chain_id":   uint64(s.ChainID),
			}).Warnf("Bid order drift: %v", err)
			if opts.RejectBidOrderDrift {
				report.Rejected = append(report.Rejected, Rejection{AuctionID: id, Reason: err})
				continue
			}
		}
		report.Valid = append(report.Valid, s)
	}
	return report
}

func validateSnapshot(s model.AuctionSnapshot, opts ValidationOptions) error {
	if err := ValidateAuction(s.Auction); err != nil {
		return err
	}
	if s.Decimals > opts.MaxDecimals {
		return fmt.Errorf("decimals %d above maximum %d", s.Decimals, opts.MaxDecimals)
	}
	if opts.RequireTokenURI && s.TokenURI == "" {
		return errors.New("missing token URI")
	}
	return nil
}

func auctionID(a model.Auction) string {
	if a.ID == nil {
		return "<nil>"
	}
	return a.ID.String()
}
