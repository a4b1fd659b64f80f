package aggregate

import (
	"time"

	"github.com/trove-labs/auction-view/internal/format"
	"github.com/trove-labs/auction-view/internal/model"
)

// BuildView derives the display card for one joined auction. The highest bid
// is the last bid in submission order; with no bids HasBids is false and the
// display is left empty.
func BuildView(s model.AuctionSnapshot, f *format.Formatter, now time.Time) (model.ViewModel, error) {
	if f == nil {
		f = format.Default
	}
	view := model.ViewModel{
		AuctionID:           auctionLabel(s.Auction, 0),
		MinIncrementDisplay: f.FormatAmount(s.MinimumIncrement, s.Decimals),
		BuyoutDisplay:       f.FormatAmount(s.BuyoutPrice, s.Decimals),
		RemainingSeconds:    RemainingSeconds(s, now),
		Winner:              s.Winner,
	}

	image, err := format.ResolveMediaURI(s.BaseURI, s.TokenURI)
	if err != nil {
		return view, err
	}
	view.ImageURI = image

	if bid, ok := s.HighestBid(); ok {
		view.HasBids = true
		view.HighestBidDisplay = f.FormatAmount(bid.Amount, s.Decimals)
	}
	return view, nil
}

// RemainingSeconds is the time left until the auction closes, floored at zero
func RemainingSeconds(s model.AuctionSnapshot, now time.Time) uint64 {
	unix := now.Unix()
	if unix < 0 {
		unix = 0
	}
	end := s.End()
	if end <= uint64(unix) {
		return 0
	}
	return end - uint64(unix)
}
