// Package model defines the core data structures for the auction view.
package model

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trove-labs/auction-view/internal/types"
)

// Auction is one ongoing auction as returned by the auction house
type Auction struct {
	ID               *big.Int       `json:"id"`
	Start            uint64         `json:"start"`
	Duration         uint64         `json:"duration"`
	StartPrice       *big.Int       `json:"start_price"`
	BuyoutPrice      *big.Int       `json:"buyout_price"`
	MinimumIncrement *big.Int       `json:"minimum_increment"`
	TokenURI         string         `json:"token_uri"`
	Winner           common.Address `json:"winner"`
}

// Bid is one entry of an auction's bid history
type Bid struct {
	Bidder common.Address `json:"bidder"`
	Amount *big.Int       `json:"amount"`
}

// AuctionSnapshot joins an auction with its dependent reads.
// Bids are in chain submission order.
type AuctionSnapshot struct {
	Auction
	Bids     []Bid         `json:"bids"`
	Decimals uint8         `json:"decimals"`
	BaseURI  string        `json:"base_uri"`
	ChainID  types.ChainID `json:"chain_id"`
}

// HighestBid returns the last bid in submission order, not the maximum amount.
// validation.CheckBidOrder flags histories where the two differ.
func (s AuctionSnapshot) HighestBid() (Bid, bool) {
	if len(s.Bids) == 0 {
		return Bid{}, false
	}
	return s.Bids[len(s.Bids)-1], true
}

// End is the unix second at which bidding closes. It saturates at
// math.MaxUint64 rather than wrapping, so an open-ended duration never reads as
// already closed.
func (s AuctionSnapshot) End() uint64 {
	if s.Duration > math.MaxUint64-s.Start {
		return math.MaxUint64
	}
	return s.Start + s.Duration
}

// ViewModel is the display-ready card for one auction
type ViewModel struct {
	AuctionID           string         `json:"auction_id"`
	ImageURI            string         `json:"image_uri"`
	HasBids             bool           `json:"has_bids"`
	HighestBidDisplay   string         `json:"highest_bid"`
	MinIncrementDisplay string         `json:"min_increment"`
	BuyoutDisplay       string         `json:"buyout"`
	RemainingSeconds    uint64         `json:"remaining_seconds"`
	Winner              common.Address `json:"winner"`
}

// State of an aggregation result
type State string

const (
	// StatePending means no cycle has completed for the current target
	StatePending State = "pending"
	// StateReady means the auction list was read; it may legitimately be empty
	StateReady State = "ready"
	// StateError means the auction list itself could not be read
	StateError State = "error"
)

// Snapshot is one published aggregation result. Every item in it was read for
// ChainID during the same generation.
type Snapshot struct {
	State         State          `json:"state"`
	ChainID       types.ChainID  `json:"chain_id"`
	SourceChainID types.ChainID  `json:"source_chain_id"`
	House         common.Address `json:"house"`

	// Informational is set when House is a fallback address on another network
	Informational bool   `json:"informational"`
	Generation    uint64 `json:"generation"`

	Auctions    []AuctionSnapshot `json:"-"`
	Views       []ViewModel       `json:"auctions"`
	Unavailable []string          `json:"unavailable,omitempty"`
	Err         string            `json:"error,omitempty"`
}

// Empty reports whether no auction is rendered
func (s Snapshot) Empty() bool {
	return len(s.Views) == 0
}
