package fetch

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trove-labs/auction-view/internal/model"
)

// AuctionHouseABI covers the read-only surface of the trove auction house
const AuctionHouseABI = `[
	{
		"type": "function",
		"name": "getOngoingAuctions",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{
			"name": "",
			"type": "tuple[]",
			"components": [
				{"name": "id", "type": "uint256"},
				{"name": "start", "type": "uint64"},
				{"name": "duration", "type": "uint64"},
				{"name": "startPrice", "type": "uint256"},
				{"name": "buyoutPrice", "type": "uint256"},
				{"name": "minimumIncrement", "type": "uint256"},
				{"name": "tokenURI", "type": "string"},
				{"name": "winner", "type": "address"}
			]
		}]
	},
	{
		"type": "function",
		"name": "getBids",
		"stateMutability": "view",
		"inputs": [{"name": "auctionId", "type": "uint256"}],
		"outputs": [{
			"name": "",
			"type": "tuple[]",
			"components": [
				{"name": "bidder", "type": "address"},
				{"name": "amount", "type": "uint256"}
			]
		}]
	},
	{
		"type": "function",
		"name": "collection",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "address"}]
	},
	{
		"type": "function",
		"name": "decimals",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	}
]`

// CollectionABI covers the metadata surface of the primary collection
const CollectionABI = `[
	{
		"type": "function",
		"name": "baseURI",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}]
	}
]`

var (
	auctionHouseABI = mustParseABI(AuctionHouseABI)
	collectionABI   = mustParseABI(CollectionABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// auctionTuple mirrors the getOngoingAuctions tuple; field names follow the ABI
// component names in camel case
type auctionTuple struct {
	Id               *big.Int
	Start            uint64
	Duration         uint64
	StartPrice       *big.Int
	BuyoutPrice      *big.Int
	MinimumIncrement *big.Int
	TokenURI         string
	Winner           common.Address
}

type bidTuple struct {
	Bidder common.Address
	Amount *big.Int
}

// AuctionHouseReader decodes auction-house and collection reads for one network
type AuctionHouseReader struct {
	caller *Caller
}

// NewAuctionHouseReader wraps caller with the typed auction-house surface
func NewAuctionHouseReader(caller *Caller) *AuctionHouseReader {
	return &AuctionHouseReader{caller: caller}
}

// OngoingAuctions lists the auctions still open on house
func (r *AuctionHouseReader) OngoingAuctions(ctx context.Context, house common.Address) ([]model.Auction, error) {
	out, err := r.caller.Call(ctx, house, &auctionHouseABI, "getOngoingAuctions")
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]auctionTuple)).(*[]auctionTuple)

	auctions := make([]model.Auction, 0, len(tuples))
	for _, t := range tuples {
		auctions = append(auctions, model.Auction{
			ID:               t.Id,
			Start:            t.Start,
			Duration:         t.Duration,
			StartPrice:       t.StartPrice,
			BuyoutPrice:      t.BuyoutPrice,
			MinimumIncrement: t.MinimumIncrement,
			TokenURI:         t.TokenURI,
			Winner:           t.Winner,
		})
	}
	return auctions, nil
}

// Collection returns the primary collection linked to house
func (r *AuctionHouseReader) Collection(ctx context.Context, house common.Address) (common.Address, error) {
	out, err := r.caller.Call(ctx, house, &auctionHouseABI, "collection")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// BaseURI returns the metadata base URI of collection
func (r *AuctionHouseReader) BaseURI(ctx context.Context, collection common.Address) (string, error) {
	out, err := r.caller.Call(ctx, collection, &collectionABI, "baseURI")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Bids returns the bid history of one auction in submission order
func (r *AuctionHouseReader) Bids(ctx context.Context, house common.Address, auctionID *big.Int) ([]model.Bid, error) {
	out, err := r.caller.Call(ctx, house, &auctionHouseABI, "getBids", auctionID)
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]bidTuple)).(*[]bidTuple)

	bids := make([]model.Bid, 0, len(tuples))
	for _, t := range tuples {
		bids = append(bids, model.Bid{Bidder: t.Bidder, Amount: t.Amount})
	}
	return bids, nil
}

// Decimals returns the fixed precision the auction house quotes amounts in
func (r *AuctionHouseReader) Decimals(ctx context.Context, house common.Address) (uint8, error) {
	out, err := r.caller.Call(ctx, house, &auctionHouseABI, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}
