package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auction.
type Status string

// Auction lifecycle states. Transitions: scheduled -> active -> ended,
// scheduled -> cancelled. Ended and cancelled are terminal.
const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Auction is one time-boxed bidding process attached to a listing.
//
// CurrentBid, CurrentWinnerID and TotalBids are summary fields owned by the
// bid ledger: they are updated atomically with each accepted bid and are
// always reconstructible by replaying the accepted bids in order.
type Auction struct {
	ID              string          `json:"id"`
	ListingID       string          `json:"listing_id"`
	SellerID        string          `json:"seller_id"`
	Title           string          `json:"title"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	StartingBid     decimal.Decimal `json:"starting_bid"`
	MinBidIncrement decimal.Decimal `json:"min_bid_increment"`
	Status          Status          `json:"status"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	CurrentWinnerID string          `json:"current_winner_id,omitempty"`
	TotalBids       int             `json:"total_bids"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MinimumNextBid is the smallest amount the next bid must reach: the starting
// bid while the ledger is empty, current bid plus the increment afterwards.
func (a *Auction) MinimumNextBid() decimal.Decimal {
	if a.TotalBids == 0 {
		return a.StartingBid
	}
	return a.CurrentBid.Add(a.MinBidIncrement)
}

// BiddableAt reports whether a bid arriving at the given instant is inside
// the auction's window. The window is [StartTime, EndTime).
func (a *Auction) BiddableAt(at time.Time) bool {
	return a.Status == StatusActive && !at.Before(a.StartTime) && at.Before(a.EndTime)
}

// Bid is a single accepted offer. Rows are append-only: once accepted a bid
// is never mutated or deleted, so the ledger doubles as the audit trail.
// "Outbid" is derived from ordering, never stored.
type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// BidLabel annotates a bid in history views.
const (
	BidLabelWinning = "winning"
	BidLabelOutbid  = "outbid"
)

// AnnotatedBid is a ledger row plus its derived history label.
type AnnotatedBid struct {
	Bid
	Label string `json:"label"`
}

// Participant summarises one bidder's activity on an auction.
type Participant struct {
	BidderID   string          `json:"bidder_id"`
	BidCount   int             `json:"bid_count"`
	HighestBid decimal.Decimal `json:"highest_bid"`
}

// ScheduleRequest carries the parameters for creating a scheduled auction.
type ScheduleRequest struct {
	ListingID       string          `json:"listing_id"`
	SellerID        string          `json:"seller_id"`
	Title           string          `json:"title"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	StartingBid     decimal.Decimal `json:"starting_bid"`
	MinBidIncrement decimal.Decimal `json:"min_bid_increment"`
}

// RescheduleRequest moves a still-scheduled auction to a new window.
// Zero-valued price fields leave the existing values untouched.
type RescheduleRequest struct {
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	StartingBid     decimal.Decimal `json:"starting_bid"`
	MinBidIncrement decimal.Decimal `json:"min_bid_increment"`
}

// BidRequest is an inbound bid from the API surface. BidderID is the
// authenticated identity supplied by the caller; the engine trusts it.
type BidRequest struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}
