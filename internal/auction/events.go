package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published by the engine. Per-auction ordering follows
// production order; no ordering is promised across auctions.
const (
	EventScheduled = "auction:scheduled"
	EventStarted   = "auction:started"
	EventEnded     = "auction:ended"
	EventCancelled = "auction:cancelled"
	EventBidUpdate = "bid-update"
)

// Event is the JSON payload fanned out to viewers and archived to the event
// stream. Bid fields are only set on bid-update events; WinnerID only on
// auction:ended.
type Event struct {
	EventID   string           `json:"event_id"`
	Type      string           `json:"type"`
	AuctionID string           `json:"auction_id"`
	Status    Status           `json:"status,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	BidderID  string           `json:"bidder_id,omitempty"`
	TotalBids int              `json:"total_bids,omitempty"`
	WinnerID  string           `json:"winner_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
