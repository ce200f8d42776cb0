// Package store persists auctions and their append-only bid ledger.
//
// All mutations that race (status transitions, bid acceptance) are expressed
// as conditional updates: the caller states the prior state it observed and
// the store applies the change only if that state still holds. This is the
// single concurrency guard shared by the bid path and the scheduler sweep.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// ErrNotFound is returned when no auction exists with the requested id.
var ErrNotFound = errors.New("auction not found")

// ErrListingBusy is returned by CreateAuction when the listing already has a
// scheduled or active auction.
var ErrListingBusy = errors.New("listing already has a non-terminal auction")

// Store is the durable home of auctions and bids.
type Store interface {
	// CreateAuction inserts a new scheduled auction. Fails with
	// ErrListingBusy if the listing already has a non-terminal auction.
	CreateAuction(ctx context.Context, a *auction.Auction) error

	// GetAuction returns the auction or ErrNotFound.
	GetAuction(ctx context.Context, id string) (*auction.Auction, error)

	// UpdateSchedule rewrites the window and prices of a still-scheduled
	// auction. Returns false if the auction is no longer scheduled.
	UpdateSchedule(ctx context.Context, id string, startTime, endTime time.Time, startingBid, minIncrement decimal.Decimal, now time.Time) (bool, error)

	// TransitionStatus moves the auction from one status to another iff it
	// is still in the expected prior status. newStartTime, when non-nil,
	// rewrites StartTime in the same update (admin start-now). Returns
	// false when the guard did not hold, which callers treat as "someone
	// else already transitioned it".
	TransitionStatus(ctx context.Context, id string, from, to auction.Status, newStartTime *time.Time, now time.Time) (bool, error)

	// AppendBid inserts the bid and folds it into the auction summary
	// (current_bid, current_winner_id, total_bids) in one atomic step, iff
	// the auction is still active and its accepted-bid count still equals
	// expectTotalBids. Returns false when the guard did not hold.
	AppendBid(ctx context.Context, bid *auction.Bid, expectTotalBids int, now time.Time) (bool, error)

	// DueScheduled lists scheduled auctions whose start time has passed.
	DueScheduled(ctx context.Context, now time.Time) ([]*auction.Auction, error)

	// DueActive lists active auctions whose end time has passed.
	DueActive(ctx context.Context, now time.Time) ([]*auction.Auction, error)

	// ListActive lists auctions currently in the active status.
	ListActive(ctx context.Context) ([]*auction.Auction, error)

	// ListUpcoming lists scheduled auctions that have not yet reached
	// their start time, soonest first.
	ListUpcoming(ctx context.Context, now time.Time) ([]*auction.Auction, error)

	// ListScheduled lists every auction still in the scheduled status.
	ListScheduled(ctx context.Context) ([]*auction.Auction, error)

	// ListHistory lists ended and cancelled auctions, most recent first.
	ListHistory(ctx context.Context) ([]*auction.Auction, error)

	// BidHistory returns the auction's accepted bids, most recent first.
	BidHistory(ctx context.Context, auctionID string) ([]*auction.Bid, error)

	// Participants groups the ledger by bidder: bid count and personal
	// highest bid, ordered by highest bid descending.
	Participants(ctx context.Context, auctionID string) ([]*auction.Participant, error)
}
