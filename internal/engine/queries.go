package engine

import (
	"context"
	"time"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// Read-side operations. These answer directly from stored state; no business
// rules are re-evaluated here.

// Get returns one auction summary.
func (e *Engine) Get(ctx context.Context, id string) (*auction.Auction, error) {
	return e.getAuction(ctx, id)
}

// ListActive lists auctions currently accepting bids, ending soonest first.
func (e *Engine) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	return e.store.ListActive(ctx)
}

// ListUpcoming lists scheduled auctions whose start is still ahead of now,
// soonest first.
func (e *Engine) ListUpcoming(ctx context.Context) ([]*auction.Auction, error) {
	return e.store.ListUpcoming(ctx, e.clock())
}

// ListScheduled lists every auction still in the scheduled state.
func (e *Engine) ListScheduled(ctx context.Context) ([]*auction.Auction, error) {
	return e.store.ListScheduled(ctx)
}

// ListHistory lists terminal auctions, most recently finished first.
func (e *Engine) ListHistory(ctx context.Context) ([]*auction.Auction, error) {
	return e.store.ListHistory(ctx)
}

// BidHistory returns the auction's accepted bids, most recent first. Amounts
// strictly increase in acceptance order, so only the first entry can hold
// the winning label; everything below it has been outbid.
func (e *Engine) BidHistory(ctx context.Context, auctionID string) ([]*auction.AnnotatedBid, error) {
	if _, err := e.getAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := e.store.BidHistory(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	out := make([]*auction.AnnotatedBid, 0, len(bids))
	for i, b := range bids {
		label := auction.BidLabelOutbid
		if i == 0 {
			label = auction.BidLabelWinning
		}
		out = append(out, &auction.AnnotatedBid{Bid: *b, Label: label})
	}
	return out, nil
}

// Participants groups the ledger by bidder with bid count and personal
// highest bid.
func (e *Engine) Participants(ctx context.Context, auctionID string) ([]*auction.Participant, error) {
	if _, err := e.getAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return e.store.Participants(ctx, auctionID)
}

// Now exposes the engine's clock so collaborators (HTTP layer, scheduler)
// share one notion of request time.
func (e *Engine) Now() time.Time {
	return e.clock()
}
