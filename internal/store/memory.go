package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// MemoryStore implements Store with in-process maps under one mutex. It
// backs the engine and HTTP tests and gives the same conditional-update
// semantics as the SQL implementation.
type MemoryStore struct {
	mu       sync.Mutex
	auctions map[string]*auction.Auction
	bids     map[string][]*auction.Bid
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*auction.Auction),
		bids:     make(map[string][]*auction.Bid),
	}
}

func copyAuction(a *auction.Auction) *auction.Auction {
	c := *a
	return &c
}

func (s *MemoryStore) CreateAuction(_ context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.auctions {
		if existing.ListingID == a.ListingID && !existing.Status.Terminal() {
			return ErrListingBusy
		}
	}
	s.auctions[a.ID] = copyAuction(a)
	return nil
}

func (s *MemoryStore) GetAuction(_ context.Context, id string) (*auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAuction(a), nil
}

func (s *MemoryStore) UpdateSchedule(_ context.Context, id string, startTime, endTime time.Time, startingBid, minIncrement decimal.Decimal, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok || a.Status != auction.StatusScheduled {
		return false, nil
	}
	a.StartTime = startTime
	a.EndTime = endTime
	a.StartingBid = startingBid
	a.MinBidIncrement = minIncrement
	a.CurrentBid = startingBid
	a.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) TransitionStatus(_ context.Context, id string, from, to auction.Status, newStartTime *time.Time, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if newStartTime != nil {
		a.StartTime = *newStartTime
	}
	a.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) AppendBid(_ context.Context, bid *auction.Bid, expectTotalBids int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[bid.AuctionID]
	if !ok || a.Status != auction.StatusActive || a.TotalBids != expectTotalBids {
		return false, nil
	}
	a.CurrentBid = bid.Amount
	a.CurrentWinnerID = bid.BidderID
	a.TotalBids++
	a.UpdatedAt = now

	b := *bid
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], &b)
	return true, nil
}

func (s *MemoryStore) collect(match func(*auction.Auction) bool, less func(a, b *auction.Auction) bool) []*auction.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*auction.Auction
	for _, a := range s.auctions {
		if match(a) {
			out = append(out, copyAuction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byStartTime(a, b *auction.Auction) bool { return a.StartTime.Before(b.StartTime) }

func (s *MemoryStore) DueScheduled(_ context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status == auction.StatusScheduled && !a.StartTime.After(now)
	}, byStartTime), nil
}

func (s *MemoryStore) DueActive(_ context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status == auction.StatusActive && !a.EndTime.After(now)
	}, func(a, b *auction.Auction) bool { return a.EndTime.Before(b.EndTime) }), nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status == auction.StatusActive
	}, func(a, b *auction.Auction) bool { return a.EndTime.Before(b.EndTime) }), nil
}

func (s *MemoryStore) ListUpcoming(_ context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status == auction.StatusScheduled && a.StartTime.After(now)
	}, byStartTime), nil
}

func (s *MemoryStore) ListScheduled(_ context.Context) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status == auction.StatusScheduled
	}, byStartTime), nil
}

func (s *MemoryStore) ListHistory(_ context.Context) ([]*auction.Auction, error) {
	return s.collect(func(a *auction.Auction) bool {
		return a.Status.Terminal()
	}, func(a, b *auction.Auction) bool { return a.UpdatedAt.After(b.UpdatedAt) }), nil
}

func (s *MemoryStore) BidHistory(_ context.Context, auctionID string) ([]*auction.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.bids[auctionID]
	out := make([]*auction.Bid, 0, len(ledger))
	// Ledger is in acceptance order; history reads newest first.
	for i := len(ledger) - 1; i >= 0; i-- {
		b := *ledger[i]
		out = append(out, &b)
	}
	return out, nil
}

func (s *MemoryStore) Participants(_ context.Context, auctionID string) ([]*auction.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byBidder := make(map[string]*auction.Participant)
	for _, b := range s.bids[auctionID] {
		p, ok := byBidder[b.BidderID]
		if !ok {
			p = &auction.Participant{BidderID: b.BidderID}
			byBidder[b.BidderID] = p
		}
		p.BidCount++
		if b.Amount.GreaterThan(p.HighestBid) {
			p.HighestBid = b.Amount
		}
	}

	out := make([]*auction.Participant, 0, len(byBidder))
	for _, p := range byBidder {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HighestBid.GreaterThan(out[j].HighestBid)
	})
	return out, nil
}
