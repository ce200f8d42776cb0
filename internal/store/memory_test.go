package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testAuction(id, listing string, status auction.Status, start, end time.Time) *auction.Auction {
	return &auction.Auction{
		ID:              id,
		ListingID:       listing,
		SellerID:        "seller-1",
		StartTime:       start,
		EndTime:         end,
		StartingBid:     dec("50"),
		MinBidIncrement: dec("5"),
		Status:          status,
		CurrentBid:      dec("50"),
	}
}

func TestCreateAuctionEnforcesOnePerListing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a := testAuction("a1", "listing-1", auction.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, s.CreateAuction(ctx, a))

	dup := testAuction("a2", "listing-1", auction.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour))
	assert.ErrorIs(t, s.CreateAuction(ctx, dup), ErrListingBusy)

	// A terminal auction frees the listing for a new one.
	ok, err := s.TransitionStatus(ctx, "a1", auction.StatusScheduled, auction.StatusCancelled, nil, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, s.CreateAuction(ctx, dup))
}

func TestGetAuctionReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAuction(ctx, testAuction("a1", "l1", auction.StatusScheduled, now, now.Add(time.Hour))))

	got, err := s.GetAuction(ctx, "a1")
	require.NoError(t, err)
	got.Status = auction.StatusEnded

	again, err := s.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.StatusScheduled, again.Status, "caller mutation must not leak into the store")

	_, err = s.GetAuction(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatusGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAuction(ctx, testAuction("a1", "l1", auction.StatusScheduled, now, now.Add(time.Hour))))

	ok, err := s.TransitionStatus(ctx, "a1", auction.StatusScheduled, auction.StatusActive, nil, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same transition again: guard fails, nothing changes.
	ok, err = s.TransitionStatus(ctx, "a1", auction.StatusScheduled, auction.StatusActive, nil, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Start-time rewrite applies with the transition.
	require.NoError(t, s.CreateAuction(ctx, testAuction("a2", "l2", auction.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour))))
	newStart := now.Add(time.Minute)
	ok, err = s.TransitionStatus(ctx, "a2", auction.StatusScheduled, auction.StatusActive, &newStart, now)
	require.NoError(t, err)
	require.True(t, ok)
	a2, err := s.GetAuction(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, a2.StartTime.Equal(newStart))
}

func TestAppendBidGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a := testAuction("a1", "l1", auction.StatusActive, now.Add(-time.Minute), now.Add(time.Hour))
	require.NoError(t, s.CreateAuction(ctx, a))

	bid := &auction.Bid{ID: "b1", AuctionID: "a1", BidderID: "bidder-1", Amount: dec("60"), PlacedAt: now}
	ok, err := s.AppendBid(ctx, bid, 0, now)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalBids)
	assert.True(t, got.CurrentBid.Equal(dec("60")))
	assert.Equal(t, "bidder-1", got.CurrentWinnerID)

	// Stale expected count: the lost-update race is refused.
	stale := &auction.Bid{ID: "b2", AuctionID: "a1", BidderID: "bidder-2", Amount: dec("70"), PlacedAt: now}
	ok, err = s.AppendBid(ctx, stale, 0, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Not active: refused regardless of count.
	_, err = s.TransitionStatus(ctx, "a1", auction.StatusActive, auction.StatusEnded, nil, now)
	require.NoError(t, err)
	ok, err = s.AppendBid(ctx, &auction.Bid{ID: "b3", AuctionID: "a1", BidderID: "bidder-3", Amount: dec("80"), PlacedAt: now}, 1, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ledger, err := s.BidHistory(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, ledger, 1, "refused bids never reach the ledger")
}

func TestListingQueries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []*auction.Auction{
		testAuction("due-start", "l1", auction.StatusScheduled, now.Add(-time.Minute), now.Add(time.Hour)),
		testAuction("upcoming", "l2", auction.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour)),
		testAuction("running", "l3", auction.StatusActive, now.Add(-time.Hour), now.Add(time.Hour)),
		testAuction("due-end", "l4", auction.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Minute)),
		testAuction("done", "l5", auction.StatusEnded, now.Add(-3*time.Hour), now.Add(-2*time.Hour)),
		testAuction("pulled", "l6", auction.StatusCancelled, now.Add(time.Hour), now.Add(2*time.Hour)),
	}
	for _, a := range fixtures {
		require.NoError(t, s.CreateAuction(ctx, a))
	}

	ids := func(list []*auction.Auction) []string {
		var out []string
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	due, err := s.DueScheduled(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"due-start"}, ids(due))

	closing, err := s.DueActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"due-end"}, ids(closing))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"running", "due-end"}, ids(active))

	upcoming, err := s.ListUpcoming(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"upcoming"}, ids(upcoming))

	scheduled, err := s.ListScheduled(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"due-start", "upcoming"}, ids(scheduled))

	history, err := s.ListHistory(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"done", "pulled"}, ids(history))
}

func TestParticipantsGrouping(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a := testAuction("a1", "l1", auction.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, s.CreateAuction(ctx, a))

	amounts := []string{"55", "60", "70", "80"}
	bidders := []string{"x", "y", "x", "y"}
	for i := range amounts {
		bid := &auction.Bid{
			ID:        amounts[i],
			AuctionID: "a1",
			BidderID:  bidders[i],
			Amount:    dec(amounts[i]),
			PlacedAt:  now,
		}
		ok, err := s.AppendBid(ctx, bid, i, now)
		require.NoError(t, err)
		require.True(t, ok)
	}

	participants, err := s.Participants(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "y", participants[0].BidderID)
	assert.Equal(t, 2, participants[0].BidCount)
	assert.True(t, participants[0].HighestBid.Equal(dec("80")))
	assert.True(t, participants[1].HighestBid.Equal(dec("70")))
}
