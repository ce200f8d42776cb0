// Package engine owns the auction lifecycle and the bid-acceptance path.
//
// All state lives in the store; the engine validates against a snapshot and
// applies changes through the store's conditional updates, so any number of
// engine instances can run against the same database.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
	"github.com/pallab20057477/bidcart-auction/internal/notifier"
	"github.com/pallab20057477/bidcart-auction/internal/store"
)

// bidAttempts bounds the optimistic retry loop for one bid request. Each
// retry re-reads the auction, so a loser of the atomic race is reclassified
// against fresh state rather than the stale snapshot it first saw.
const bidAttempts = 3

const publishTimeout = 5 * time.Second

// eventQueueSize bounds the backlog between the write path and the event
// dispatcher. A full queue drops the event rather than stall a bid.
const eventQueueSize = 256

// Engine is the auction state machine plus bid ledger.
type Engine struct {
	store      store.Store
	publishers []notifier.Publisher
	clock      func() time.Time
	log        zerolog.Logger
	events     chan *auction.Event
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithPublisher adds an event sink. Events go to every registered sink.
func WithPublisher(p notifier.Publisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, p) }
}

// New creates an Engine on the given store.
func New(st store.Store, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		clock:  func() time.Time { return time.Now().UTC() },
		log:    log,
		events: make(chan *auction.Event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.dispatch()
	return e
}

// Close stops the event dispatcher after it drains the queue. No engine
// operation may run after Close.
func (e *Engine) Close() error {
	close(e.events)
	return nil
}

// Schedule creates a new auction in the scheduled state.
func (e *Engine) Schedule(ctx context.Context, req auction.ScheduleRequest) (*auction.Auction, error) {
	now := e.clock()

	if req.ListingID == "" || req.SellerID == "" {
		return nil, auction.NewError(auction.KindValidation, "listing_id and seller_id are required")
	}
	if !req.StartTime.After(now) {
		return nil, auction.NewError(auction.KindValidation, "start_time must be in the future")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, auction.NewError(auction.KindValidation, "end_time must be after start_time")
	}
	if !req.StartingBid.IsPositive() {
		return nil, auction.NewError(auction.KindValidation, "starting_bid must be positive")
	}
	increment := req.MinBidIncrement
	if increment.IsZero() {
		increment = decimal.NewFromInt(1)
	}
	if increment.IsNegative() {
		return nil, auction.NewError(auction.KindValidation, "min_bid_increment must be positive")
	}

	a := &auction.Auction{
		ID:              uuid.New().String(),
		ListingID:       req.ListingID,
		SellerID:        req.SellerID,
		Title:           req.Title,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		StartingBid:     req.StartingBid,
		MinBidIncrement: increment,
		Status:          auction.StatusScheduled,
		CurrentBid:      req.StartingBid,
		TotalBids:       0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.CreateAuction(ctx, a); err != nil {
		if errors.Is(err, store.ErrListingBusy) {
			return nil, auction.NewError(auction.KindValidation,
				"listing %s already has a scheduled or active auction", req.ListingID)
		}
		return nil, err
	}

	e.emit(&auction.Event{
		Type:      auction.EventScheduled,
		AuctionID: a.ID,
		Status:    auction.StatusScheduled,
	})
	return a, nil
}

// Reschedule moves a still-scheduled auction to a new window. Zero-valued
// price fields keep their current values.
func (e *Engine) Reschedule(ctx context.Context, id string, req auction.RescheduleRequest) (*auction.Auction, error) {
	now := e.clock()

	a, err := e.getAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusScheduled {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is %s; only scheduled auctions can be rescheduled", id, a.Status)
	}

	startingBid := req.StartingBid
	if startingBid.IsZero() {
		startingBid = a.StartingBid
	}
	increment := req.MinBidIncrement
	if increment.IsZero() {
		increment = a.MinBidIncrement
	}
	if !req.StartTime.After(now) {
		return nil, auction.NewError(auction.KindValidation, "start_time must be in the future")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, auction.NewError(auction.KindValidation, "end_time must be after start_time")
	}
	if !startingBid.IsPositive() {
		return nil, auction.NewError(auction.KindValidation, "starting_bid must be positive")
	}
	if increment.IsNegative() {
		return nil, auction.NewError(auction.KindValidation, "min_bid_increment must be positive")
	}

	ok, err := e.store.UpdateSchedule(ctx, id, req.StartTime.UTC(), req.EndTime.UTC(), startingBid, increment, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is no longer scheduled", id)
	}

	e.emit(&auction.Event{
		Type:      auction.EventScheduled,
		AuctionID: id,
		Status:    auction.StatusScheduled,
	})
	return e.getAuction(ctx, id)
}

// Start transitions scheduled -> active. An admin start-now before the
// natural start rewrites the start time so the biddable window opens
// immediately.
func (e *Engine) Start(ctx context.Context, id string) (*auction.Auction, error) {
	now := e.clock()

	a, err := e.getAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusScheduled {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is %s; only scheduled auctions can start", id, a.Status)
	}

	var newStart *time.Time
	if now.Before(a.StartTime) {
		newStart = &now
	}

	ok, err := e.store.TransitionStatus(ctx, id, auction.StatusScheduled, auction.StatusActive, newStart, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is no longer scheduled", id)
	}

	e.emit(&auction.Event{
		Type:      auction.EventStarted,
		AuctionID: id,
		Status:    auction.StatusActive,
	})
	return e.getAuction(ctx, id)
}

// End transitions active -> ended. The current winner, if any, becomes the
// authoritative winner; a zero-bid auction ends winnerless. The store guard
// makes racing End calls collapse to one transition and one event.
func (e *Engine) End(ctx context.Context, id string) (*auction.Auction, error) {
	now := e.clock()

	a, err := e.getAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusActive {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is %s; only active auctions can end", id, a.Status)
	}

	ok, err := e.store.TransitionStatus(ctx, id, auction.StatusActive, auction.StatusEnded, nil, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is no longer active", id)
	}

	ended, err := e.getAuction(ctx, id)
	if err != nil {
		return nil, err
	}

	ev := &auction.Event{
		Type:      auction.EventEnded,
		AuctionID: id,
		Status:    auction.StatusEnded,
		TotalBids: ended.TotalBids,
		WinnerID:  ended.CurrentWinnerID,
	}
	if ended.TotalBids > 0 {
		amount := ended.CurrentBid
		ev.Amount = &amount
	}
	e.emit(ev)
	return ended, nil
}

// Cancel transitions scheduled -> cancelled. Once an auction has gone
// active, bidding could have occurred and cancellation is refused to keep
// the ledger auditable.
func (e *Engine) Cancel(ctx context.Context, id string) (*auction.Auction, error) {
	now := e.clock()

	a, err := e.getAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusScheduled {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is %s; only scheduled auctions can be cancelled", id, a.Status)
	}

	ok, err := e.store.TransitionStatus(ctx, id, auction.StatusScheduled, auction.StatusCancelled, nil, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auction.NewError(auction.KindInvalidState,
			"auction %s is no longer scheduled", id)
	}

	e.emit(&auction.Event{
		Type:      auction.EventCancelled,
		AuctionID: id,
		Status:    auction.StatusCancelled,
	})
	return e.getAuction(ctx, id)
}

// IsBiddable reports whether a bid arriving at the given instant would pass
// the window check. Display layers must use this rather than comparing
// timestamps themselves.
func (e *Engine) IsBiddable(ctx context.Context, id string, at time.Time) (bool, error) {
	a, err := e.getAuction(ctx, id)
	if err != nil {
		return false, err
	}
	return a.BiddableAt(at), nil
}

// PlaceBid validates and atomically accepts one bid. Two simultaneous bids
// serialize on the store's conditional append: the loser is re-validated
// against the updated auction, so its rejection (typically BidTooLow with
// the new minimum) reflects fresh state, not the snapshot it first read.
func (e *Engine) PlaceBid(ctx context.Context, auctionID string, req auction.BidRequest, requestTime time.Time) (*auction.Auction, *auction.Bid, error) {
	if req.BidderID == "" {
		return nil, nil, auction.NewError(auction.KindValidation, "bidder_id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, nil, auction.NewError(auction.KindValidation, "amount must be positive")
	}

	for attempt := 0; attempt < bidAttempts; attempt++ {
		a, err := e.getAuction(ctx, auctionID)
		if err != nil {
			return nil, nil, err
		}

		if !a.BiddableAt(requestTime) {
			return nil, nil, auction.NewError(auction.KindAuctionNotActive,
				"auction %s is not accepting bids", auctionID)
		}
		if req.BidderID == a.SellerID {
			return nil, nil, auction.NewError(auction.KindSelfBid,
				"sellers cannot bid on their own auction")
		}
		minimum := a.MinimumNextBid()
		if req.Amount.LessThan(minimum) {
			return nil, nil, auction.NewBidTooLow(minimum)
		}

		now := e.clock()
		bid := &auction.Bid{
			ID:        uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  req.BidderID,
			Amount:    req.Amount,
			PlacedAt:  now,
		}

		ok, err := e.store.AppendBid(ctx, bid, a.TotalBids, now)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// Lost the race or the auction just closed; loop re-reads
			// and reclassifies.
			continue
		}

		a.CurrentBid = req.Amount
		a.CurrentWinnerID = req.BidderID
		a.TotalBids++
		a.UpdatedAt = now

		amount := req.Amount
		e.emit(&auction.Event{
			Type:      auction.EventBidUpdate,
			AuctionID: auctionID,
			Amount:    &amount,
			BidderID:  req.BidderID,
			TotalBids: a.TotalBids,
		})
		return a, bid, nil
	}

	return nil, nil, auction.NewError(auction.KindConcurrencyConflict,
		"lost the bid race %d times; retry with fresh state", bidAttempts)
}

func (e *Engine) getAuction(ctx context.Context, id string) (*auction.Auction, error) {
	a, err := e.store.GetAuction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, auction.NewError(auction.KindNotFound, "auction %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// emit queues the event after the state change has committed.
// Fire-and-forget: failures are logged, never surfaced to the operation that
// produced the event, and a full queue never blocks the write path.
func (e *Engine) emit(ev *auction.Event) {
	ev.EventID = uuid.New().String()
	ev.Timestamp = e.clock()

	select {
	case e.events <- ev:
	default:
		e.log.Warn().
			Str("event", ev.Type).
			Str("auction_id", ev.AuctionID).
			Msg("event queue full, dropping event")
	}
}

// dispatch publishes queued events one at a time. The single drain goroutine
// is what keeps delivery in production order per auction; publishing from
// one goroutine per event would let two back-to-back bids arrive swapped.
func (e *Engine) dispatch() {
	for ev := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		for _, p := range e.publishers {
			if err := p.Publish(ctx, ev); err != nil {
				e.log.Warn().Err(err).
					Str("event", ev.Type).
					Str("auction_id", ev.AuctionID).
					Msg("failed to publish event")
			}
		}
		cancel()
	}
}
