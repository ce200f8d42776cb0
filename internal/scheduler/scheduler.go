// Package scheduler drives time-based auction transitions.
//
// A ticker sweep starts every scheduled auction whose start time has passed
// and ends every active auction whose end time has passed. The sweep holds
// no state of its own: transitions go through the engine and its store-level
// guards, so extra replicas running the same sweep are harmless — whoever
// applies the transition first wins and the rest see an ignorable
// invalid-state rejection.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
	"github.com/pallab20057477/bidcart-auction/internal/engine"
	"github.com/pallab20057477/bidcart-auction/internal/store"
)

// Scheduler periodically sweeps due auctions.
type Scheduler struct {
	engine   *engine.Engine
	store    store.Store
	interval time.Duration
	log      zerolog.Logger
}

// New creates a Scheduler sweeping at the given interval.
func New(eng *engine.Engine, st store.Store, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:   eng,
		store:    st,
		interval: interval,
		log:      log,
	}
}

// Run sweeps until the context is cancelled. Blocking; run in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one scan-and-transition pass. A failure on one auction is
// logged and skipped; the auction stays due and is retried next tick.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.engine.Now()

	due, err := s.store.DueScheduled(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list due scheduled auctions")
	} else {
		for _, a := range due {
			if _, err := s.engine.Start(ctx, a.ID); err != nil {
				s.logTransitionErr(err, a.ID, "start")
				continue
			}
			s.log.Info().Str("auction_id", a.ID).Time("start_time", a.StartTime).Msg("auction started")
		}
	}

	closing, err := s.store.DueActive(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list due active auctions")
		return
	}
	for _, a := range closing {
		ended, err := s.engine.End(ctx, a.ID)
		if err != nil {
			s.logTransitionErr(err, a.ID, "end")
			continue
		}
		s.log.Info().
			Str("auction_id", a.ID).
			Str("winner_id", ended.CurrentWinnerID).
			Int("total_bids", ended.TotalBids).
			Msg("auction ended")
	}
}

// logTransitionErr drops invalid-state rejections to debug level: they mean
// another sweep or an admin already applied the transition.
func (s *Scheduler) logTransitionErr(err error, auctionID, op string) {
	if auction.IsKind(err, auction.KindInvalidState) {
		s.log.Debug().Str("auction_id", auctionID).Str("op", op).Msg("transition already applied")
		return
	}
	s.log.Error().Err(err).Str("auction_id", auctionID).Str("op", op).Msg("sweep transition failed")
}
