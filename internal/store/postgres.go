package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// InitSchema creates the auction tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id VARCHAR(64) PRIMARY KEY,
		listing_id VARCHAR(64) NOT NULL,
		seller_id VARCHAR(64) NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		starting_bid DECIMAL(12, 2) NOT NULL,
		min_bid_increment DECIMAL(12, 2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
		current_bid DECIMAL(12, 2) NOT NULL,
		current_winner_id VARCHAR(64) NOT NULL DEFAULT '',
		total_bids INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(64) PRIMARY KEY,
		auction_id VARCHAR(64) NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
		bidder_id VARCHAR(64) NOT NULL,
		amount DECIMAL(12, 2) NOT NULL,
		placed_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auction_events (
		event_id VARCHAR(64) PRIMARY KEY,
		auction_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		payload JSONB NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_listing_id ON auctions(listing_id);
	CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_id ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_events_auction_id ON auction_events(auction_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const auctionColumns = `id, listing_id, seller_id, title, start_time, end_time,
	starting_bid, min_bid_increment, status, current_bid, current_winner_id,
	total_bids, created_at, updated_at`

func scanAuction(row interface{ Scan(...any) error }) (*auction.Auction, error) {
	a := &auction.Auction{}
	err := row.Scan(
		&a.ID, &a.ListingID, &a.SellerID, &a.Title, &a.StartTime, &a.EndTime,
		&a.StartingBid, &a.MinBidIncrement, &a.Status, &a.CurrentBid,
		&a.CurrentWinnerID, &a.TotalBids, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAuction inserts the auction unless the listing already has a
// scheduled or active one. The NOT EXISTS guard runs in the same statement
// so two concurrent schedules for one listing cannot both succeed.
func (s *PostgresStore) CreateAuction(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		WHERE NOT EXISTS (
			SELECT 1 FROM auctions
			WHERE listing_id = $2 AND status IN ('scheduled', 'active')
		)
	`
	res, err := s.db.ExecContext(ctx, query,
		a.ID, a.ListingID, a.SellerID, a.Title, a.StartTime, a.EndTime,
		a.StartingBid, a.MinBidIncrement, a.Status, a.CurrentBid,
		a.CurrentWinnerID, a.TotalBids, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrListingBusy
	}
	return nil
}

func (s *PostgresStore) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, id string, startTime, endTime time.Time, startingBid, minIncrement decimal.Decimal, now time.Time) (bool, error) {
	query := `
		UPDATE auctions
		SET start_time = $1, end_time = $2, starting_bid = $3,
		    min_bid_increment = $4, current_bid = $3, updated_at = $5
		WHERE id = $6 AND status = 'scheduled'
	`
	res, err := s.db.ExecContext(ctx, query, startTime, endTime, startingBid, minIncrement, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to reschedule auction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// TransitionStatus applies the status change only while the auction is still
// in the expected prior status. Racing schedulers or admin calls collapse to
// a single winner; everyone else sees zero rows affected.
func (s *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to auction.Status, newStartTime *time.Time, now time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if newStartTime != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE auctions SET status = $1, start_time = $2, updated_at = $3
			WHERE id = $4 AND status = $5`,
			to, *newStartTime, now, id, from)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE auctions SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4`,
			to, now, id, from)
	}
	if err != nil {
		return false, fmt.Errorf("failed to transition auction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// AppendBid performs the atomic accept: the summary update is guarded on the
// auction still being active with an unchanged accepted-bid count, and the
// ledger insert commits in the same transaction. A concurrent acceptance
// bumps total_bids first, so the loser's guard fails and nothing is written.
func (s *PostgresStore) AppendBid(ctx context.Context, bid *auction.Bid, expectTotalBids int, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_bid = $1, current_winner_id = $2,
		    total_bids = total_bids + 1, updated_at = $3
		WHERE id = $4 AND status = 'active' AND total_bids = $5`,
		bid.Amount, bid.BidderID, now, bid.AuctionID, expectTotalBids)
	if err != nil {
		return false, fmt.Errorf("failed to update auction summary: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit bid: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) listAuctions(ctx context.Context, where, order string, args ...any) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE ` + where + ` ORDER BY ` + order
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var out []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DueScheduled(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status = 'scheduled' AND start_time <= $1`, `start_time ASC`, now)
}

func (s *PostgresStore) DueActive(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status = 'active' AND end_time <= $1`, `end_time ASC`, now)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status = 'active'`, `end_time ASC`)
}

func (s *PostgresStore) ListUpcoming(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status = 'scheduled' AND start_time > $1`, `start_time ASC`, now)
}

func (s *PostgresStore) ListScheduled(ctx context.Context) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status = 'scheduled'`, `start_time ASC`)
}

func (s *PostgresStore) ListHistory(ctx context.Context) ([]*auction.Auction, error) {
	return s.listAuctions(ctx, `status IN ('ended', 'cancelled')`, `updated_at DESC`)
}

func (s *PostgresStore) BidHistory(ctx context.Context, auctionID string) ([]*auction.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, bidder_id, amount, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY placed_at DESC, amount DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*auction.Bid
	for rows.Next() {
		b := &auction.Bid{}
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *PostgresStore) Participants(ctx context.Context, auctionID string) ([]*auction.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bidder_id, COUNT(*), MAX(amount)
		FROM bids
		WHERE auction_id = $1
		GROUP BY bidder_id
		ORDER BY MAX(amount) DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var out []*auction.Participant
	for rows.Next() {
		p := &auction.Participant{}
		if err := rows.Scan(&p.BidderID, &p.BidCount, &p.HighestBid); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertEvent archives one lifecycle or bid event. Inserts are idempotent on
// event id so the at-least-once JetStream consumer can replay safely.
func (s *PostgresStore) InsertEvent(ctx context.Context, ev *auction.Event, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auction_events (event_id, auction_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.AuctionID, ev.Type, payload, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
