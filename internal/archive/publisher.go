// Package archive moves auction events onto a durable JetStream stream and
// persists them to Postgres as the audit trail.
//
// The stream leg is at-least-once; the consumer's inserts are idempotent on
// event id, so replays are safe.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

const (
	// StreamName holds every auction lifecycle and bid event.
	StreamName = "AUCTION_EVENTS"

	// SubjectPrefix is completed with the auction id, one subject per
	// auction, so future consumers can filter.
	SubjectPrefix = "auction.events."

	// SubjectWildcard matches every auction's events.
	SubjectWildcard = SubjectPrefix + "*"
)

// SubjectFor returns the stream subject for one auction's events.
func SubjectFor(auctionID string) string {
	return SubjectPrefix + auctionID
}

// Publisher writes events to the JetStream stream. Implements
// notifier.Publisher so the engine treats it as one more event sink.
type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Auction lifecycle and bid events for archival",
		Subjects:    []string{SubjectWildcard},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Publisher{conn: conn, js: js}, nil
}

// Publish writes one event to the stream and waits for the server ack.
func (p *Publisher) Publish(ctx context.Context, ev *auction.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, SubjectFor(ev.AuctionID), data); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}
