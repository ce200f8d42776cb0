package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
	"github.com/pallab20057477/bidcart-auction/internal/store"
)

const consumerName = "auction-archiver"

// Consumer pulls events off the stream and persists them to Postgres.
type Consumer struct {
	conn *nats.Conn
	js   jetstream.JetStream
	db   *store.PostgresStore
	log  zerolog.Logger
}

// NewConsumer connects to NATS for consuming the archival stream.
func NewConsumer(natsURL string, db *store.PostgresStore, log zerolog.Logger) (*Consumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Consumer{conn: conn, js: js, db: db, log: log}, nil
}

// Run consumes until the context is cancelled. Blocking; run in a goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: SubjectWildcard,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sub, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer sub.Stop()

	c.log.Info().Str("stream", StreamName).Msg("archiving auction events")
	<-ctx.Done()
	return nil
}

// handleMessage persists a single event. Unparsable messages are acked and
// dropped; persistence failures leave the message unacked for redelivery.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var ev auction.Event
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to unmarshal event")
		msg.Ack()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.db.InsertEvent(dbCtx, &ev, msg.Data()); err != nil {
		c.log.Error().Err(err).Str("event_id", ev.EventID).Msg("failed to persist event")
		return
	}

	c.log.Debug().
		Str("event_id", ev.EventID).
		Str("type", ev.Type).
		Str("auction_id", ev.AuctionID).
		Msg("archived event")
	msg.Ack()
}

// Close closes the NATS connection.
func (c *Consumer) Close() error {
	c.conn.Close()
	return nil
}
