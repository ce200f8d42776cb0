package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is one pub/sub delivery routed to a feed. Feed is the auction id
// for per-auction channels or "admin" for the dashboard channel.
type Message struct {
	Feed    string
	Payload []byte
}

// Subscriber consumes the auction event channels over Redis pub/sub.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewSubscriber connects to Redis and verifies connectivity.
func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Subscriber{client: rdb}, nil
}

// Subscribe opens a pattern subscription over every auction channel, the
// admin channel included.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, ChannelPattern)
	return nil
}

// Listen forwards deliveries to out until the context is cancelled.
// Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			feed := AuctionIDFromChannel(msg.Channel)
			if msg.Channel == AdminChannel {
				feed = "admin"
			}
			if feed == "" {
				continue
			}
			out <- &Message{Feed: feed, Payload: []byte(msg.Payload)}
		}
	}
}

// Close closes the subscription and the connection.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
