package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// RedisPublisher publishes events over Redis pub/sub: once to the auction's
// own channel, once to the admin channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies connectivity.
func NewRedisPublisher(addr, password string, db int) (*RedisPublisher, error) {
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
	return &RedisPublisher{client: rdb}, nil
}

// Publish sends the event to the auction channel and mirrors it to the
// admin channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev *auction.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelFor(ev.AuctionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to auction channel: %w", err)
	}
	if err := p.client.Publish(ctx, AdminChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to admin channel: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
