// Package notifier fans auction events out to connected viewers.
//
// Delivery is best-effort, at-most-once: a viewer disconnected at publish
// time reconciles through the query endpoints on reconnect. Per-auction
// ordering follows publish order.
package notifier

import (
	"context"
	"strings"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
)

// Channel naming. Each auction has its own channel; every event is mirrored
// to the admin channel for dashboards.
const (
	channelPrefix = "auction_events:"
	AdminChannel  = channelPrefix + "admin"

	// ChannelPattern matches every auction channel, admin included.
	ChannelPattern = channelPrefix + "*"
)

// ChannelFor returns the pub/sub channel for one auction's viewers.
func ChannelFor(auctionID string) string {
	return channelPrefix + auctionID
}

// AuctionIDFromChannel recovers the auction id from a channel name.
// Returns "" for the admin channel or anything unrecognised.
func AuctionIDFromChannel(channel string) string {
	if channel == AdminChannel || !strings.HasPrefix(channel, channelPrefix) {
		return ""
	}
	return channel[len(channelPrefix):]
}

// Publisher delivers events to subscribed viewers. Implementations must not
// be used inside the bid-acceptance transaction; the engine publishes only
// after commit.
type Publisher interface {
	Publish(ctx context.Context, ev *auction.Event) error
	Close() error
}
