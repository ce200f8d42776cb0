// Package ws fans auction events out to WebSocket viewers.
//
// Viewers subscribe to one auction (or the admin feed) and receive every
// event published for it while connected. Delivery is at-most-once: a slow
// or disconnected viewer is dropped, and reconciliation happens through the
// query API on reconnect.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// AdminFeed is the subscription key for the all-auctions dashboard feed.
const AdminFeed = "admin"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Hub manages all viewer connections, keyed by the feed they watch.
type Hub struct {
	// feed key (auction id or AdminFeed) -> set of clients
	subscribers sync.Map // map[string]*sync.Map

	register   chan *Client
	unregister chan *Client
	broadcast  chan *feedMessage

	log zerolog.Logger
}

// Client is one viewer connection.
type Client struct {
	ID   string
	Feed string
	Conn *websocket.Conn
	// Buffered so one viewer can lag briefly without blocking the hub.
	Send chan []byte
}

type feedMessage struct {
	feed    string
	payload []byte
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *feedMessage, 256),
		log:        log,
	}
}

// Run processes registration and broadcast traffic. Blocking; run in a
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.broadcastToFeed(msg.feed, msg.payload)
		}
	}
}

// RegisterClient attaches a viewer to its feed.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient detaches a viewer and closes its connection.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Broadcast queues a payload for every viewer of the feed.
func (h *Hub) Broadcast(feed string, payload []byte) {
	h.broadcast <- &feedMessage{feed: feed, payload: payload}
}

// SubscriberCount returns the number of viewers on a feed.
func (h *Hub) SubscriberCount(feed string) int {
	if subs, ok := h.subscribers.Load(feed); ok {
		count := 0
		subs.(*sync.Map).Range(func(_, _ any) bool {
			count++
			return true
		})
		return count
	}
	return 0
}

func (h *Hub) registerClient(client *Client) {
	subs, _ := h.subscribers.LoadOrStore(client.Feed, &sync.Map{})
	subs.(*sync.Map).Store(client, true)

	h.log.Debug().Str("client_id", client.ID).Str("feed", client.Feed).Msg("viewer subscribed")

	go client.writePump()
}

// unregisterClient runs only on the Run goroutine. LoadAndDelete makes it
// idempotent: the read pump and the slow-client eviction in broadcastToFeed
// can both request removal of the same client.
func (h *Hub) unregisterClient(client *Client) {
	subs, ok := h.subscribers.Load(client.Feed)
	if !ok {
		return
	}
	if _, present := subs.(*sync.Map).LoadAndDelete(client); !present {
		return
	}
	close(client.Send)
	client.Conn.Close()

	h.log.Debug().Str("client_id", client.ID).Str("feed", client.Feed).Msg("viewer unsubscribed")
}

func (h *Hub) broadcastToFeed(feed string, payload []byte) {
	subs, ok := h.subscribers.Load(feed)
	if !ok {
		return
	}

	delivered := 0
	subs.(*sync.Map).Range(func(key, _ any) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
			delivered++
		default:
			// Full send buffer means a stalled viewer; drop it so it
			// cannot hold up the rest of the feed. Inline removal —
			// going through the unregister channel from here would
			// block the Run loop on itself.
			h.unregisterClient(client)
		}
		return true
	})

	h.log.Debug().Str("feed", feed).Int("delivered", delivered).Msg("broadcast")
}

// writePump moves payloads from the send buffer to the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pongs are processed and disconnects are
// noticed promptly. Viewers are read-only; inbound data is discarded.
func (c *Client) readPump(unregister chan *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// StartReadPump starts the read pump for this client.
func (c *Client) StartReadPump(h *Hub) {
	go c.readPump(h.unregister)
}
