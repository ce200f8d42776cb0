package ws

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin browsers connect directly; origin policy is enforced
	// upstream at the edge.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections into hub subscriptions.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

// NewHandler creates a WebSocket handler around a hub.
func NewHandler(hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

// SetupRoutes configures the WebSocket routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/auctions/{id}", h.HandleAuctionFeed)
	router.HandleFunc("/ws/admin", h.HandleAdminFeed)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/auctions/{id}", h.GetStats).Methods("GET")

	return router
}

// HandleAuctionFeed subscribes a viewer to one auction's events.
func (h *Handler) HandleAuctionFeed(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]
	if auctionID == "" {
		http.Error(w, "auction id is required", http.StatusBadRequest)
		return
	}
	h.subscribe(w, r, auctionID)
}

// HandleAdminFeed subscribes a dashboard to every auction's events.
func (h *Handler) HandleAdminFeed(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, AdminFeed)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request, feed string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Feed: feed,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}

	// Queued before registration: once the hub owns the client its Send
	// channel may be closed at any time.
	welcome := fmt.Sprintf(`{"type":"connected","feed":%q,"client_id":%q}`, feed, client.ID)
	client.Send <- []byte(welcome)

	h.hub.RegisterClient(client)
	client.StartReadPump(h.hub)
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"broadcast"}`)
}

// GetStats returns the subscriber count for one auction feed.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]
	count := h.hub.SubscriberCount(auctionID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"auction_id":%q,"subscribers":%d}`, auctionID, count)
}
