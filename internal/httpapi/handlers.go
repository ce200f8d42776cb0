// Package httpapi is the HTTP surface of the auction engine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pallab20057477/bidcart-auction/internal/auction"
	"github.com/pallab20057477/bidcart-auction/internal/engine"
)

// Handler contains the HTTP request handlers.
type Handler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewHandler creates the HTTP handler around an engine.
func NewHandler(eng *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{engine: eng, log: log}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions/upcoming", h.ListUpcoming).Methods("GET")
	api.HandleFunc("/auctions/active", h.ListActive).Methods("GET")
	api.HandleFunc("/auctions/scheduled", h.ListScheduled).Methods("GET")
	api.HandleFunc("/auctions/history", h.ListHistory).Methods("GET")
	api.HandleFunc("/auctions/schedule", h.Schedule).Methods("POST")
	api.HandleFunc("/auctions/{id}", h.GetAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}/reschedule", h.Reschedule).Methods("POST")
	api.HandleFunc("/auctions/{id}/start", h.Start).Methods("POST")
	api.HandleFunc("/auctions/{id}/end", h.End).Methods("POST")
	api.HandleFunc("/auctions/{id}/cancel", h.Cancel).Methods("POST")
	api.HandleFunc("/auctions/{id}/bids", h.PlaceBid).Methods("POST")
	api.HandleFunc("/auctions/{id}/bids", h.GetBidHistory).Methods("GET")
	api.HandleFunc("/auctions/{id}/participants", h.GetParticipants).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "auction-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Schedule creates a new scheduled auction.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req auction.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, auction.KindValidation, "invalid request body")
		return
	}

	a, err := h.engine.Schedule(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// Reschedule moves a scheduled auction to a new window.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req auction.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, auction.KindValidation, "invalid request body")
		return
	}

	a, err := h.engine.Reschedule(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Start is the admin start-now override.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// End is the admin end-now override.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.End(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Cancel withdraws a still-scheduled auction.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// PlaceBid handles bid placement. Request time is server-assigned here, at
// the boundary, so the biddable-window check never trusts client clocks.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req auction.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, auction.KindValidation, "invalid request body")
		return
	}

	a, bid, err := h.engine.PlaceBid(r.Context(), mux.Vars(r)["id"], req, h.engine.Now())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"auction": a,
		"bid":     bid,
	})
}

// GetAuction returns one auction summary.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// GetBidHistory returns the annotated ledger, most recent first.
func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	bids, err := h.engine.BidHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

// GetParticipants returns distinct bidders with activity summaries.
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.engine.Participants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, participants)
}

// ListUpcoming lists scheduled auctions with a future start, soonest first.
func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.ListUpcoming)
}

// ListActive lists auctions currently accepting bids.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.ListActive)
}

// ListScheduled lists every auction still in the scheduled state.
func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.ListScheduled)
}

// ListHistory lists terminal auctions.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.ListHistory)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]*auction.Auction, error)) {
	auctions, err := list(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if auctions == nil {
		auctions = []*auction.Auction{}
	}
	respondJSON(w, http.StatusOK, auctions)
}

// errorBody is the wire shape of every error response. MinimumBid is only
// set on bid_too_low so clients can retry without a second round trip.
type errorBody struct {
	Kind       auction.ErrorKind `json:"kind"`
	Error      string            `json:"error"`
	MinimumBid *decimal.Decimal  `json:"minimum_bid,omitempty"`
}

var kindStatus = map[auction.ErrorKind]int{
	auction.KindValidation:          http.StatusBadRequest,
	auction.KindNotFound:            http.StatusNotFound,
	auction.KindInvalidState:        http.StatusConflict,
	auction.KindAuctionNotActive:    http.StatusConflict,
	auction.KindSelfBid:             http.StatusForbidden,
	auction.KindBidTooLow:           http.StatusConflict,
	auction.KindConcurrencyConflict: http.StatusConflict,
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var de *auction.Error
	if !errors.As(err, &de) {
		h.log.Error().Err(err).Msg("internal error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	status, ok := kindStatus[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := errorBody{Kind: de.Kind, Error: de.Message}
	if de.Kind == auction.KindBidTooLow {
		minimum := de.MinimumBid
		body.MinimumBid = &minimum
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, kind auction.ErrorKind, message string) {
	respondJSON(w, statusCode, errorBody{Kind: kind, Error: message})
}

// loggingMiddleware logs every request with method, path and duration.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// corsMiddleware adds permissive CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
