package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind is the stable machine-readable classification carried by every
// domain error. Clients branch on the kind; messages are for humans.
type ErrorKind string

const (
	// KindValidation: malformed parameters. Not retryable without new input.
	KindValidation ErrorKind = "validation_error"
	// KindInvalidState: operation attempted from the wrong lifecycle state.
	// Caller should refresh before retrying.
	KindInvalidState ErrorKind = "invalid_state"
	// KindNotFound: no auction with the given id.
	KindNotFound ErrorKind = "not_found"
	// KindAuctionNotActive: bid arrived outside the biddable window.
	KindAuctionNotActive ErrorKind = "auction_not_active"
	// KindSelfBid: seller bid on their own auction.
	KindSelfBid ErrorKind = "self_bid"
	// KindBidTooLow: amount under the current minimum. Retryable with the
	// MinimumBid returned in the error.
	KindBidTooLow ErrorKind = "bid_too_low"
	// KindConcurrencyConflict: lost the atomic race. Safe to retry with
	// fresh state.
	KindConcurrencyConflict ErrorKind = "concurrency_conflict"
)

// Error is a domain error with a stable kind. BidTooLow errors also carry
// the minimum acceptable amount so callers can retry without another read.
type Error struct {
	Kind       ErrorKind
	Message    string
	MinimumBid decimal.Decimal
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a domain error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewBidTooLow builds the retryable low-bid rejection with the corrected
// minimum included.
func NewBidTooLow(minimum decimal.Decimal) *Error {
	return &Error{
		Kind:       KindBidTooLow,
		Message:    fmt.Sprintf("bid must be at least %s", minimum.String()),
		MinimumBid: minimum,
	}
}

// KindOf extracts the domain kind from err, or "" for non-domain errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
