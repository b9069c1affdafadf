// Package broker defines the contract between the trading core and any
// order/data venue: the IG REST adapter in production, the sim engine in
// backtests and tests.
package broker

import (
	"context"

	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// Side is the order direction.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// OrderStatus is the terminal (or transient) state reported for an order.
type OrderStatus int

const (
	StatusAccepted OrderStatus = iota
	StatusFilled
	StatusRejected
	StatusCancelled
	StatusError
)

func (s OrderStatus) String() string {
	switch s {
	case StatusAccepted:
		return "ACCEPTED"
	case StatusFilled:
		return "FILLED"
	case StatusRejected:
		return "REJECTED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "ERROR"
	}
}

// OrderRequest is a fully sized order. Reference is the client-generated
// idempotency key: retries reuse it verbatim so the venue can collapse a
// duplicate submission instead of doubling the position.
type OrderRequest struct {
	Symbol     string
	Epic       string
	Side       Side
	Size       float64
	Entry      float64 // 0 means market
	StopLoss   float64
	TakeProfit float64
	Reference  string

	// Closing requests unwind the position identified by DealID.
	Closing bool
	DealID  string
}

// OrderResult is produced once per terminal transition. Immutable after
// Status reaches Filled/Rejected/Cancelled.
type OrderResult struct {
	Reference string
	DealID    string
	Status    OrderStatus
	FillPrice float64
	FillSize  float64
	Detail    string
	Closing   bool
}

// Broker is the venue adapter consumed by the execution state machine and
// the cycle scheduler. Implementations must honor ctx deadlines on every
// call; SubmitOrder in particular may block for the duration of a network
// round trip.
type Broker interface {
	// FetchSeries returns the most recent count bars for the instrument.
	// An empty or unreachable history yields a DataUnavailableError.
	FetchSeries(ctx context.Context, meta market.InstrumentMeta, count int) (*market.Series, error)

	// SubmitOrder places (or, when req.Closing, unwinds) an order.
	// Business-rule rejections come back as *RejectedError; transport
	// failures as *TransportError.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// MarketOpen reports whether the instrument is currently tradeable.
	MarketOpen(ctx context.Context, meta market.InstrumentMeta) (bool, error)
}
