// Package sim is a deterministic in-memory broker used by backtests and
// tests. Fills, rejections and transport faults are scripted, and
// duplicate deal references collapse to the original fill the way the
// real venue does.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/pkg/id"
)

type Engine struct {
	mu sync.Mutex

	series map[string]*market.Series // keyed by epic
	price  map[string]float64
	open   map[string]bool

	// failure script
	transportFaults  int  // next N submissions fail with TransportError
	executeOnFault   bool // the faulted submission still executes venue-side
	rejectNextReason string

	// submitted orders keyed by reference; duplicates collapse here
	results map[string]broker.OrderResult

	submissions int
}

func New() *Engine {
	return &Engine{
		series:  make(map[string]*market.Series),
		price:   make(map[string]float64),
		open:    make(map[string]bool),
		results: make(map[string]broker.OrderResult),
	}
}

// SetSeries scripts the history returned for an epic and moves the
// current price to its last close.
func (e *Engine) SetSeries(epic string, s *market.Series) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.series[epic] = s
	e.open[epic] = true
	if last, ok := s.Last(); ok {
		e.price[epic] = last.Close
	}
}

// SetPrice moves the current fill price for an epic.
func (e *Engine) SetPrice(epic string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.price[epic] = price
	e.open[epic] = true
}

// SetMarketOpen scripts the market-hours answer for an epic.
func (e *Engine) SetMarketOpen(epic string, open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open[epic] = open
}

// FailTransport makes the next n submissions fail with a transport error.
// If executeAnyway is set, the faulted submission still executes on the
// venue side, so a retried reference must collapse to one fill.
func (e *Engine) FailTransport(n int, executeAnyway bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transportFaults = n
	e.executeOnFault = executeAnyway
}

// RejectNext makes the next submission fail with a business rejection.
func (e *Engine) RejectNext(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejectNextReason = reason
}

// Submissions returns how many SubmitOrder calls reached the engine.
func (e *Engine) Submissions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submissions
}

func (e *Engine) FetchSeries(ctx context.Context, meta market.InstrumentMeta, count int) (*market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, &broker.TransportError{Op: "fetch series", Err: err}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.series[meta.Epic]
	if !ok || s.Len() == 0 {
		return nil, &broker.DataUnavailableError{Epic: meta.Epic, Err: fmt.Errorf("no scripted series")}
	}
	if count > 0 && s.Len() > count {
		return &market.Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[s.Len()-count:]}, nil
	}
	return s, nil
}

func (e *Engine) MarketOpen(ctx context.Context, meta market.InstrumentMeta) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open[meta.Epic], nil
}

func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderResult{Reference: req.Reference, Status: broker.StatusError, Detail: err.Error()},
			&broker.TransportError{Op: "submit", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submissions++

	// Duplicate reference: the venue already executed this logical order.
	if res, ok := e.results[req.Reference]; ok {
		return res, nil
	}

	if e.transportFaults > 0 {
		e.transportFaults--
		if e.executeOnFault {
			// The order reached the venue; only the reply was lost.
			e.results[req.Reference] = e.fillLocked(req)
		}
		return broker.OrderResult{Reference: req.Reference, Status: broker.StatusError, Detail: "connection reset", Closing: req.Closing},
			&broker.TransportError{Op: "submit", Err: fmt.Errorf("connection reset")}
	}

	if e.rejectNextReason != "" {
		reason := e.rejectNextReason
		e.rejectNextReason = ""
		res := broker.OrderResult{Reference: req.Reference, Status: broker.StatusRejected, Detail: reason, Closing: req.Closing}
		e.results[req.Reference] = res
		return res, &broker.RejectedError{Reason: reason}
	}

	res := e.fillLocked(req)
	e.results[req.Reference] = res
	return res, nil
}

func (e *Engine) fillLocked(req broker.OrderRequest) broker.OrderResult {
	return broker.OrderResult{
		Reference: req.Reference,
		DealID:    id.New(),
		Status:    broker.StatusFilled,
		FillPrice: e.price[req.Epic],
		FillSize:  req.Size,
		Closing:   req.Closing,
	}
}
