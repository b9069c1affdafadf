// Package journal persists what the bot saw and did: every bar consumed,
// every terminal order event, and periodic equity snapshots. Sinks are
// interchangeable; the engine writes through the interface and never
// cares where the rows land.
package journal

import "time"

// TradeRecord is one terminal order event, keyed by the deal reference.
type TradeRecord struct {
	Reference   string
	DealID      string
	Symbol      string
	Epic        string
	Side        string
	Size        float64
	Entry       float64
	StopLoss    float64
	TakeProfit  float64
	FillPrice   float64
	RealizedPnL float64
	Status      string
	Detail      string
	Closing     bool
	Time        time.Time
}

// EquitySnapshot is the account curve sampled once per cycle.
type EquitySnapshot struct {
	Time       time.Time
	Equity     float64
	PeakEquity float64
	DailyPnL   float64
	Drawdown   float64
	OpenCount  int
}

// BarRecord is one consumed OHLCV observation.
type BarRecord struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type Journal interface {
	RecordBar(BarRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used when no sink is configured.
type Nop struct{}

func (Nop) RecordBar(BarRecord) error         { return nil }
func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
