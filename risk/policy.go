// Package risk converts signals into bounded orders and owns the running
// account state: equity, daily P&L, trade counts, open positions and the
// drawdown circuit breaker.
package risk

import "time"

// Policy holds the configured limits. Fractions are 0..1.
type Policy struct {
	RiskFraction   float64 `yaml:"risk_fraction"`    // equity fraction risked per trade, e.g. 0.01
	RRRatio        float64 `yaml:"rr_ratio"`         // take-profit distance as a multiple of stop distance
	DailyLossCap   float64 `yaml:"daily_loss_cap"`   // absolute account currency, e.g. 200
	MaxTradesPerDay int    `yaml:"max_trades_per_day"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"` // halt when drawdown exceeds this, e.g. 0.20
}

// DefaultPolicy mirrors the conservative demo defaults.
func DefaultPolicy() Policy {
	return Policy{
		RiskFraction:    0.01,
		RRRatio:         2.0,
		DailyLossCap:    200,
		MaxTradesPerDay: 5,
		MaxDrawdownPct:  0.20,
	}
}

// Position is one open trade. Owned by AccountState; created on an entry
// fill, removed on a closing fill.
type Position struct {
	Symbol     string
	Side       string
	Size       float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	DealID     string
	Reference  string
	OpenedAt   time.Time
}

// AccountState is the single mutable account record. It is owned
// exclusively by the Manager and only ever changes through SizeOrder
// bookkeeping and ApplyFill.
type AccountState struct {
	Equity           float64
	PeakEquity       float64
	DailyRealizedPnL float64
	TradeCountToday  int
	LastResetDate    string // YYYY-MM-DD of the trading day counters belong to
	Positions        map[string]Position
	Halted           bool
}

// Reason codes carried by a Veto.
type Reason string

const (
	ReasonDailyLossCap      Reason = "daily_loss_cap"
	ReasonMaxTrades         Reason = "max_trades"
	ReasonZeroSize          Reason = "zero_size"
	ReasonDuplicatePosition Reason = "duplicate_position"
	ReasonDrawdownHalt      Reason = "drawdown_halt"
)

// Veto is the Risk Manager's refusal to convert a signal into an order.
type Veto struct {
	Reason Reason
	Detail string
}

func (v Veto) String() string {
	return string(v.Reason) + ": " + v.Detail
}
