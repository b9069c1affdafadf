package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
	"github.com/sirupsen/logrus"
)

// Manager serializes all account mutations behind one mutex. Per-symbol
// cycles may run concurrently; only the terminal order path calls into
// ApplyFill, so the single-writer discipline holds.
type Manager struct {
	mu     sync.Mutex
	policy Policy
	state  AccountState
	log    *logrus.Logger
}

func NewManager(policy Policy, startEquity float64, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		policy: policy,
		log:    log,
		state: AccountState{
			Equity:     startEquity,
			PeakEquity: startEquity,
			Positions:  make(map[string]Position),
		},
	}
}

// tradingDay formats the calendar day the counters belong to. Day
// boundaries come from bar timestamps, not wall clocks, so replays are
// deterministic.
func tradingDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (m *Manager) resetIfNewDayLocked(barTime time.Time) {
	day := tradingDay(barTime)
	if m.state.LastResetDate == day {
		return
	}
	if m.state.LastResetDate != "" {
		m.log.WithFields(logrus.Fields{
			"day":        day,
			"prev_pnl":   m.state.DailyRealizedPnL,
			"prev_count": m.state.TradeCountToday,
		}).Info("trading day boundary: daily counters reset")
	}
	m.state.DailyRealizedPnL = 0
	m.state.TradeCountToday = 0
	m.state.LastResetDate = day
}

// SizeOrder converts a directional signal into a bounded order request,
// or a veto with a reason code. Size comes from the fixed fractional-risk
// rule: equity × risk fraction / (stop distance in pips × pip value).
func (m *Manager) SizeOrder(sig strategies.Signal, meta market.InstrumentMeta) (broker.OrderRequest, *Veto) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked(sig.Time)

	if m.state.Halted {
		return broker.OrderRequest{}, &Veto{
			Reason: ReasonDrawdownHalt,
			Detail: fmt.Sprintf("drawdown %.1f%% breached limit %.1f%%; trading halted until cleared",
				100*m.drawdownLocked(), 100*m.policy.MaxDrawdownPct),
		}
	}
	if m.policy.DailyLossCap > 0 && m.state.DailyRealizedPnL <= -m.policy.DailyLossCap {
		return broker.OrderRequest{}, &Veto{
			Reason: ReasonDailyLossCap,
			Detail: fmt.Sprintf("daily realized %.2f breached cap %.2f", m.state.DailyRealizedPnL, m.policy.DailyLossCap),
		}
	}
	if m.policy.MaxTradesPerDay > 0 && m.state.TradeCountToday >= m.policy.MaxTradesPerDay {
		return broker.OrderRequest{}, &Veto{
			Reason: ReasonMaxTrades,
			Detail: fmt.Sprintf("%d trades today >= max %d", m.state.TradeCountToday, m.policy.MaxTradesPerDay),
		}
	}
	if _, exists := m.state.Positions[sig.Symbol]; exists {
		return broker.OrderRequest{}, &Veto{
			Reason: ReasonDuplicatePosition,
			Detail: "open position exists for " + sig.Symbol,
		}
	}

	entry := sig.Price
	stop, target := m.levels(sig, meta, entry)

	stopPips := math.Abs(entry-stop) / meta.PipSize
	if stopPips <= 0 {
		return broker.OrderRequest{}, &Veto{Reason: ReasonZeroSize, Detail: "zero stop distance"}
	}

	riskAmount := m.state.Equity * m.policy.RiskFraction
	size := riskAmount / (stopPips * meta.PipValue)
	if meta.LotStep > 0 {
		// epsilon absorbs float division noise so 0.2/0.01 floors to 20
		size = math.Floor(size/meta.LotStep+1e-9) * meta.LotStep
	}
	if size <= 0 {
		return broker.OrderRequest{}, &Veto{
			Reason: ReasonZeroSize,
			Detail: fmt.Sprintf("size rounded to zero (risk %.2f over %.0f pips)", riskAmount, stopPips),
		}
	}

	side := broker.Buy
	if sig.Direction == strategies.Short {
		side = broker.Sell
	}

	return broker.OrderRequest{
		Symbol:     sig.Symbol,
		Epic:       meta.Epic,
		Side:       side,
		Size:       size,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		// Unique per (symbol, signal timestamp): a retried submission
		// reuses it, a later signal gets a fresh one.
		Reference: fmt.Sprintf("IGFX-%s-%d", sig.Symbol, sig.Time.UTC().Unix()),
	}, nil
}

// levels derives stop and target prices, preferring the strategy's hints
// when they sit on the correct side of entry.
func (m *Manager) levels(sig strategies.Signal, meta market.InstrumentMeta, entry float64) (stop, target float64) {
	dist := meta.StopDistancePips * meta.PipSize
	rr := m.policy.RRRatio
	if rr <= 0 {
		rr = 2.0
	}

	if sig.Direction == strategies.Short {
		stop = entry + dist
		if sig.StopHint > entry {
			stop = sig.StopHint
		}
		target = entry - (stop-entry)*rr
		if sig.TargetHint > 0 && sig.TargetHint < entry {
			target = sig.TargetHint
		}
		return stop, target
	}

	stop = entry - dist
	if sig.StopHint > 0 && sig.StopHint < entry {
		stop = sig.StopHint
	}
	target = entry + (entry-stop)*rr
	if sig.TargetHint > entry {
		target = sig.TargetHint
	}
	return stop, target
}

// ApplyFill folds a terminal order result into the account. Entry fills
// open a position and count toward the daily trade cap; closing fills
// realize P&L, move equity and peak equity, and drop the position.
func (m *Manager) ApplyFill(req broker.OrderRequest, res broker.OrderResult, meta market.InstrumentMeta) {
	if res.Status != broker.StatusFilled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !res.Closing {
		m.state.Positions[req.Symbol] = Position{
			Symbol:     req.Symbol,
			Side:       req.Side.String(),
			Size:       res.FillSize,
			EntryPrice: res.FillPrice,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
			DealID:     res.DealID,
			Reference:  res.Reference,
			OpenedAt:   time.Now().UTC(),
		}
		m.state.TradeCountToday++
		m.log.WithFields(logrus.Fields{
			"symbol": req.Symbol,
			"side":   req.Side.String(),
			"size":   res.FillSize,
			"price":  res.FillPrice,
		}).Info("position opened")
		return
	}

	pos, ok := m.state.Positions[req.Symbol]
	if !ok {
		m.log.WithField("symbol", req.Symbol).Warn("closing fill for unknown position")
		return
	}

	move := res.FillPrice - pos.EntryPrice
	if pos.Side == broker.Sell.String() {
		move = -move
	}
	pnl := move / meta.PipSize * meta.PipValue * pos.Size

	m.state.DailyRealizedPnL += pnl
	m.state.Equity += pnl
	if m.state.Equity > m.state.PeakEquity {
		m.state.PeakEquity = m.state.Equity
	}
	delete(m.state.Positions, req.Symbol)

	m.log.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"pnl":    pnl,
		"equity": m.state.Equity,
	}).Info("position closed")

	if dd := m.drawdownLocked(); m.policy.MaxDrawdownPct > 0 && dd >= m.policy.MaxDrawdownPct && !m.state.Halted {
		m.state.Halted = true
		m.log.WithField("drawdown", dd).Warn("max drawdown breached: trading halted")
	}
}

func (m *Manager) drawdownLocked() float64 {
	if m.state.PeakEquity <= 0 {
		return 0
	}
	return 1 - m.state.Equity/m.state.PeakEquity
}

// Drawdown reports the current shortfall from peak equity, 0..1.
func (m *Manager) Drawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawdownLocked()
}

// ClearHalt re-enables sizing after a drawdown halt. Manual operation.
func (m *Manager) ClearHalt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Halted = false
	m.log.Info("drawdown halt cleared")
}

// Position returns the open position for a symbol, if any.
func (m *Manager) Position(symbol string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.state.Positions[symbol]
	return pos, ok
}

// Snapshot returns a deep copy for dashboards and persistence; callers
// never see the live map.
func (m *Manager) Snapshot() AccountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.state
	cp.Positions = make(map[string]Position, len(m.state.Positions))
	for k, v := range m.state.Positions {
		cp.Positions[k] = v
	}
	return cp
}
