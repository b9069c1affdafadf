// Package engine runs the trading loop: fetch the latest series, let the
// strategy speak, size the trade, push it through execution, and record
// what happened. One cycle per symbol per tick; cycles for the same
// symbol never overlap.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/config"
	"github.com/realKyawSwar/igfx-bot-timescale-update/execution"
	"github.com/realKyawSwar/igfx-bot-timescale-update/journal"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

// Notifier gates trades behind a human and reports fills. The Telegram
// notifier satisfies it; nil disables both.
type Notifier interface {
	TradeAlert(ctx context.Context, symbol, direction string, price, stop, target, size float64) bool
	ExecutionNotice(ctx context.Context, symbol, direction string, price, size float64, dealRef string)
}

// Broadcaster pushes cycle events to attached dashboards.
type Broadcaster interface {
	Broadcast([]byte)
}

// CycleResult is one deterministic unit of work for one symbol.
type CycleResult struct {
	Symbol  string
	Skipped string // non-empty when the cycle ended before evaluation
	Signal  strategies.Signal
	Veto    *risk.Veto
	Outcome *execution.Outcome
	Account risk.AccountState
	Err     error
}

type Options struct {
	Broker        broker.Broker
	Strategy      strategies.Strategy
	Risk          *risk.Manager
	Executor      *execution.Executor
	Journal       journal.Journal
	Notifier      Notifier
	Broadcaster   Broadcaster
	Instruments   []market.InstrumentMeta
	Session       config.SessionConfig
	Interval      time.Duration
	HistoryPoints int
	ShutdownGrace time.Duration
	Log           *logrus.Logger
}

type Engine struct {
	broker   broker.Broker
	strategy strategies.Strategy
	risk     *risk.Manager
	exec     *execution.Executor
	journal  journal.Journal
	notifier Notifier
	cast     Broadcaster

	metas    map[string]market.InstrumentMeta
	order    []string // symbols in configured order
	session  config.SessionConfig
	interval time.Duration
	history  int
	grace    time.Duration
	log      *logrus.Logger

	locks map[string]*sync.Mutex
}

func New(opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.HistoryPoints <= 0 {
		opts.HistoryPoints = 400
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}

	e := &Engine{
		broker:   opts.Broker,
		strategy: opts.Strategy,
		risk:     opts.Risk,
		exec:     opts.Executor,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		cast:     opts.Broadcaster,
		metas:    make(map[string]market.InstrumentMeta, len(opts.Instruments)),
		session:  opts.Session,
		interval: opts.Interval,
		history:  opts.HistoryPoints,
		grace:    opts.ShutdownGrace,
		log:      opts.Log,
		locks:    make(map[string]*sync.Mutex, len(opts.Instruments)),
	}
	for _, meta := range opts.Instruments {
		e.metas[meta.Symbol] = meta
		e.order = append(e.order, meta.Symbol)
		e.locks[meta.Symbol] = &sync.Mutex{}
	}

	// Single writer for account state: every terminal order event flows
	// through here and nowhere else.
	e.exec.OnTerminal(e.applyTerminal)

	return e
}

func (e *Engine) applyTerminal(req broker.OrderRequest, res broker.OrderResult) {
	meta, ok := e.metas[req.Symbol]
	if !ok {
		e.log.WithField("symbol", req.Symbol).Warn("terminal event for unknown symbol")
		return
	}

	before := e.risk.Snapshot().Equity
	e.risk.ApplyFill(req, res, meta)
	after := e.risk.Snapshot().Equity

	rec := journal.TradeRecord{
		Reference:  req.Reference,
		DealID:     res.DealID,
		Symbol:     req.Symbol,
		Epic:       req.Epic,
		Side:       req.Side.String(),
		Size:       req.Size,
		Entry:      req.Entry,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		FillPrice:  res.FillPrice,
		Status:     res.Status.String(),
		Detail:     res.Detail,
		Closing:    res.Closing,
		Time:       time.Now().UTC(),
	}
	if res.Closing {
		rec.RealizedPnL = after - before
	}
	if err := e.journal.RecordTrade(rec); err != nil {
		e.log.WithError(err).Warn("trade record failed")
	}
}

// Run ticks until the context is cancelled, then drains in-flight orders.
func (e *Engine) Run(ctx context.Context) error {
	e.log.WithFields(logrus.Fields{
		"symbols":  len(e.order),
		"interval": e.interval,
	}).Info("engine started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.runAll(ctx)
		select {
		case <-ctx.Done():
			e.log.Info("engine stopping, draining in-flight orders")
			return e.exec.Shutdown(e.grace)
		case <-ticker.C:
		}
	}
}

// runAll evaluates every symbol concurrently and waits for the round to
// finish. A symbol still busy from the previous round is skipped by its
// own cycle lock.
func (e *Engine) runAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range e.order {
		meta := e.metas[symbol]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := e.RunCycle(ctx, meta)
			if res.Err != nil {
				e.log.WithError(res.Err).WithField("symbol", res.Symbol).Warn("cycle failed")
			}
		}()
	}
	wg.Wait()
}

// RunCycle performs one fetch → signal → size → execute → persist pass
// for a single instrument. Every failure is folded into the result; a
// bad cycle for one symbol never disturbs the others.
func (e *Engine) RunCycle(ctx context.Context, meta market.InstrumentMeta) (result CycleResult) {
	result = CycleResult{Symbol: meta.Symbol}
	defer func() {
		result.Account = e.risk.Snapshot()
		e.broadcast(result)
	}()

	lock := e.locks[meta.Symbol]
	if lock == nil {
		result.Err = fmt.Errorf("unknown symbol %s", meta.Symbol)
		return result
	}
	if !lock.TryLock() {
		result.Skipped = "previous cycle still running"
		return result
	}
	defer lock.Unlock()

	if !e.session.InSession(time.Now().UTC()) {
		result.Skipped = "outside session window"
		return result
	}

	open, err := e.broker.MarketOpen(ctx, meta)
	if err != nil {
		result.Skipped = "market status unavailable"
		result.Err = err
		return result
	}
	if !open {
		result.Skipped = "market closed"
		return result
	}

	series, err := e.broker.FetchSeries(ctx, meta, e.history)
	if err != nil {
		if broker.IsDataUnavailable(err) {
			result.Skipped = "no price data"
			result.Err = err
			e.log.WithField("symbol", meta.Symbol).Warn("no usable series, cycle skipped")
			return result
		}
		result.Err = err
		return result
	}

	bar, ok := series.Last()
	if !ok {
		result.Skipped = "empty series"
		return result
	}
	if err := e.journal.RecordBar(journal.BarRecord{
		Symbol: meta.Symbol, Time: bar.Time,
		Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close, Volume: bar.Volume,
	}); err != nil {
		e.log.WithError(err).Warn("bar record failed")
	}

	// Manage an open position before looking for a new one.
	if e.checkExit(ctx, meta, bar) {
		result.Skipped = "position closed this cycle"
		e.recordEquity(bar.Time)
		return result
	}

	result.Signal = e.strategy.Evaluate(series)
	if result.Signal.Direction == strategies.Flat {
		e.recordEquity(bar.Time)
		return result
	}
	e.log.WithFields(logrus.Fields{
		"symbol":    meta.Symbol,
		"direction": result.Signal.Direction.String(),
		"reason":    result.Signal.Reason,
		"price":     result.Signal.Price,
	}).Info("signal")

	req, veto := e.risk.SizeOrder(result.Signal, meta)
	if veto != nil {
		result.Veto = veto
		e.log.WithFields(logrus.Fields{
			"symbol": meta.Symbol,
			"reason": string(veto.Reason),
			"detail": veto.Detail,
		}).Info("trade vetoed")
		e.recordEquity(bar.Time)
		return result
	}

	if e.notifier != nil {
		approved := e.notifier.TradeAlert(ctx, meta.Symbol, result.Signal.Direction.String(),
			req.Entry, req.StopLoss, req.TakeProfit, req.Size)
		if !approved {
			result.Skipped = "trade not confirmed"
			e.recordEquity(bar.Time)
			return result
		}
	}

	outcome := e.exec.Execute(ctx, req)
	result.Outcome = &outcome

	if outcome.State == execution.StateFilled && e.notifier != nil {
		e.notifier.ExecutionNotice(ctx, meta.Symbol, result.Signal.Direction.String(),
			outcome.Result.FillPrice, outcome.Result.FillSize, outcome.Result.DealID)
	}

	e.recordEquity(bar.Time)
	return result
}

// checkExit closes an open position whose stop or target was touched by
// the latest bar. Returns true when a closing order went out.
func (e *Engine) checkExit(ctx context.Context, meta market.InstrumentMeta, bar market.Candle) bool {
	pos, ok := e.risk.Position(meta.Symbol)
	if !ok {
		return false
	}

	hit := ""
	if pos.Side == broker.Buy.String() {
		if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
			hit = "stop"
		} else if pos.TakeProfit > 0 && bar.High >= pos.TakeProfit {
			hit = "target"
		}
	} else {
		if pos.StopLoss > 0 && bar.High >= pos.StopLoss {
			hit = "stop"
		} else if pos.TakeProfit > 0 && bar.Low <= pos.TakeProfit {
			hit = "target"
		}
	}
	if hit == "" {
		return false
	}

	e.log.WithFields(logrus.Fields{
		"symbol": meta.Symbol,
		"level":  hit,
	}).Info("exit level touched, closing position")

	closeSide := broker.Sell
	if pos.Side == broker.Sell.String() {
		closeSide = broker.Buy
	}
	req := broker.OrderRequest{
		Symbol:    meta.Symbol,
		Epic:      meta.Epic,
		Side:      closeSide,
		Size:      pos.Size,
		Entry:     bar.Close,
		Closing:   true,
		DealID:    pos.DealID,
		Reference: fmt.Sprintf("IGFX-%s-%d-close", meta.Symbol, bar.Time.UTC().Unix()),
	}
	e.exec.Execute(ctx, req)
	return true
}

func (e *Engine) recordEquity(at time.Time) {
	snap := e.risk.Snapshot()
	err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:       at,
		Equity:     snap.Equity,
		PeakEquity: snap.PeakEquity,
		DailyPnL:   snap.DailyRealizedPnL,
		Drawdown:   e.risk.Drawdown(),
		OpenCount:  len(snap.Positions),
	})
	if err != nil {
		e.log.WithError(err).Warn("equity record failed")
	}
}

func (e *Engine) broadcast(result CycleResult) {
	if e.cast == nil {
		return
	}
	event := map[string]interface{}{
		"symbol":  result.Symbol,
		"equity":  result.Account.Equity,
		"halted":  result.Account.Halted,
		"skipped": result.Skipped,
	}
	if result.Signal.Direction != strategies.Flat {
		event["signal"] = result.Signal.Direction.String()
	}
	if result.Veto != nil {
		event["veto"] = string(result.Veto.Reason)
	}
	if result.Outcome != nil {
		event["order_state"] = result.Outcome.State.String()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	e.cast.Broadcast(payload)
}
