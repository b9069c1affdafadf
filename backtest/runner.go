// Package backtest replays a historical series bar-by-bar through the
// same engine cycle that trades live, against the in-memory venue. What
// fires in a backtest fires identically in production.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker/sim"
	"github.com/realKyawSwar/igfx-bot-timescale-update/engine"
	"github.com/realKyawSwar/igfx-bot-timescale-update/execution"
	"github.com/realKyawSwar/igfx-bot-timescale-update/journal"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

// Result summarizes one replay.
type Result struct {
	Bars        int
	Signals     int
	Trades      int
	Wins        int
	Losses      int
	StartEquity float64
	FinalEquity float64
	MaxDrawdown float64
}

func (r Result) String() string {
	return fmt.Sprintf("bars=%d signals=%d trades=%d wins=%d losses=%d equity %.2f -> %.2f maxDD %.2f%%",
		r.Bars, r.Signals, r.Trades, r.Wins, r.Losses, r.StartEquity, r.FinalEquity, 100*r.MaxDrawdown)
}

type Runner struct {
	strategy strategies.Strategy
	policy   risk.Policy
	meta     market.InstrumentMeta
	journal  journal.Journal
	log      *logrus.Logger
	warmup   int
}

func NewRunner(strategy strategies.Strategy, policy risk.Policy, meta market.InstrumentMeta, jnl journal.Journal, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	if jnl == nil {
		jnl = journal.Nop{}
	}
	return &Runner{
		strategy: strategy,
		policy:   policy,
		meta:     meta,
		journal:  jnl,
		log:      log,
		warmup:   2,
	}
}

// Run replays the series one bar at a time. Each step exposes only the
// prefix up to that bar, so the strategy can never see the future.
func (r *Runner) Run(ctx context.Context, series *market.Series, startEquity float64) (Result, error) {
	if series.Len() < r.warmup {
		return Result{}, fmt.Errorf("series too short: %d bars", series.Len())
	}

	venue := sim.New()
	manager := risk.NewManager(r.policy, startEquity, r.log)
	exec := execution.NewExecutor(venue, execution.Config{
		MaxAttempts:    1,
		BackoffBase:    time.Millisecond,
		BackoffCap:     time.Millisecond,
		AttemptTimeout: time.Second,
	}, r.log)

	eng := engine.New(engine.Options{
		Broker:      venue,
		Strategy:    r.strategy,
		Risk:        manager,
		Executor:    exec,
		Journal:     r.journal,
		Instruments: []market.InstrumentMeta{r.meta},
		Interval:    time.Minute,
		Log:         r.log,
	})

	result := Result{StartEquity: startEquity}

	step := func() {
		before := manager.Snapshot().Equity
		cycle := eng.RunCycle(ctx, r.meta)

		if cycle.Signal.Direction != strategies.Flat {
			result.Signals++
		}
		if cycle.Outcome != nil && cycle.Outcome.State == execution.StateFilled && !cycle.Outcome.Result.Closing {
			result.Trades++
		}
		after := manager.Snapshot().Equity
		switch {
		case after > before:
			result.Wins++
		case after < before:
			result.Losses++
		}
		if dd := manager.Drawdown(); dd > result.MaxDrawdown {
			result.MaxDrawdown = dd
		}
	}

	for i := r.warmup; i <= series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		venue.SetSeries(r.meta.Epic, series.Slice(i))
		step()
		result.Bars++
	}

	// Flatten any position still open so the equity figure is realized,
	// not marked to a phantom quote.
	if _, ok := manager.Position(r.meta.Symbol); ok {
		r.log.Info("closing open position at end of series")
		venue.SetSeries(r.meta.Epic, touchedSeries(series))
		step()
	}

	result.FinalEquity = manager.Snapshot().Equity
	r.log.Info(result.String())
	return result, nil
}

// touchedSeries appends one synthetic bar that spans every possible exit
// level, filled at the final close, so the engine's own exit path closes
// the position.
func touchedSeries(series *market.Series) *market.Series {
	last, _ := series.Last()
	out := &market.Series{Symbol: series.Symbol, Timeframe: series.Timeframe}
	for _, c := range series.Candles {
		out.Append(c)
	}
	out.Append(market.Candle{
		Symbol: last.Symbol,
		Time:   last.Time.Add(time.Second),
		Open:   last.Close,
		High:   last.Close * 2,
		Low:    0.0000001,
		Close:  last.Close,
		Volume: last.Volume,
	})
	return out
}
