package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker/sim"
	"github.com/realKyawSwar/igfx-bot-timescale-update/config"
	"github.com/realKyawSwar/igfx-bot-timescale-update/execution"
	"github.com/realKyawSwar/igfx-bot-timescale-update/journal"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

var engineMeta = market.InstrumentMeta{
	Symbol:           "EURUSD",
	Epic:             "CS.D.EURUSD.MINI.IP",
	PipSize:          0.0001,
	PipValue:         10,
	LotStep:          0.01,
	StopDistancePips: 10,
	Timeframe:        market.M5,
}

type memJournal struct {
	bars     []journal.BarRecord
	trades   []journal.TradeRecord
	equities []journal.EquitySnapshot
}

func (m *memJournal) RecordBar(b journal.BarRecord) error         { m.bars = append(m.bars, b); return nil }
func (m *memJournal) RecordTrade(t journal.TradeRecord) error     { m.trades = append(m.trades, t); return nil }
func (m *memJournal) RecordEquity(e journal.EquitySnapshot) error { m.equities = append(m.equities, e); return nil }
func (m *memJournal) Close() error                                { return nil }

type stubNotifier struct {
	approve bool
	alerts  int
	notices int
}

func (s *stubNotifier) TradeAlert(ctx context.Context, symbol, direction string, price, stop, target, size float64) bool {
	s.alerts++
	return s.approve
}

func (s *stubNotifier) ExecutionNotice(ctx context.Context, symbol, direction string, price, size float64, dealRef string) {
	s.notices++
}

// crossingSeries ends on the bar where SMA(2) crosses above EMA(4).
func crossingSeries() *market.Series {
	closes := []float64{1.0, 1.0, 1.0, 1.0, 0.98, 1.2}
	s := &market.Series{Symbol: "EURUSD", Timeframe: market.M5}
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.Append(market.Candle{
			Symbol: "EURUSD",
			Time:   base.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c, High: c, Low: c, Close: c, Volume: 100,
		})
	}
	return s
}

type fixture struct {
	engine  *Engine
	venue   *sim.Engine
	manager *risk.Manager
	journal *memJournal
}

func newFixture(t *testing.T, opts func(*Options)) *fixture {
	t.Helper()

	venue := sim.New()
	venue.SetSeries(engineMeta.Epic, crossingSeries())

	manager := risk.NewManager(risk.DefaultPolicy(), 10000, nil)
	mem := &memJournal{}
	ex := execution.NewExecutor(venue, execution.Config{
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     4 * time.Millisecond,
		AttemptTimeout: time.Second,
	}, nil)

	o := Options{
		Broker:      venue,
		Strategy:    strategies.NewSMAEMACross(2, 4),
		Risk:        manager,
		Executor:    ex,
		Journal:     mem,
		Instruments: []market.InstrumentMeta{engineMeta},
		Interval:    time.Minute,
	}
	if opts != nil {
		opts(&o)
	}
	return &fixture{engine: New(o), venue: venue, manager: manager, journal: mem}
}

func TestRunCycleOpensPosition(t *testing.T) {
	f := newFixture(t, nil)

	res := f.engine.RunCycle(context.Background(), engineMeta)
	require.Empty(t, res.Skipped)
	require.NoError(t, res.Err)
	assert.Equal(t, strategies.Long, res.Signal.Direction)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, execution.StateFilled, res.Outcome.State)

	pos, ok := f.manager.Position("EURUSD")
	require.True(t, ok)
	assert.InDelta(t, 1.0, pos.Size, 1e-9) // 100 risk over a 10-pip stop
	assert.Equal(t, 1, res.Account.TradeCountToday)

	require.Len(t, f.journal.bars, 1)
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, "FILLED", f.journal.trades[0].Status)
	require.NotEmpty(t, f.journal.equities)
}

func TestRunCycleVetoesSecondEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.engine.RunCycle(ctx, engineMeta)
	require.NotNil(t, first.Outcome)

	// Same series again: the cross still reads long, but a position is
	// already open for the symbol.
	second := f.engine.RunCycle(ctx, engineMeta)
	require.NotNil(t, second.Veto)
	assert.Equal(t, risk.ReasonDuplicatePosition, second.Veto.Reason)
}

func TestRunCycleClosesOnTargetTouch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.engine.RunCycle(ctx, engineMeta)
	require.NotNil(t, first.Outcome)
	pos, ok := f.manager.Position("EURUSD")
	require.True(t, ok)

	// Next bar spikes through the take-profit.
	s := crossingSeries()
	last, _ := s.Last()
	require.NoError(t, s.Append(market.Candle{
		Symbol: "EURUSD",
		Time:   last.Time.Add(5 * time.Minute),
		Open:   1.2, High: pos.TakeProfit + 0.001, Low: 1.199, Close: 1.21, Volume: 100,
	}))
	f.venue.SetSeries(engineMeta.Epic, s)

	res := f.engine.RunCycle(ctx, engineMeta)
	assert.Equal(t, "position closed this cycle", res.Skipped)

	_, stillOpen := f.manager.Position("EURUSD")
	assert.False(t, stillOpen)

	// 100 pips on 1 lot at $10 a pip.
	assert.InDelta(t, 11000, f.manager.Snapshot().Equity, 1e-6)

	require.Len(t, f.journal.trades, 2)
	closeRec := f.journal.trades[1]
	assert.True(t, closeRec.Closing)
	assert.InDelta(t, 1000, closeRec.RealizedPnL, 1e-6)
}

func TestRunCycleSkipsClosedMarket(t *testing.T) {
	f := newFixture(t, nil)
	f.venue.SetMarketOpen(engineMeta.Epic, false)

	res := f.engine.RunCycle(context.Background(), engineMeta)
	assert.Equal(t, "market closed", res.Skipped)
	assert.Equal(t, 0, f.venue.Submissions())
}

func TestRunCycleSkipsWhenNoData(t *testing.T) {
	venue := sim.New()
	venue.SetMarketOpen(engineMeta.Epic, true)
	manager := risk.NewManager(risk.DefaultPolicy(), 10000, nil)
	ex := execution.NewExecutor(venue, execution.DefaultConfig(), nil)
	e := New(Options{
		Broker:      venue,
		Strategy:    strategies.NewSMAEMACross(2, 4),
		Risk:        manager,
		Executor:    ex,
		Instruments: []market.InstrumentMeta{engineMeta},
		Interval:    time.Minute,
	})

	res := e.RunCycle(context.Background(), engineMeta)
	assert.Equal(t, "no price data", res.Skipped)
	assert.Error(t, res.Err)
}

func TestRunCycleSkipsOutsideSession(t *testing.T) {
	hour := time.Now().UTC().Hour()
	f := newFixture(t, func(o *Options) {
		o.Session = config.SessionConfig{
			StartHour: (hour + 2) % 24,
			EndHour:   (hour + 3) % 24,
		}
	})

	res := f.engine.RunCycle(context.Background(), engineMeta)
	assert.Equal(t, "outside session window", res.Skipped)
}

func TestRunCycleHoldsOrderWhenNotConfirmed(t *testing.T) {
	notifier := &stubNotifier{approve: false}
	f := newFixture(t, func(o *Options) { o.Notifier = notifier })

	res := f.engine.RunCycle(context.Background(), engineMeta)
	assert.Equal(t, "trade not confirmed", res.Skipped)
	assert.Equal(t, 1, notifier.alerts)
	assert.Equal(t, 0, f.venue.Submissions())

	_, open := f.manager.Position("EURUSD")
	assert.False(t, open)
}

func TestRunCycleNotifiesOnFill(t *testing.T) {
	notifier := &stubNotifier{approve: true}
	f := newFixture(t, func(o *Options) { o.Notifier = notifier })

	res := f.engine.RunCycle(context.Background(), engineMeta)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, execution.StateFilled, res.Outcome.State)
	assert.Equal(t, 1, notifier.alerts)
	assert.Equal(t, 1, notifier.notices)
}
