package journal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Hypertable on candles; trades stay a plain append-only table.
const timescaleSchema = `
CREATE EXTENSION IF NOT EXISTS timescaledb;

CREATE TABLE IF NOT EXISTS candles (
	symbol TEXT NOT NULL,
	time   TIMESTAMPTZ NOT NULL,
	open   DOUBLE PRECISION NOT NULL,
	high   DOUBLE PRECISION NOT NULL,
	low    DOUBLE PRECISION NOT NULL,
	close  DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	PRIMARY KEY(symbol, time)
);
SELECT create_hypertable('candles', 'time', if_not_exists => TRUE);
CREATE INDEX IF NOT EXISTS idx_candles_symbol_time ON candles(symbol, time DESC);

CREATE TABLE IF NOT EXISTS trades (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL DEFAULT now(),
	reference TEXT NOT NULL,
	deal_id TEXT,
	epic TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	size DOUBLE PRECISION NOT NULL,
	entry DOUBLE PRECISION,
	sl DOUBLE PRECISION,
	tp DOUBLE PRECISION,
	fill_price DOUBLE PRECISION,
	realized_pnl DOUBLE PRECISION,
	status TEXT NOT NULL,
	detail TEXT,
	closing BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_trades_reference ON trades(reference);

CREATE TABLE IF NOT EXISTS equity (
	time TIMESTAMPTZ NOT NULL,
	equity DOUBLE PRECISION NOT NULL,
	peak_equity DOUBLE PRECISION NOT NULL,
	daily_pnl DOUBLE PRECISION NOT NULL,
	drawdown DOUBLE PRECISION NOT NULL,
	open_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

// TimescaleJournal writes to a TimescaleDB/Postgres instance through a
// pgx pool. Candle writes upsert on (symbol, time) so re-fetched history
// never duplicates rows.
type TimescaleJournal struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewTimescale(ctx context.Context, dsn string) (*TimescaleJournal, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	j := &TimescaleJournal{pool: pool, timeout: 5 * time.Second}
	if err := j.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *TimescaleJournal) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := j.pool.Exec(ctx, timescaleSchema)
	return err
}

func (j *TimescaleJournal) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), j.timeout)
}

func (j *TimescaleJournal) RecordBar(b BarRecord) error {
	ctx, cancel := j.withTimeout()
	defer cancel()
	_, err := j.pool.Exec(ctx, `
		INSERT INTO candles (symbol, time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, time) DO UPDATE SET
			open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
			close=EXCLUDED.close, volume=EXCLUDED.volume`,
		b.Symbol, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume,
	)
	return err
}

func (j *TimescaleJournal) RecordTrade(t TradeRecord) error {
	ctx, cancel := j.withTimeout()
	defer cancel()
	_, err := j.pool.Exec(ctx, `
		INSERT INTO trades
		(ts, reference, deal_id, epic, symbol, side, size, entry, sl, tp,
		 fill_price, realized_pnl, status, detail, closing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.Time, t.Reference, t.DealID, t.Epic, t.Symbol, t.Side, t.Size,
		t.Entry, t.StopLoss, t.TakeProfit, t.FillPrice, t.RealizedPnL,
		t.Status, t.Detail, t.Closing,
	)
	return err
}

func (j *TimescaleJournal) RecordEquity(e EquitySnapshot) error {
	ctx, cancel := j.withTimeout()
	defer cancel()
	_, err := j.pool.Exec(ctx, `
		INSERT INTO equity (time, equity, peak_equity, daily_pnl, drawdown, open_count)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Time, e.Equity, e.PeakEquity, e.DailyPnL, e.Drawdown, e.OpenCount,
	)
	return err
}

func (j *TimescaleJournal) Close() error {
	j.pool.Close()
	return nil
}
