package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal is the default local sink. One file, no server.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordBar(b BarRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO bars (symbol, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, time) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`,
		b.Symbol, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume,
	)
	return err
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(reference, deal_id, symbol, epic, side, size, entry, stop_loss, take_profit,
		 fill_price, realized_pnl, status, detail, closing, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Reference, t.DealID, t.Symbol, t.Epic, t.Side, t.Size, t.Entry,
		t.StopLoss, t.TakeProfit, t.FillPrice, t.RealizedPnL, t.Status,
		t.Detail, t.Closing, t.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, equity, peak_equity, daily_pnl, drawdown, open_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Equity, e.PeakEquity, e.DailyPnL, e.Drawdown, e.OpenCount,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
