package journal

// sqliteSchema keeps the local sink self-contained: bars are upserted by
// (symbol, time), trades are append-only keyed by deal reference.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT NOT NULL,
	time   DATETIME NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume REAL NOT NULL,
	PRIMARY KEY(symbol, time)
);

CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference TEXT NOT NULL,
	deal_id TEXT,
	symbol TEXT NOT NULL,
	epic TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry REAL,
	stop_loss REAL,
	take_profit REAL,
	fill_price REAL,
	realized_pnl REAL,
	status TEXT NOT NULL,
	detail TEXT,
	closing INTEGER NOT NULL DEFAULT 0,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_reference ON trades(reference);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	peak_equity REAL NOT NULL,
	daily_pnl REAL NOT NULL,
	drawdown REAL NOT NULL,
	open_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
