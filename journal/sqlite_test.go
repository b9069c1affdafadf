package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteJournal, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('bars','trades','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["bars"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	when := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	rec := TradeRecord{
		Reference:   "IGFX-EURUSD-1741000000",
		DealID:      "DIAAAA123",
		Symbol:      "EURUSD",
		Epic:        "CS.D.EURUSD.MINI.IP",
		Side:        "BUY",
		Size:        0.2,
		Entry:       1.1000,
		StopLoss:    1.0950,
		TakeProfit:  1.1100,
		FillPrice:   1.1001,
		RealizedPnL: 0,
		Status:      "FILLED",
		Time:        when,
	}

	assert.NoError(t, j.RecordTrade(rec))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		reference string
		symbol    string
		side      string
		size      float64
		status    string
	)
	err = db.QueryRow(`SELECT reference, symbol, side, size, status FROM trades`).
		Scan(&reference, &symbol, &side, &size, &status)
	require.NoError(t, err)

	assert.Equal(t, rec.Reference, reference)
	assert.Equal(t, rec.Symbol, symbol)
	assert.Equal(t, rec.Side, side)
	assert.InDelta(t, rec.Size, size, 1e-9)
	assert.Equal(t, rec.Status, status)
}

func TestSQLiteBarUpsert(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	when := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	bar := BarRecord{Symbol: "EURUSD", Time: when, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 100}
	assert.NoError(t, j.RecordBar(bar))

	// Same (symbol, time) again with a revised close must update in place.
	bar.Close = 1.16
	assert.NoError(t, j.RecordBar(bar))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bars`).Scan(&count))
	assert.Equal(t, 1, count)

	var closePx float64
	require.NoError(t, db.QueryRow(`SELECT close FROM bars`).Scan(&closePx))
	assert.InDelta(t, 1.16, closePx, 1e-9)
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	snap := EquitySnapshot{
		Time:       time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		Equity:     10200,
		PeakEquity: 10200,
		DailyPnL:   200,
		Drawdown:   0,
		OpenCount:  1,
	}
	assert.NoError(t, j.RecordEquity(snap))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var equity, peak float64
	var openCount int
	err = db.QueryRow(`SELECT equity, peak_equity, open_count FROM equity`).
		Scan(&equity, &peak, &openCount)
	require.NoError(t, err)
	assert.InDelta(t, 10200, equity, 1e-9)
	assert.InDelta(t, 10200, peak, 1e-9)
	assert.Equal(t, 1, openCount)
}
