package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSV(t *testing.T) (*CSVJournal, string, string, string) {
	t.Helper()

	dir := t.TempDir()
	bars := filepath.Join(dir, "bars.csv")
	trades := filepath.Join(dir, "trades.csv")
	equity := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(bars, trades, equity)
	require.NoError(t, err)
	return j, bars, trades, equity
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVHeadersWritten(t *testing.T) {
	t.Parallel()

	j, bars, trades, equity := newTestCSV(t)
	assert.NoError(t, j.Close())

	assert.Equal(t, "symbol", readAll(t, bars)[0][0])
	assert.Equal(t, "reference", readAll(t, trades)[0][0])
	assert.Equal(t, "time", readAll(t, equity)[0][0])
}

func TestCSVRecordTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j, _, trades, _ := newTestCSV(t)

	rec := TradeRecord{
		Reference: "IGFX-EURUSD-1741000000",
		Symbol:    "EURUSD",
		Epic:      "CS.D.EURUSD.MINI.IP",
		Side:      "SELL",
		Size:      0.5,
		Status:    "REJECTED",
		Detail:    "market closed",
		Time:      time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, j.RecordTrade(rec))
	assert.NoError(t, j.Close())

	rows := readAll(t, trades)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, rec.Reference, row[0])
	assert.Equal(t, "EURUSD", row[2])
	assert.Equal(t, "SELL", row[4])
	assert.Equal(t, "0.500000", row[5])
	assert.Equal(t, "REJECTED", row[11])
	assert.Equal(t, "market closed", row[12])
	assert.Equal(t, "2025-03-03T09:00:00Z", row[14])
}

func TestCSVRecordBarAndEquity(t *testing.T) {
	t.Parallel()

	j, bars, _, equity := newTestCSV(t)

	when := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	assert.NoError(t, j.RecordBar(BarRecord{
		Symbol: "EURUSD", Time: when, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 42,
	}))
	assert.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: when, Equity: 9800, PeakEquity: 10000, DailyPnL: -200, Drawdown: 0.02, OpenCount: 0,
	}))
	assert.NoError(t, j.Close())

	barRows := readAll(t, bars)
	require.Len(t, barRows, 2)
	assert.Equal(t, "EURUSD", barRows[1][0])
	assert.Equal(t, "1.150000", barRows[1][5])

	eqRows := readAll(t, equity)
	require.Len(t, eqRows, 2)
	assert.Equal(t, "9800.000000", eqRows[1][1])
	assert.Equal(t, "0.020000", eqRows[1][4])
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	t.Parallel()

	a, _, _, _ := newTestCSV(t)
	b, _, _, _ := newTestCSV(t)
	m := NewMulti(a, b, Nop{})

	assert.NoError(t, m.RecordTrade(TradeRecord{Reference: "R1", Symbol: "EURUSD", Epic: "E", Side: "BUY", Status: "FILLED", Time: time.Now()}))
	assert.NoError(t, m.RecordEquity(EquitySnapshot{Time: time.Now(), Equity: 1}))
	assert.NoError(t, m.Close())

	// Writers behind a closed journal error; Multi must surface it but
	// still reach the healthy sinks.
	assert.Error(t, m.RecordTrade(TradeRecord{Reference: "R2"}))
}
