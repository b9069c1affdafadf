package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes flat files, one per record kind. Handy for eyeballing
// a backtest without a database.
type CSVJournal struct {
	bars       *csv.Writer
	trades     *csv.Writer
	equity     *csv.Writer
	bf, tf, ef *os.File
}

func NewCSV(barsPath, tradesPath, equityPath string) (*CSVJournal, error) {
	bf, err := os.Create(barsPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		bf.Close()
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		bf.Close()
		tf.Close()
		return nil, err
	}

	bw := csv.NewWriter(bf)
	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	bw.Write([]string{"symbol", "time", "open", "high", "low", "close", "volume"})
	tw.Write([]string{"reference", "deal_id", "symbol", "epic", "side", "size", "entry",
		"stop_loss", "take_profit", "fill_price", "realized_pnl", "status", "detail", "closing", "time"})
	ew.Write([]string{"time", "equity", "peak_equity", "daily_pnl", "drawdown", "open_count"})

	for _, w := range []*csv.Writer{bw, tw, ew} {
		w.Flush()
		if err := w.Error(); err != nil {
			bf.Close()
			tf.Close()
			ef.Close()
			return nil, err
		}
	}

	return &CSVJournal{bars: bw, trades: tw, equity: ew, bf: bf, tf: tf, ef: ef}, nil
}

func (j *CSVJournal) RecordBar(b BarRecord) error {
	j.bars.Write([]string{
		b.Symbol,
		b.Time.Format(time.RFC3339),
		f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume),
	})
	j.bars.Flush()
	return j.bars.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.trades.Write([]string{
		t.Reference,
		t.DealID,
		t.Symbol,
		t.Epic,
		t.Side,
		f(t.Size),
		f(t.Entry),
		f(t.StopLoss),
		f(t.TakeProfit),
		f(t.FillPrice),
		f(t.RealizedPnL),
		t.Status,
		t.Detail,
		strconv.FormatBool(t.Closing),
		t.Time.Format(time.RFC3339),
	})
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.PeakEquity),
		f(e.DailyPnL),
		f(e.Drawdown),
		strconv.Itoa(e.OpenCount),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.bars, j.trades, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, f := range []*os.File{j.bf, j.tf, j.ef} {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
