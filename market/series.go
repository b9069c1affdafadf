package market

import (
	"fmt"
	"time"
)

// Series is an ordered sequence of candles for one symbol and timeframe.
// Timestamps are strictly increasing; gaps are tolerated but never filled
// with fabricated bars.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

func NewSeries(symbol string, tf Timeframe) *Series {
	return &Series{Symbol: symbol, Timeframe: tf}
}

// Append adds a candle to the series. Out-of-order or duplicate timestamps
// are rejected.
func (s *Series) Append(c Candle) error {
	if n := len(s.Candles); n > 0 && !c.Time.After(s.Candles[n-1].Time) {
		return fmt.Errorf("series %s: candle at %s is not after %s",
			s.Symbol, c.Time.Format(time.RFC3339), s.Candles[n-1].Time.Format(time.RFC3339))
	}
	s.Candles = append(s.Candles, c)
	return nil
}

func (s *Series) Len() int { return len(s.Candles) }

// Last returns the most recent candle, if any.
func (s *Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close prices in bar order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Slice returns a view of the first n candles as a new series sharing the
// underlying storage. Used by backtests to replay bar-by-bar.
func (s *Series) Slice(n int) *Series {
	if n > len(s.Candles) {
		n = len(s.Candles)
	}
	return &Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[:n]}
}
