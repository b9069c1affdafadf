// Package market holds the core price data types shared by every other
// package: candles, ordered series and instrument metadata.
package market

import "time"

// Candle represents one OHLCV observation for a fixed timeframe.
// Candles are immutable once produced.
type Candle struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
