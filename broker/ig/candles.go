package ig

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// IG price points carry separate bid/ask values; mid is used for signals,
// matching how the original bot normalized IG history.
type pricePoint struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

func (p pricePoint) mid() float64 {
	if p.Ask == 0 {
		return p.Bid
	}
	return (p.Bid + p.Ask) / 2
}

type apiPrice struct {
	SnapshotTime     string     `json:"snapshotTime"`
	OpenPrice        pricePoint `json:"openPrice"`
	HighPrice        pricePoint `json:"highPrice"`
	LowPrice         pricePoint `json:"lowPrice"`
	ClosePrice       pricePoint `json:"closePrice"`
	LastTradedVolume float64    `json:"lastTradedVolume"`
}

type pricesResponse struct {
	Prices []apiPrice `json:"prices"`
}

// snapshotTimeLayout is IG's history timestamp format (no zone; UTC).
const snapshotTimeLayout = "2006/01/02 15:04:05"

// FetchSeries pulls the most recent count bars for the instrument.
func (c *Client) FetchSeries(ctx context.Context, meta market.InstrumentMeta, count int) (*market.Series, error) {
	path := fmt.Sprintf("/prices/%s/%s/%d", meta.Epic, meta.Timeframe.IGResolution(), count)

	var resp pricesResponse
	if err := c.do(ctx, http.MethodGet, path, 2, nil, &resp); err != nil {
		if broker.IsTransport(err) {
			return nil, err
		}
		return nil, &broker.DataUnavailableError{Epic: meta.Epic, Err: err}
	}
	if len(resp.Prices) == 0 {
		return nil, &broker.DataUnavailableError{Epic: meta.Epic, Err: fmt.Errorf("empty history")}
	}

	series := market.NewSeries(meta.Symbol, meta.Timeframe)
	for _, p := range resp.Prices {
		ts, err := time.ParseInLocation(snapshotTimeLayout, p.SnapshotTime, time.UTC)
		if err != nil {
			c.log.WithField("snapshotTime", p.SnapshotTime).Warn("skipping bar with bad timestamp")
			continue
		}
		candle := market.Candle{
			Symbol: meta.Symbol,
			Time:   ts,
			Open:   p.OpenPrice.mid(),
			High:   p.HighPrice.mid(),
			Low:    p.LowPrice.mid(),
			Close:  p.ClosePrice.mid(),
			Volume: p.LastTradedVolume,
		}
		if err := series.Append(candle); err != nil {
			c.log.WithError(err).Warn("skipping out-of-order bar")
		}
	}
	if series.Len() == 0 {
		return nil, &broker.DataUnavailableError{Epic: meta.Epic, Err: fmt.Errorf("no parseable bars")}
	}
	return series, nil
}

type marketResponse struct {
	Snapshot struct {
		MarketStatus string `json:"marketStatus"`
	} `json:"snapshot"`
}

// MarketOpen reports whether the epic is currently tradeable.
func (c *Client) MarketOpen(ctx context.Context, meta market.InstrumentMeta) (bool, error) {
	var resp marketResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+meta.Epic, 3, nil, &resp); err != nil {
		return false, err
	}
	return resp.Snapshot.MarketStatus == "TRADEABLE", nil
}
