package ig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Credentials{
		APIKey:     "key-123",
		Identifier: "trader",
		Password:   "hunter2",
	}, true, nil)
	c.baseURL = srv.URL
	return c
}

func testMeta() market.InstrumentMeta {
	return market.InstrumentMeta{
		Symbol:    "EURUSD",
		Epic:      "CS.D.EURUSD.MINI.IP",
		Timeframe: market.M5,
	}
}

func TestLoginCapturesSessionTokens(t *testing.T) {
	t.Parallel()

	var gotAPIKey, gotVersion string
	var gotBody sessionRequest
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/session", r.URL.Path)
		gotAPIKey = r.Header.Get("X-IG-API-KEY")
		gotVersion = r.Header.Get("Version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("CST", "cst-token")
		w.Header().Set("X-SECURITY-TOKEN", "xst-token")
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.Login(context.Background()))

	assert.Equal(t, "key-123", gotAPIKey)
	assert.Equal(t, "2", gotVersion)
	assert.Equal(t, "trader", gotBody.Identifier)
	assert.Equal(t, "hunter2", gotBody.Password)
	assert.Equal(t, "cst-token", c.cst)
	assert.Equal(t, "xst-token", c.securityToken)
}

func TestLoginRejectedCredentials(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"errorCode": "error.security.invalid-details"})
	}))

	err := c.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error.security.invalid-details")
	assert.False(t, broker.IsTransport(err))
}

func TestFetchSeriesParsesHistory(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/prices/CS.D.EURUSD.MINI.IP/MINUTE_5/3", r.URL.Path)
		assert.Equal(t, "2", r.Header.Get("Version"))
		json.NewEncoder(w).Encode(map[string]any{
			"prices": []map[string]any{
				{
					"snapshotTime":     "2025/03/03 09:00:00",
					"openPrice":        map[string]float64{"bid": 1.0999, "ask": 1.1001},
					"highPrice":        map[string]float64{"bid": 1.1009, "ask": 1.1011},
					"lowPrice":         map[string]float64{"bid": 1.0989, "ask": 1.0991},
					"closePrice":       map[string]float64{"bid": 1.1004, "ask": 1.1006},
					"lastTradedVolume": 120,
				},
				{
					"snapshotTime":     "not a timestamp",
					"closePrice":       map[string]float64{"bid": 1.0, "ask": 1.0},
					"lastTradedVolume": 1,
				},
				{
					"snapshotTime":     "2025/03/03 09:05:00",
					"openPrice":        map[string]float64{"bid": 1.1004, "ask": 1.1006},
					"highPrice":        map[string]float64{"bid": 1.1014, "ask": 1.1016},
					"lowPrice":         map[string]float64{"bid": 1.1000, "ask": 1.1002},
					"closePrice":       map[string]float64{"bid": 1.1011, "ask": 1.1013},
					"lastTradedVolume": 95,
				},
			},
		})
	}))

	series, err := c.FetchSeries(context.Background(), testMeta(), 3)
	require.NoError(t, err)

	// The unparseable bar is skipped, the rest come back mid-priced.
	require.Equal(t, 2, series.Len())
	first := series.Candles[0]
	assert.Equal(t, "EURUSD", first.Symbol)
	assert.Equal(t, "2025-03-03 09:00:00", first.Time.UTC().Format("2006-01-02 15:04:05"))
	assert.InDelta(t, 1.1000, first.Open, 1e-9)
	assert.InDelta(t, 1.1010, first.High, 1e-9)
	assert.InDelta(t, 1.0990, first.Low, 1e-9)
	assert.InDelta(t, 1.1005, first.Close, 1e-9)
	assert.InDelta(t, 120, first.Volume, 1e-9)
	last, ok := series.Last()
	require.True(t, ok)
	assert.InDelta(t, 1.1012, last.Close, 1e-9)
}

func TestFetchSeriesEmptyHistoryIsDataUnavailable(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"prices": []any{}})
	}))

	_, err := c.FetchSeries(context.Background(), testMeta(), 10)
	require.Error(t, err)
	assert.True(t, broker.IsDataUnavailable(err))
}

func TestFetchSeriesTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(Credentials{APIKey: "key"}, true, nil)
	c.baseURL = srv.URL

	_, err := c.FetchSeries(context.Background(), testMeta(), 10)
	require.Error(t, err)
	assert.True(t, broker.IsTransport(err))
	assert.False(t, broker.IsDataUnavailable(err))
}

func TestSubmitOrderOpensAndConfirms(t *testing.T) {
	t.Parallel()

	var gotOpen otcRequest
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/positions/otc":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOpen))
			json.NewEncoder(w).Encode(map[string]string{"dealReference": gotOpen.DealReference})
		case r.Method == http.MethodGet && r.URL.Path == "/confirms/IGFX-EURUSD-1700000000":
			json.NewEncoder(w).Encode(map[string]any{
				"dealId":     "DIAAAA123",
				"dealStatus": "ACCEPTED",
				"level":      1.1005,
				"size":       0.5,
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	res, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol:     "EURUSD",
		Epic:       "CS.D.EURUSD.MINI.IP",
		Side:       broker.Buy,
		Size:       0.5,
		StopLoss:   1.0985,
		TakeProfit: 1.1045,
		Reference:  "IGFX-EURUSD-1700000000",
	})
	require.NoError(t, err)

	assert.Equal(t, broker.StatusFilled, res.Status)
	assert.Equal(t, "DIAAAA123", res.DealID)
	assert.InDelta(t, 1.1005, res.FillPrice, 1e-9)
	assert.InDelta(t, 0.5, res.FillSize, 1e-9)

	assert.Equal(t, "CS.D.EURUSD.MINI.IP", gotOpen.Epic)
	assert.Equal(t, "BUY", gotOpen.Direction)
	assert.Equal(t, "MARKET", gotOpen.OrderType)
	assert.True(t, gotOpen.ForceOpen)
	require.NotNil(t, gotOpen.StopLevel)
	assert.InDelta(t, 1.0985, *gotOpen.StopLevel, 1e-9)
	require.NotNil(t, gotOpen.LimitLevel)
	assert.InDelta(t, 1.1045, *gotOpen.LimitLevel, 1e-9)
}

func TestSubmitOrderConfirmRejection(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/positions/otc":
			json.NewEncoder(w).Encode(map[string]string{"dealReference": "IGFX-EURUSD-1"})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"dealStatus": "REJECTED",
				"reason":     "INSUFFICIENT_FUNDS",
			})
		}
	}))

	res, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Epic:      "CS.D.EURUSD.MINI.IP",
		Side:      broker.Buy,
		Size:      100,
		Reference: "IGFX-EURUSD-1",
	})
	require.Error(t, err)
	assert.True(t, broker.IsRejected(err))
	assert.Equal(t, broker.StatusRejected, res.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", res.Detail)
}

func TestSubmitOrderAPIErrorIsRejected(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"errorCode": "validation.null-not-allowed.request.size"})
	}))

	res, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Epic:      "CS.D.EURUSD.MINI.IP",
		Side:      broker.Sell,
		Reference: "IGFX-EURUSD-2",
	})
	require.Error(t, err)
	assert.True(t, broker.IsRejected(err))
	assert.Equal(t, broker.StatusRejected, res.Status)
	assert.Contains(t, res.Detail, "validation.null-not-allowed.request.size")
}

func TestSubmitOrderClosesDeal(t *testing.T) {
	t.Parallel()

	var gotClose otcRequest
	var gotOverride string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/positions/otc":
			gotOverride = r.Header.Get("_method")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotClose))
			json.NewEncoder(w).Encode(map[string]string{"dealReference": gotClose.DealReference})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"dealId":     "DIAAAA123",
				"dealStatus": "ACCEPTED",
				"level":      1.1050,
				"size":       0.5,
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	res, err := c.SubmitOrder(context.Background(), broker.OrderRequest{
		Symbol:    "EURUSD",
		Side:      broker.Sell,
		Size:      0.5,
		Reference: "IGFX-EURUSD-1700000000-close",
		Closing:   true,
		DealID:    "DIAAAA123",
	})
	require.NoError(t, err)

	assert.Equal(t, broker.StatusFilled, res.Status)
	assert.True(t, res.Closing)
	assert.Equal(t, "DELETE", gotOverride)
	assert.Equal(t, "DIAAAA123", gotClose.DealID)
	assert.Empty(t, gotClose.Epic)
	assert.Equal(t, "SELL", gotClose.Direction)
}

func TestMarketOpen(t *testing.T) {
	t.Parallel()

	status := "TRADEABLE"
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/CS.D.EURUSD.MINI.IP", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"snapshot": map[string]string{"marketStatus": status},
		})
	}))

	open, err := c.MarketOpen(context.Background(), testMeta())
	require.NoError(t, err)
	assert.True(t, open)

	status = "EDITS_ONLY"
	open, err = c.MarketOpen(context.Background(), testMeta())
	require.NoError(t, err)
	assert.False(t, open)
}

func TestSanitizeReference(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IGFX-EURUSD-1700000000", sanitizeReference("IGFX-EURUSD-1700000000"))
	assert.Equal(t, "IGFX_EURUSD_1", sanitizeReference("IGFX.EURUSD 1"))
	long := sanitizeReference("IGFX-EURUSD-1700000000-close-extra")
	assert.Len(t, long, 30)
}
