package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-swing-bot/internal/exchange"
)

const exchangeInfoETH = `{"symbols":[{"symbol":"ETHUSDT","status":"TRADING","isSpotTradingAllowed":true,
 "filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01"},{"filterType":"LOT_SIZE","stepSize":"0.00100000","minQty":"0.00100000"}]}]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, APIKey: "key", APISecret: "secret", RequestsPerSecond: 1000, BreakerFailures: 2})
	c.now = func() time.Time { return time.UnixMilli(10_000) }
	return c
}

func TestCandlesDropsFormingBar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
 [0,"10","12","9","11","100",999,"1100",5,"50","500","0"],
 [1000,"11","13","10","12","200",1999,"2400",5,"50","500","0"],
 [2000,"12","14","11","13","300",20000,"3900",5,"50","500","0"]]`))
	})
	got, err := c.Candles(context.Background(), "eth/usdt", "1h", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[1].Ts)
	assert.Equal(t, 12.0, got[1].Close)
	assert.Equal(t, 200.0, got[1].Vol)
}

func TestTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"64000.10","bidPrice":"64000.00","askPrice":"64000.20","quoteVolume":"123456789.5"}`))
	})
	tk, err := c.Ticker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", tk.Symbol)
	assert.Equal(t, 64000.2, tk.Ask)
	assert.Equal(t, 123456789.5, tk.QuoteVolume24h)
}

func TestSignedMarketOrderFloorsQuantity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoETH))
		case "/api/v3/order":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
			assert.NoError(t, r.ParseForm())
			form := url.Values{}
			for k, v := range r.PostForm {
				form[k] = v
			}
			sig := form.Get("signature")
			form.Del("signature")
			assert.Equal(t, sign("secret", form.Encode()), sig)
			assert.Equal(t, "0.123", form.Get("quantity"))
			assert.Equal(t, "MARKET", form.Get("type"))
			assert.Equal(t, "BUY", form.Get("side"))
			assert.Equal(t, "10000", form.Get("timestamp"))
			_, _ = w.Write([]byte(`{"orderId":42,"status":"FILLED","executedQty":"0.123","cummulativeQuoteQty":"246"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	resp, err := c.MarketBuy(context.Background(), "ETH-USDT", 0.123456)
	require.NoError(t, err)
	assert.Equal(t, "42", resp.OrderID)
	assert.Equal(t, 0.123, resp.FilledQty)
	assert.InDelta(t, 2000.0, resp.AvgPrice, 1e-9)
}

func TestUnfilledOrderIsRejected(t *testing.T) {
	for _, body := range []string{
		`{"orderId":42,"status":"EXPIRED","executedQty":"0.00000000","cummulativeQuoteQty":"0.00000000"}`,
		`{"orderId":43,"status":"EXPIRED_IN_MATCH","executedQty":"0.00000000","cummulativeQuoteQty":"0.00000000"}`,
		`{"orderId":44,"status":"FILLED","executedQty":"0","cummulativeQuoteQty":"0"}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v3/order" {
				_, _ = w.Write([]byte(body))
				return
			}
			_, _ = w.Write([]byte(exchangeInfoETH))
		})
		_, err := c.MarketSell(context.Background(), "ETH-USDT", 0.5)
		assert.ErrorIs(t, err, exchange.ErrRejected, body)
	}
}

func TestPartialFillIsConfirmed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/order" {
			_, _ = w.Write([]byte(`{"orderId":45,"status":"PARTIALLY_FILLED","executedQty":"0.2","cummulativeQuoteQty":"400"}`))
			return
		}
		_, _ = w.Write([]byte(exchangeInfoETH))
	})
	resp, err := c.MarketSell(context.Background(), "ETH-USDT", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.2, resp.FilledQty)
	assert.InDelta(t, 2000.0, resp.AvgPrice, 1e-9)
}

func TestOrderBelowLotSizeIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/order" {
			t.Error("order must not be sent")
			return
		}
		_, _ = w.Write([]byte(exchangeInfoETH))
	})
	_, err := c.MarketSell(context.Background(), "ETH-USDT", 0.0004)
	assert.ErrorIs(t, err, exchange.ErrRejected)
}

func TestTradableUnknownSymbol(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	ok, err := c.Tradable(context.Background(), "NOPE-USDT")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Tradable(context.Background(), "NOPE-USDT")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "listing is cached")
}

func TestServerErrorsAreTransientAndTripBreaker(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	for i := 0; i < 3; i++ {
		_, err := c.Ticker(context.Background(), "BTC-USDT")
		assert.ErrorIs(t, err, exchange.ErrTransient)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker short-circuits")
}

func TestClientErrorsAreRejections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	})
	for i := 0; i < 3; i++ {
		_, err := c.Balances(context.Background())
		assert.ErrorIs(t, err, exchange.ErrRejected)
		assert.NotErrorIs(t, err, exchange.ErrTransient)
	}
}

func TestBalancesSkipsEmptyLines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		_, _ = w.Write([]byte(`{"balances":[{"asset":"USDT","free":"100.5","locked":"0"},{"asset":"eth","free":"0.2","locked":"0.1"},{"asset":"BNB","free":"0","locked":"0"}]}`))
	})
	b, err := c.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, 0.2, b["ETH"].Free)
	assert.InDelta(t, 0.3, b["ETH"].Total, 1e-12)
}

func TestFloorQty(t *testing.T) {
	step := decimal.RequireFromString("0.01")
	assert.Equal(t, "1.23", FloorQty(1.239, step).String())
	assert.Equal(t, "0", FloorQty(0.009, step).String())
	assert.Equal(t, "5", FloorQty(5, decimal.RequireFromString("1")).String())
}
