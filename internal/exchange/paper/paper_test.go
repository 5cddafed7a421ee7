package paper

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/exchange/exchangetest"
	"spot-swing-bot/internal/types"
)

func market() *exchangetest.Fake {
	return &exchangetest.Fake{Tickers: map[string]types.Ticker{
		"ETH-USDT": {Symbol: "ETH-USDT", Last: 2000, Bid: 1999, Ask: 2001},
	}}
}

func TestBuyAndSellMoveBalances(t *testing.T) {
	ctx := context.Background()
	ex := New(market(), "usdt", map[string]float64{"usdt": 1000})

	resp, err := ex.MarketBuy(ctx, "ETHUSDT", 0.25)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.OrderID, "SIM-"))
	assert.Equal(t, 2001.0, resp.AvgPrice)
	assert.Equal(t, 0.25, resp.FilledQty)

	b, err := ex.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000-0.25*2001, b["USDT"].Free, 1e-9)
	assert.Equal(t, 0.25, b["ETH"].Free)

	resp, err = ex.MarketSell(ctx, "ETH/USDT", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 1999.0, resp.AvgPrice)
	b, err = ex.Balances(ctx)
	require.NoError(t, err)
	assert.NotContains(t, b, "ETH", "empty lines are omitted")
	assert.InDelta(t, 1000-0.25*2, b["USDT"].Free, 1e-9)
}

func TestInsufficientBalanceIsRejected(t *testing.T) {
	ctx := context.Background()
	ex := New(market(), "USDT", map[string]float64{"USDT": 10})

	_, err := ex.MarketBuy(ctx, "ETH-USDT", 1)
	assert.ErrorIs(t, err, exchange.ErrRejected)
	_, err = ex.MarketSell(ctx, "ETH-USDT", 1)
	assert.ErrorIs(t, err, exchange.ErrRejected)
	_, err = ex.MarketBuy(ctx, "ETH-USDT", 0)
	assert.ErrorIs(t, err, exchange.ErrRejected)
}

func TestMarketDataPassesThrough(t *testing.T) {
	m := market()
	m.SetCandles("ETH-USDT", "1h", []types.Candle{{Ts: 1, Close: 5}})
	ex := New(m, "", nil)
	cs, err := ex.Candles(context.Background(), "ETH-USDT", "1h", 10)
	require.NoError(t, err)
	assert.Len(t, cs, 1)
	ok, err := ex.Tradable(context.Background(), "ETH-USDT")
	require.NoError(t, err)
	assert.True(t, ok)
}
