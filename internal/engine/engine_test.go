package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/exchange/exchangetest"
	"spot-swing-bot/internal/ledger"
	"spot-swing-bot/internal/risk"
	"spot-swing-bot/internal/store"
	"spot-swing-bot/internal/types"
)

// breakout is a slow decline closed by a sharp up bar on high volume, which passes every entry check.
func breakout(n int, jump float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		c := 100 - 0.1*float64(i)
		vol := 100.0
		if i == n-1 {
			c = 100 - 0.1*float64(n-2) + jump
			vol = 500
		}
		out[i] = types.Candle{Ts: int64(i) * 3_600_000, Open: c, High: c + 1, Low: c - 1, Close: c, Vol: vol}
	}
	return out
}

func uptrend(n int, step float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		c := 50 + step*float64(i)
		out[i] = types.Candle{Ts: int64(i) * 14_400_000, Open: c, High: c + 1, Low: c - 1, Close: c, Vol: 1}
	}
	return out
}

func flat(n int) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{Ts: int64(i) * 3_600_000, Open: 100, High: 100, Low: 100, Close: 100, Vol: 1}
	}
	return out
}

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	c := store.Default()
	return &c
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(ledger.NewFileStore(filepath.Join(t.TempDir(), "positions.json"), time.Second), "USDT")
}

func market() *exchangetest.Fake {
	f := &exchangetest.Fake{
		Tickers: map[string]types.Ticker{
			"ETH-USDT": {Symbol: "ETH-USDT", Last: 104.2, Bid: 104.19, Ask: 104.21, QuoteVolume24h: 2_000_000},
		},
		Accounts: map[string]types.Balance{"USDT": {Free: 10_000, Total: 10_000}},
	}
	f.SetCandles("ETH-USDT", "1h", breakout(60, 10))
	f.SetCandles("ETH-USDT", "4h", uptrend(220, 0.5))
	f.SetCandles("BTC-USDT", "1h", flat(5))
	return f
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ""},
		{fmt.Errorf("%w: 503", exchange.ErrTransient), ClassTransient},
		{context.DeadlineExceeded, ClassTransient},
		{errors.New("connection reset"), ClassTransient},
		{fmt.Errorf("%w: bad json", exchange.ErrBadData), ClassDataQuality},
		{fmt.Errorf("%w: -2010", exchange.ErrRejected), ClassInvalidDecision},
		{risk.ErrBelowMinNotional, ClassInvalidDecision},
		{risk.ErrInvalidStop, ClassInvalidDecision},
		{ledger.ErrLockTimeout, ClassPersistence},
		{persistence(errors.New("disk full")), ClassPersistence},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}
