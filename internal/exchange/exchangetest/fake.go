// Package exchangetest provides an in-memory Exchange for tests.
package exchangetest

import (
	"context"
	"fmt"
	"sync"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/types"
)

// Order is a recorded market order.
type Order struct {
	Side   string
	Symbol string
	Qty    float64
}

// Fake serves canned market data and records orders. Zero value is usable; set fields before use.
type Fake struct {
	mu sync.Mutex

	CandleData map[string][]types.Candle // key: symbol + "|" + timeframe
	Tickers    map[string]types.Ticker
	Accounts   map[string]types.Balance
	Unlisted   map[string]bool

	CandleErr  error
	BalanceErr error
	BuyErr     error
	SellErr    error

	// FillPrice overrides the ticker price in order responses when set.
	FillPrice float64

	// Unfilled makes orders come back accepted but EXPIRED with nothing executed.
	Unfilled bool

	Orders []Order
	seq    int
}

var _ interfaces.Exchange = (*Fake)(nil)

func CandleKey(sym, timeframe string) string { return sym + "|" + timeframe }

func (f *Fake) SetCandles(sym, timeframe string, cs []types.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CandleData == nil {
		f.CandleData = map[string][]types.Candle{}
	}
	f.CandleData[CandleKey(sym, timeframe)] = cs
}

func (f *Fake) Candles(_ context.Context, sym, timeframe string, limit int) ([]types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CandleErr != nil {
		return nil, f.CandleErr
	}
	cs, ok := f.CandleData[CandleKey(sym, timeframe)]
	if !ok {
		return nil, fmt.Errorf("%w: no candles for %s %s", exchange.ErrRejected, sym, timeframe)
	}
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return append([]types.Candle(nil), cs...), nil
}

func (f *Fake) Ticker(_ context.Context, sym string) (types.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Tickers[sym]
	if !ok {
		return types.Ticker{}, fmt.Errorf("%w: no ticker for %s", exchange.ErrTransient, sym)
	}
	return t, nil
}

func (f *Fake) Balances(context.Context) (map[string]types.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	out := make(map[string]types.Balance, len(f.Accounts))
	for k, v := range f.Accounts {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Tradable(_ context.Context, sym string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unlisted[sym], nil
}

func (f *Fake) MarketBuy(_ context.Context, sym string, qty float64) (types.OrderResp, error) {
	return f.order(types.SideBuy, sym, qty, f.BuyErr)
}

func (f *Fake) MarketSell(_ context.Context, sym string, qty float64) (types.OrderResp, error) {
	return f.order(types.SideSell, sym, qty, f.SellErr)
}

func (f *Fake) order(side, sym string, qty float64, err error) (types.OrderResp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		return types.OrderResp{}, err
	}
	f.Orders = append(f.Orders, Order{Side: side, Symbol: sym, Qty: qty})
	f.seq++
	if f.Unfilled {
		return types.OrderResp{OrderID: fmt.Sprintf("T-%d", f.seq), Status: "EXPIRED"}, nil
	}
	price := f.FillPrice
	if price == 0 {
		t := f.Tickers[sym]
		price = t.Ask
		if side == types.SideSell {
			price = t.Bid
		}
	}
	return types.OrderResp{OrderID: fmt.Sprintf("T-%d", f.seq), Status: "FILLED", FilledQty: qty, AvgPrice: price}, nil
}

// Sells returns the recorded sell orders.
func (f *Fake) Sells() []Order { return f.bySide(types.SideSell) }

// Buys returns the recorded buy orders.
func (f *Fake) Buys() []Order { return f.bySide(types.SideBuy) }

func (f *Fake) bySide(side string) []Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.Orders {
		if o.Side == side {
			out = append(out, o)
		}
	}
	return out
}
