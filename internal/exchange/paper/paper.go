// Package paper simulates order execution for DRY_RUN mode.
//
// Market data comes from an upstream exchange; orders never leave the process. Buys fill at the ask and
// sells at the bid, and balances live in memory.
package paper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/symbol"
	"spot-swing-bot/internal/types"
)

type Exchange struct {
	market interfaces.Exchange
	quote  string

	mu       sync.Mutex
	balances map[string]float64
}

var _ interfaces.Exchange = (*Exchange)(nil)

// New seeds the simulated account with balances (currency -> free amount).
func New(market interfaces.Exchange, quote string, balances map[string]float64) *Exchange {
	if quote == "" {
		quote = symbol.DefaultQuote
	}
	b := make(map[string]float64, len(balances))
	for k, v := range balances {
		b[strings.ToUpper(k)] = v
	}
	return &Exchange{market: market, quote: strings.ToUpper(quote), balances: b}
}

func (e *Exchange) Candles(ctx context.Context, sym, timeframe string, limit int) ([]types.Candle, error) {
	return e.market.Candles(ctx, sym, timeframe, limit)
}

func (e *Exchange) Ticker(ctx context.Context, sym string) (types.Ticker, error) {
	return e.market.Ticker(ctx, sym)
}

func (e *Exchange) Tradable(ctx context.Context, sym string) (bool, error) {
	return e.market.Tradable(ctx, sym)
}

func (e *Exchange) Balances(ctx context.Context) (map[string]types.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]types.Balance, len(e.balances))
	for k, v := range e.balances {
		if v > 0 {
			out[k] = types.Balance{Free: v, Total: v}
		}
	}
	return out, nil
}

func (e *Exchange) MarketBuy(ctx context.Context, sym string, qty float64) (types.OrderResp, error) {
	return e.fill(ctx, sym, types.SideBuy, qty)
}

func (e *Exchange) MarketSell(ctx context.Context, sym string, qty float64) (types.OrderResp, error) {
	return e.fill(ctx, sym, types.SideSell, qty)
}

func (e *Exchange) fill(ctx context.Context, sym, side string, qty float64) (types.OrderResp, error) {
	if !(qty > 0) {
		return types.OrderResp{}, fmt.Errorf("%w: quantity %v", exchange.ErrRejected, qty)
	}
	p, err := symbol.Parse(sym, e.quote)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("%w: %s", exchange.ErrRejected, sym)
	}
	t, err := e.market.Ticker(ctx, p.Key())
	if err != nil {
		return types.OrderResp{}, err
	}
	price := t.Ask
	if side == types.SideSell {
		price = t.Bid
	}
	if !(price > 0) {
		price = t.Last
	}
	if !(price > 0) {
		return types.OrderResp{}, fmt.Errorf("%w: no price for %s", exchange.ErrBadData, p.Key())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cost := qty * price
	switch side {
	case types.SideBuy:
		if e.balances[p.Quote] < cost {
			return types.OrderResp{}, fmt.Errorf("%w: insufficient %s balance %.8f for %.8f", exchange.ErrRejected, p.Quote, e.balances[p.Quote], cost)
		}
		e.balances[p.Quote] -= cost
		e.balances[p.Base] += qty
	case types.SideSell:
		if e.balances[p.Base] < qty {
			return types.OrderResp{}, fmt.Errorf("%w: insufficient %s balance %.8f for %.8f", exchange.ErrRejected, p.Base, e.balances[p.Base], qty)
		}
		e.balances[p.Base] -= qty
		e.balances[p.Quote] += cost
	}
	return types.OrderResp{
		OrderID:   "SIM-" + uuid.NewString(),
		Status:    "FILLED",
		Message:   "DRY_RUN",
		FilledQty: qty,
		AvgPrice:  price,
	}, nil
}
