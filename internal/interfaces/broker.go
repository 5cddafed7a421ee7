package interfaces

import (
	"context"

	"spot-swing-bot/internal/types"
)

// Exchange is the spot venue. Symbols are canonical keys (BTC-USDT); adapters translate to venue form.
type Exchange interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error)
	Ticker(ctx context.Context, symbol string) (types.Ticker, error)
	// Balances maps currency code to balance, zero lines omitted.
	Balances(ctx context.Context) (map[string]types.Balance, error)
	MarketBuy(ctx context.Context, symbol string, qty float64) (types.OrderResp, error)
	MarketSell(ctx context.Context, symbol string, qty float64) (types.OrderResp, error)
	// Tradable reports whether symbol is listed and open for spot trading.
	Tradable(ctx context.Context, symbol string) (bool, error)
}
