package exchangeobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
	"spot-swing-bot/internal/trace"
	"spot-swing-bot/internal/types"
)

// observableExchange wraps an Exchange with logging, tracing and request metrics
type observableExchange struct {
	exchange interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(exchange interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{exchange: exchange}
}

func span(ctx context.Context, op, symbol string) (context.Context, oteltrace.Span) {
	return trace.StartSpan(ctx, "exchange."+op, oteltrace.WithAttributes(attribute.String("symbol", symbol)))
}

func count(op string, err error) {
	metrics.ExchangeRequests.WithLabelValues(op, metrics.Result(err)).Inc()
}

// Candles fetches candles with observability
func (oe *observableExchange) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	ctx, sp := span(ctx, "Candles", symbol)
	defer sp.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "timeframe", timeframe, "limit", limit)

	candles, err := oe.exchange.Candles(ctx, symbol, timeframe, limit)
	count("candles", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "timeframe", timeframe)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched successfully", "symbol", symbol, "timeframe", timeframe, "count", len(candles))
	return candles, nil
}

// Ticker fetches the top of book with observability
func (oe *observableExchange) Ticker(ctx context.Context, symbol string) (types.Ticker, error) {
	ctx, sp := span(ctx, "Ticker", symbol)
	defer sp.End()

	t, err := oe.exchange.Ticker(ctx, symbol)
	count("ticker", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch ticker", err, "symbol", symbol)
		return types.Ticker{}, err
	}

	logger.DebugSkip(ctx, 1, "Ticker fetched", "symbol", symbol, "last", t.Last, "bid", t.Bid, "ask", t.Ask)
	return t, nil
}

// Balances fetches account balances with observability
func (oe *observableExchange) Balances(ctx context.Context) (map[string]types.Balance, error) {
	ctx, sp := trace.StartSpan(ctx, "exchange.Balances")
	defer sp.End()

	b, err := oe.exchange.Balances(ctx)
	count("balances", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balances", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Balances fetched", "currencies", len(b))
	return b, nil
}

// MarketBuy places a market buy with observability
func (oe *observableExchange) MarketBuy(ctx context.Context, symbol string, qty float64) (types.OrderResp, error) {
	return oe.order(ctx, types.SideBuy, symbol, qty, oe.exchange.MarketBuy)
}

// MarketSell places a market sell with observability
func (oe *observableExchange) MarketSell(ctx context.Context, symbol string, qty float64) (types.OrderResp, error) {
	return oe.order(ctx, types.SideSell, symbol, qty, oe.exchange.MarketSell)
}

func (oe *observableExchange) order(ctx context.Context, side, symbol string, qty float64,
	place func(context.Context, string, float64) (types.OrderResp, error)) (types.OrderResp, error) {
	ctx, sp := span(ctx, "Market"+side, symbol)
	defer sp.End()

	logger.InfoSkip(ctx, 2, "Placing order", "symbol", symbol, "side", side, "qty", qty)

	resp, err := place(ctx, symbol, qty)
	metrics.Orders.WithLabelValues(side, metrics.Result(err)).Inc()
	count("order", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Failed to place order", err, "symbol", symbol, "side", side, "qty", qty)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 2, "Order placed successfully",
		"symbol", symbol,
		"side", side,
		"order_id", resp.OrderID,
		"status", resp.Status,
		"filled_qty", resp.FilledQty,
		"avg_price", resp.AvgPrice,
	)
	return resp, nil
}

// Tradable checks the listing with observability
func (oe *observableExchange) Tradable(ctx context.Context, symbol string) (bool, error) {
	ctx, sp := span(ctx, "Tradable", symbol)
	defer sp.End()

	ok, err := oe.exchange.Tradable(ctx, symbol)
	count("exchange_info", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to check listing", err, "symbol", symbol)
		return false, err
	}
	return ok, nil
}
