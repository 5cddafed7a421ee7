package engine

import (
	"context"
	"fmt"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/filter"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/risk"
	"spot-swing-bot/internal/tradelog"
	"spot-swing-bot/internal/types"
)

// orderExecutor places market orders and journals the fills.
type orderExecutor struct {
	exchange interfaces.Exchange
}

func newOrderExecutor(ex interfaces.Exchange) *orderExecutor {
	return &orderExecutor{exchange: ex}
}

// placeBuyOrder executes a market buy for plan and journals it.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - key: Canonical symbol key
//   - plan: Sized order
//   - reason: Admission reason recorded in the journal
//
// Returns:
//   - resp: Order response; the fill price falls back to plan.Entry when the venue omitted it
//   - err: Error if the order was not confirmed or nothing was executed
func (oe *orderExecutor) placeBuyOrder(ctx context.Context, key string, plan risk.Plan, reason string) (types.OrderResp, error) {
	resp, err := oe.exchange.MarketBuy(ctx, key, plan.Qty)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place BUY order", err,
			"symbol", key,
			"qty", plan.Qty,
			"price", plan.Entry,
		)
		return types.OrderResp{}, err
	}
	if err := confirmFill(ctx, key, types.SideBuy, &resp, plan.Entry); err != nil {
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, key, types.SideBuy, resp.FilledQty, resp.AvgPrice, resp.OrderID,
		"stop", plan.Stop,
		"take_profit", plan.TakeProfit,
		"degraded", plan.Degraded,
	)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:     key,
		Side:       types.SideBuy,
		Qty:        resp.FilledQty,
		Price:      resp.AvgPrice,
		OrderID:    resp.OrderID,
		Reason:     reason,
		Stop:       plan.Stop,
		TakeProfit: plan.TakeProfit,
	})
	return resp, nil
}

// confirmFill rejects a response that executed nothing. A missing average price is replaced by the
// price the order was sized at.
func confirmFill(ctx context.Context, key, side string, resp *types.OrderResp, price float64) error {
	if !(resp.FilledQty > 0) {
		err := fmt.Errorf("%w: %s order %s executed nothing (status %s)", exchange.ErrRejected, side, resp.OrderID, resp.Status)
		logger.ErrorWithErr(ctx, "Order not filled", err, "symbol", key, "order_id", resp.OrderID)
		return err
	}
	if !(resp.AvgPrice > 0) {
		logger.Warn(ctx, "Fill price missing, using quote", "symbol", key, "order_id", resp.OrderID, "price", price)
		resp.AvgPrice = price
	}
	return nil
}

// placeSellOrder executes a market sell of qty and journals it under the exit state together with the
// position's entry price.
func (oe *orderExecutor) placeSellOrder(ctx context.Context, key string, qty, price, entry float64, state ExitState) (types.OrderResp, error) {
	resp, err := oe.exchange.MarketSell(ctx, key, qty)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place SELL order", err,
			"symbol", key,
			"qty", qty,
			"price", price,
			"exit_state", state.String(),
		)
		return types.OrderResp{}, err
	}
	if err := confirmFill(ctx, key, types.SideSell, &resp, price); err != nil {
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, key, types.SideSell, resp.FilledQty, resp.AvgPrice, resp.OrderID, "exit_state", state.String(), "entry", entry)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:     key,
		Side:       types.SideSell,
		Qty:        resp.FilledQty,
		Price:      resp.AvgPrice,
		OrderID:    resp.OrderID,
		Reason:     state.String(),
		EntryPrice: entry,
	})
	return resp, nil
}

// logDecision records a filter decision with its indicator snapshot.
func (oe *orderExecutor) logDecision(ctx context.Context, key string, d filter.Decision) {
	action := "SKIP"
	if d.Admitted {
		action = types.SideBuy
	}
	ind := d.Snapshot.Map()
	logger.Decision(ctx, key, action, string(d.Reason), "indicators", ind)
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     key,
		Admitted:   d.Admitted,
		Reason:     string(d.Reason),
		Price:      d.Snapshot.Close,
		Indicators: ind,
	})
}
