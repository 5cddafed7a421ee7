// Package engine runs the buy scan and the exit sweep against the exchange and the position ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/feed"
	"spot-swing-bot/internal/filter"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/ledger"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
	"spot-swing-bot/internal/notify"
	"spot-swing-bot/internal/risk"
	"spot-swing-bot/internal/store"
	"spot-swing-bot/internal/symbol"
	"spot-swing-bot/internal/types"
)

// Skip reasons raised by the scanner itself, next to the filter reasons.
const (
	ReasonAlreadyOpen    = "already_open"
	ReasonNotTradable    = "not_tradable"
	ReasonRecommendation = "recommendation_filter"
	ReasonInvalidStop    = "invalid_stop"
	ReasonBelowMinimum   = "below_min_notional"
	ReasonInvalidQty     = "invalid_quantity"
)

// Scanner evaluates candidates and buys the admitted ones.
type Scanner struct {
	cfg         *store.Config
	exchange    interfaces.Exchange
	ledger      *ledger.Ledger
	recommender interfaces.Recommender
	notifier    interfaces.Notifier
	orders      *orderExecutor
	sizer       risk.Sizer
	now         func() time.Time
}

var _ interfaces.Scanner = (*Scanner)(nil)

// NewScanner builds a scanner. rec may be nil to disable the rating gate; n may be nil.
func NewScanner(cfg *store.Config, ex interfaces.Exchange, led *ledger.Ledger, rec interfaces.Recommender, n interfaces.Notifier) *Scanner {
	if n == nil {
		n = notify.Noop{}
	}
	return &Scanner{
		cfg:         cfg,
		exchange:    ex,
		ledger:      led,
		recommender: rec,
		notifier:    n,
		orders:      newOrderExecutor(ex),
		sizer: risk.Sizer{
			RiskFraction:     cfg.Risk.PerTradeRisk,
			MinRewardRisk:    cfg.Risk.MinRewardRisk,
			MinNotional:      cfg.Risk.MinNotional,
			FallbackNotional: cfg.Risk.FallbackNotional,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Scan evaluates up to MaxSymbolsPerCycle symbols in order. A failing symbol never stops the cycle.
func (s *Scanner) Scan(ctx context.Context, symbols []string) []types.Outcome {
	if limit := s.cfg.Universe.MaxSymbolsPerCycle; limit > 0 && len(symbols) > limit {
		logger.Info(ctx, "Candidate list truncated", "candidates", len(symbols), "max", limit)
		symbols = symbols[:limit]
	}

	ref := s.reference(ctx)
	out := make([]types.Outcome, 0, len(symbols))
	var bought, skipped, failed int
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		o := s.evaluate(ctx, sym, ref)
		switch o.Status {
		case types.StatusBought:
			bought++
		case types.StatusSkipped:
			skipped++
		default:
			failed++
		}
		out = append(out, o)
	}
	logger.Info(ctx, "Scan cycle finished",
		"candidates", len(symbols),
		"bought", bought,
		"skipped", skipped,
		"failed", failed,
	)
	return out
}

// Evaluate runs the full pipeline for one symbol, fetching the reference series itself.
func (s *Scanner) Evaluate(ctx context.Context, sym string) types.Outcome {
	return s.evaluate(ctx, sym, s.reference(ctx))
}

// reference fetches the market leader series once per cycle. A failure leaves it empty, which the filter
// reports as insufficient data for every candidate.
func (s *Scanner) reference(ctx context.Context) []types.Candle {
	key := symbol.Key(s.cfg.Reference, s.cfg.Quote)
	cs, err := s.exchange.Candles(ctx, key, s.cfg.Timeframes.Short, s.cfg.Timeframes.ShortLimit)
	if err != nil {
		logger.Warn(ctx, "Reference series unavailable", "symbol", key, "error", err.Error())
		return nil
	}
	return cs
}

func skip(o types.Outcome, reason string, err error) types.Outcome {
	o.Status = types.StatusSkipped
	o.Reason = reason
	o.Err = err
	return o
}

func fail(o types.Outcome, err error) types.Outcome {
	o.Status = types.StatusFailed
	o.Reason = string(Classify(err))
	o.Err = err
	return o
}

func (s *Scanner) evaluate(ctx context.Context, sym string, ref []types.Candle) types.Outcome {
	o := types.Outcome{Symbol: sym}
	p, err := symbol.Parse(sym, s.cfg.Quote)
	if err != nil {
		return fail(o, fmt.Errorf("%w: %s: %v", exchange.ErrBadData, sym, err))
	}
	key := p.Key()
	o.Key = key
	if p.Quote != s.cfg.Quote {
		// exits only look at <base>-<quote> holdings, so such a position could never be closed
		logger.Warn(ctx, "Candidate quoted in another currency", "symbol", key, "quote", s.cfg.Quote)
		return fail(o, fmt.Errorf("%w: %s is not quoted in %s", exchange.ErrBadData, key, s.cfg.Quote))
	}

	if _, open, err := s.ledger.Get(ctx, key); err != nil {
		return fail(o, persistence(err))
	} else if open {
		logger.Debug(ctx, "Position already open", "symbol", key)
		return skip(o, ReasonAlreadyOpen, nil)
	}

	if s.cfg.Universe.CheckTradable {
		ok, err := s.exchange.Tradable(ctx, key)
		if err != nil {
			return fail(o, err)
		}
		if !ok {
			logger.Info(ctx, "Symbol not tradable on spot", "symbol", key)
			return skip(o, ReasonNotTradable, nil)
		}
	}

	if s.recommender != nil {
		rating, err := s.recommender.Recommendation(ctx, key)
		if err != nil {
			logger.Warn(ctx, "Recommendation unavailable", "symbol", key, "error", err.Error())
			return skip(o, ReasonRecommendation, err)
		}
		if !feed.Allowed(rating, s.cfg.Universe.AllowedRatings) {
			logger.Info(ctx, "Rejected by recommendation", "symbol", key, "rating", rating)
			return skip(o, ReasonRecommendation, nil)
		}
	}

	short, err := s.exchange.Candles(ctx, key, s.cfg.Timeframes.Short, s.cfg.Timeframes.ShortLimit)
	if err != nil {
		return fail(o, err)
	}
	higher, err := s.exchange.Candles(ctx, key, s.cfg.Timeframes.Higher, s.cfg.Timeframes.HigherLimit)
	if err != nil {
		return fail(o, err)
	}
	ticker, err := s.exchange.Ticker(ctx, key)
	if err != nil {
		return fail(o, err)
	}

	d := filter.Evaluate(filter.Inputs{Short: short, Higher: higher, Reference: ref, Ticker: ticker}, s.cfg.Filter)
	metrics.Decisions.WithLabelValues(string(d.Reason)).Inc()
	s.orders.logDecision(ctx, key, d)
	if !d.Admitted {
		return skip(o, string(d.Reason), nil)
	}

	// balance is read per decision so earlier buys in this cycle are accounted for
	balances, err := s.exchange.Balances(ctx)
	if err != nil {
		return fail(o, err)
	}
	free := balances[p.Quote].Free

	entry := ticker.Ask
	if !(entry > 0) {
		entry = ticker.Last
	}
	stop := risk.StopPrice(types.Lows(short), entry, d.Snapshot.ATR, s.cfg.Filter.StopLookback, s.cfg.Risk.StopATRMult)
	plan, err := s.sizer.Size(free, entry, stop)
	if err != nil {
		logger.Risk(ctx, key, "SIZING_REJECTED",
			"error", err.Error(),
			"balance", free,
			"entry", entry,
			"stop", stop,
		)
		return skip(o, sizingReason(err), err)
	}
	if plan.Capped || plan.Degraded {
		logger.Risk(ctx, key, "SIZE_ADJUSTED", "capped", plan.Capped, "degraded", plan.Degraded, "notional", plan.Notional)
	}
	o.Entry, o.Stop, o.TakeProfit, o.Qty = plan.Entry, plan.Stop, plan.TakeProfit, plan.Qty

	resp, err := s.orders.placeBuyOrder(ctx, key, plan, string(d.Reason))
	if err != nil {
		return fail(o, err)
	}
	o.OrderID = resp.OrderID
	o.Entry, o.Qty = resp.AvgPrice, resp.FilledQty

	rec := ledger.Record{
		Price:     resp.AvgPrice,
		Stop:      ledger.Float(plan.Stop),
		TP:        ledger.Float(plan.TakeProfit),
		Timestamp: s.now(),
	}
	if err := s.ledger.Put(ctx, key, rec); err != nil {
		// the order filled; the holding shows up as untracked until the ledger is repaired
		logger.ErrorWithErr(ctx, "Bought position not recorded in ledger", err,
			"symbol", key,
			"order_id", resp.OrderID,
			"price", rec.Price,
			"stop", plan.Stop,
			"take_profit", plan.TakeProfit,
		)
		s.notifier.Notify(ctx, fmt.Sprintf("LEDGER WRITE FAILED after BUY %s order %s", key, resp.OrderID))
		return fail(o, persistence(err))
	}

	s.notifier.Notify(ctx, fmt.Sprintf("BUY %s qty=%.8g @ %.8g stop=%.8g tp=%.8g", key, resp.FilledQty, rec.Price, plan.Stop, plan.TakeProfit))
	o.Status = types.StatusBought
	o.Reason = string(d.Reason)
	return o
}

func sizingReason(err error) string {
	switch {
	case errors.Is(err, risk.ErrInvalidStop):
		return ReasonInvalidStop
	case errors.Is(err, risk.ErrBelowMinNotional):
		return ReasonBelowMinimum
	default:
		return ReasonInvalidQty
	}
}
