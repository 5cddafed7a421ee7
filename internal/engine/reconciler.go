package engine

import (
	"context"
	"fmt"
	"sort"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/ledger"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
	"spot-swing-bot/internal/notify"
	"spot-swing-bot/internal/store"
	"spot-swing-bot/internal/symbol"
	"spot-swing-bot/internal/types"
)

// ExitState is the lifecycle state of a tracked holding.
type ExitState int

const (
	NoPosition ExitState = iota
	Open
	ClosedTP
	ClosedSL
	ClosedGain
)

func (s ExitState) String() string {
	switch s {
	case NoPosition:
		return "NO_POSITION"
	case Open:
		return "OPEN"
	case ClosedTP:
		return "CLOSED_TP"
	case ClosedSL:
		return "CLOSED_SL"
	case ClosedGain:
		return "CLOSED_GAIN"
	}
	return fmt.Sprintf("ExitState(%d)", int(s))
}

// Closed reports whether s calls for a sell.
func (s ExitState) Closed() bool { return s == ClosedTP || s == ClosedSL || s == ClosedGain }

// ExitConfig holds the exit rules.
type ExitConfig struct {
	UseStopForSpot    bool
	FlatGainThreshold float64
}

// DecideExit applies the exit rules to one record at price. The take-profit is checked first, then the
// stop, and the flat gain rule only applies to records carrying neither.
func DecideExit(rec ledger.Record, price float64, cfg ExitConfig) ExitState {
	if !(price > 0) || !(rec.Price > 0) {
		return Open
	}
	if rec.TP != nil && price >= *rec.TP {
		return ClosedTP
	}
	if rec.Stop != nil && cfg.UseStopForSpot && price <= *rec.Stop {
		return ClosedSL
	}
	if rec.TP == nil && rec.Stop == nil && (price-rec.Price)/rec.Price > cfg.FlatGainThreshold {
		return ClosedGain
	}
	return Open
}

// Reconciler sells tracked holdings whose exit rule fired.
type Reconciler struct {
	cfg      *store.Config
	exchange interfaces.Exchange
	ledger   *ledger.Ledger
	notifier interfaces.Notifier
	orders   *orderExecutor
	exit     ExitConfig
}

var _ interfaces.Reconciler = (*Reconciler)(nil)

func NewReconciler(cfg *store.Config, ex interfaces.Exchange, led *ledger.Ledger, n interfaces.Notifier) *Reconciler {
	if n == nil {
		n = notify.Noop{}
	}
	return &Reconciler{
		cfg:      cfg,
		exchange: ex,
		ledger:   led,
		notifier: n,
		orders:   newOrderExecutor(ex),
		exit: ExitConfig{
			UseStopForSpot:    cfg.Exit.UseStopForSpot,
			FlatGainThreshold: cfg.Exit.FlatGainThreshold,
		},
	}
}

// Reconcile runs one exit sweep. It fails only when the ledger or the balances cannot be read; per-symbol
// failures are reported in the results.
func (r *Reconciler) Reconcile(ctx context.Context) (types.ExitReport, error) {
	var report types.ExitReport
	positions, err := r.ledger.Snapshot(ctx)
	if err != nil {
		return report, persistence(err)
	}
	balances, err := r.exchange.Balances(ctx)
	if err != nil {
		return report, err
	}

	currencies := make([]string, 0, len(balances))
	for cur := range balances {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)

	held := make(map[string]bool, len(currencies))
	for _, cur := range currencies {
		if ctx.Err() != nil {
			break
		}
		bal := balances[cur]
		if cur == r.cfg.Quote || !(bal.Total > 0) {
			continue
		}
		key := symbol.Pair{Base: cur, Quote: r.cfg.Quote}.Key()
		held[key] = true

		rec, tracked := positions[key]
		if !tracked {
			logger.Info(ctx, "Untracked holding skipped", "symbol", key, "free", bal.Free, "total", bal.Total)
			report.Untracked = append(report.Untracked, key)
			continue
		}

		res, dust := r.check(ctx, key, rec, bal)
		if dust {
			report.Dust = append(report.Dust, key)
			continue
		}
		report.Checked = append(report.Checked, res)
	}

	for _, key := range positions.Keys() {
		if !held[key] {
			logger.Warn(ctx, "Tracked position has no balance", "symbol", key, "entry", positions[key].Price)
			report.Stale = append(report.Stale, key)
		}
	}

	logger.Info(ctx, "Exit sweep finished",
		"checked", len(report.Checked),
		"exited", len(report.Exited()),
		"untracked", len(report.Untracked),
		"dust", len(report.Dust),
		"stale", len(report.Stale),
	)
	return report, nil
}

// check decides one tracked holding and executes the sell. dust is true when the free balance is worth
// less than the dust notional; such holdings are left alone.
func (r *Reconciler) check(ctx context.Context, key string, rec ledger.Record, bal types.Balance) (res types.ExitResult, dust bool) {
	res = types.ExitResult{Key: key, Entry: rec.Price, Qty: bal.Free, State: Open.String()}

	t, err := r.exchange.Ticker(ctx, key)
	if err != nil {
		res.Err = err
		return res, false
	}
	price := t.Last
	if !(price > 0) {
		price = t.Bid
	}
	res.Price = price
	if bal.Free*price < r.cfg.Exit.DustNotional {
		logger.Debug(ctx, "Dust holding skipped", "symbol", key, "free", bal.Free, "price", price)
		return res, true
	}

	state := DecideExit(rec, price, r.exit)
	res.State = state.String()
	metrics.Exits.WithLabelValues(res.State).Inc()
	if !state.Closed() {
		logger.Debug(ctx, "Position kept open", "symbol", key, "price", price, "entry", rec.Price)
		return res, false
	}

	logger.Info(ctx, "Exit triggered",
		"symbol", key,
		"exit_state", res.State,
		"price", price,
		"entry", rec.Price,
		"qty", bal.Free,
	)
	resp, err := r.orders.placeSellOrder(ctx, key, bal.Free, price, rec.Price, state)
	if err != nil {
		// the record stays so the next sweep retries
		res.Err = err
		return res, false
	}
	res.OrderID = resp.OrderID
	res.Price = resp.AvgPrice

	if err := r.ledger.Remove(ctx, key); err != nil {
		logger.ErrorWithErr(ctx, "Sold position still in ledger", err, "symbol", key, "order_id", resp.OrderID)
		r.notifier.Notify(ctx, fmt.Sprintf("LEDGER WRITE FAILED after SELL %s order %s", key, resp.OrderID))
		res.Err = persistence(err)
		return res, false
	}

	pnl := (resp.AvgPrice - rec.Price) * resp.FilledQty
	r.notifier.Notify(ctx, fmt.Sprintf("SELL %s %s qty=%.8g @ %.8g entry=%.8g pnl=%.4f", key, res.State, resp.FilledQty, resp.AvgPrice, rec.Price, pnl))
	return res, false
}
