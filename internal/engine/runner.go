package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
	"spot-swing-bot/internal/trace"
	"spot-swing-bot/internal/tradelog"
	"spot-swing-bot/internal/types"
)

// Runner drives the scan and exit loops.
type Runner struct {
	Feed       interfaces.SymbolFeed
	Scanner    interfaces.Scanner
	Reconciler interfaces.Reconciler

	// Eod is optional; when set the previous UTC day is summarized after rollover.
	Eod           interfaces.EodSummarizer
	ScanInterval  time.Duration
	ExitInterval  time.Duration
	RetentionDays int

	now func() time.Time
}

// Run starts both loops and blocks until ctx is done. Each loop fires immediately and then on its
// interval; a loop never starts a cycle while its previous one is running.
func (r *Runner) Run(ctx context.Context) {
	logger.Info(ctx, "Runner started", "scan_interval", r.ScanInterval.String(), "exit_interval", r.ExitInterval.String())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		loop(ctx, r.ScanInterval, func(ctx context.Context) { _, _ = r.ScanOnce(ctx) })
	}()
	go func() {
		defer wg.Done()
		loop(ctx, r.ExitInterval, func(ctx context.Context) { _, _ = r.ReconcileOnce(ctx) })
	}()
	wg.Wait()
	logger.Info(ctx, "Runner stopped")
}

func loop(ctx context.Context, every time.Duration, cycle func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	cycle(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cycle(ctx)
		}
	}
}

// ScanOnce runs one buy cycle over the feed's candidates.
func (r *Runner) ScanOnce(ctx context.Context) ([]types.Outcome, error) {
	defer metrics.ObserveCycle("scan", time.Now())
	var outcomes []types.Outcome
	err := trace.Run(ctx, "cycle.scan", func(ctx context.Context) error {
		symbols, err := r.Feed.Symbols(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "Candidate feed failed", err)
			return err
		}
		if len(symbols) == 0 {
			logger.Info(ctx, "No candidates this cycle")
			return nil
		}
		outcomes = r.Scanner.Scan(ctx, symbols)
		return nil
	}, attribute.String("cycle", "scan"))
	return outcomes, err
}

// ReconcileOnce runs one exit sweep, then the journal housekeeping.
func (r *Runner) ReconcileOnce(ctx context.Context) (types.ExitReport, error) {
	defer metrics.ObserveCycle("exit", time.Now())
	var report types.ExitReport
	err := trace.Run(ctx, "cycle.exit", func(ctx context.Context) error {
		var err error
		report, err = r.Reconciler.Reconcile(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "Exit sweep failed", err, "class", string(Classify(err)))
		}
		return err
	}, attribute.String("cycle", "exit"))
	r.housekeeping(ctx)
	return report, err
}

func (r *Runner) housekeeping(ctx context.Context) {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	if r.Eod != nil {
		if day, ok := r.Eod.Pending(now()); ok {
			if _, err := r.Eod.SummarizeDay(ctx, day); err != nil {
				logger.ErrorWithErr(ctx, "Daily summary failed", err, "day", day.Format("2006-01-02"))
			}
		}
	}
	if err := tradelog.CompressOlder(r.RetentionDays); err != nil {
		logger.Warn(ctx, "Journal compression failed", "error", err.Error())
	}
}
