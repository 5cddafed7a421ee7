package engineobs

import (
	"context"
	"time"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/trace"
	"spot-swing-bot/internal/types"
)

type observableScanner struct {
	scanner interfaces.Scanner
}

var _ interfaces.Scanner = (*observableScanner)(nil)

func WrapScanner(s interfaces.Scanner) interfaces.Scanner {
	return &observableScanner{
		scanner: s,
	}
}

func (obs *observableScanner) Scan(ctx context.Context, symbols []string) []types.Outcome {
	ctx, span := trace.StartSpan(ctx, "engine.Scan")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting scan cycle",
		"candidates", len(symbols),
	)

	outcomes := obs.scanner.Scan(ctx, symbols)
	for _, o := range outcomes {
		if o.Status == types.StatusFailed {
			logger.ErrorWithErrSkip(ctx, 1, "Candidate failed", o.Err,
				"symbol", o.Symbol,
				"class", o.Reason,
			)
		}
	}

	logger.InfoSkip(ctx, 1, "Scan cycle completed",
		"evaluated", len(outcomes),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return outcomes
}

type observableReconciler struct {
	reconciler interfaces.Reconciler
}

var _ interfaces.Reconciler = (*observableReconciler)(nil)

func WrapReconciler(r interfaces.Reconciler) interfaces.Reconciler {
	return &observableReconciler{
		reconciler: r,
	}
}

func (obr *observableReconciler) Reconcile(ctx context.Context) (types.ExitReport, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Reconcile")
	defer span.End()

	start := time.Now()

	report, err := obr.reconciler.Reconcile(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Exit sweep failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}
	for _, c := range report.Checked {
		if c.Err != nil {
			logger.ErrorWithErrSkip(ctx, 1, "Exit check failed", c.Err,
				"symbol", c.Key,
				"state", c.State,
			)
		}
	}

	logger.InfoSkip(ctx, 1, "Exit sweep completed",
		"checked", len(report.Checked),
		"exited", len(report.Exited()),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
