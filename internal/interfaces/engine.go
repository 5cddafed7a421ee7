package interfaces

import (
	"context"

	"spot-swing-bot/internal/types"
)

// Scanner runs one buy cycle over the candidate list.
type Scanner interface {
	Scan(ctx context.Context, symbols []string) []types.Outcome
}

// Reconciler runs one exit sweep over held balances.
type Reconciler interface {
	Reconcile(ctx context.Context) (types.ExitReport, error)
}
