package interfaces

import "context"

// SymbolFeed supplies the candidate symbols for a buy cycle.
type SymbolFeed interface {
	Symbols(ctx context.Context) ([]string, error)
}

// Recommender returns an external rating (e.g. STRONG_BUY) for a symbol.
type Recommender interface {
	Recommendation(ctx context.Context, symbol string) (string, error)
}

// Notifier delivers a human-readable message. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}
