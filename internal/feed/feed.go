// Package feed supplies candidate symbols for the buy cycle.
package feed

import (
	"context"

	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/symbol"
)

// Static returns a fixed list from configuration.
type Static struct {
	symbols []string
}

var _ interfaces.SymbolFeed = (*Static)(nil)

func NewStatic(symbols []string, quote string) *Static {
	return &Static{symbols: Normalize(symbols, quote)}
}

func (s *Static) Symbols(context.Context) ([]string, error) {
	return append([]string(nil), s.symbols...), nil
}

// Normalize maps raw symbols to canonical keys, dropping blanks and duplicates while keeping order.
func Normalize(raw []string, quote string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p, err := symbol.Parse(r, quote)
		if err != nil {
			continue
		}
		k := p.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
