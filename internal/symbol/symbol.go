// Package symbol maps the separator conventions used by feeds and venues onto one canonical ledger key.
package symbol

import (
	"errors"
	"strings"
)

// DefaultQuote is used when no quote currency is configured.
const DefaultQuote = "USDT"

var ErrUnknownPair = errors.New("symbol: cannot split pair")

// knownQuotes are recognized as the quote of a compact symbol that does not end in the configured quote,
// longest first so FDUSD wins over USD-suffixed names.
var knownQuotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "TRY"}

// minForeignBase keeps short wrapped tickers such as WBTC from being split.
const minForeignBase = 3

// Pair is a base/quote instrument.
type Pair struct {
	Base  string
	Quote string
}

// Key renders the canonical form, e.g. BTC-USDT.
func (p Pair) Key() string { return p.Base + "-" + p.Quote }

// Compact renders the venue form without separator, e.g. BTCUSDT.
func (p Pair) Compact() string { return p.Base + p.Quote }

func isSep(r rune) bool {
	switch r {
	case '/', '-', '_', ':', ' ', '.':
		return true
	}
	return false
}

// Parse splits raw into base and quote. Separated inputs are split on the separator; compact inputs are
// split by stripping quote as a suffix, or another known quote (ETHBTC is ETH-BTC). A bare currency is
// paired with quote.
func Parse(raw, quote string) (Pair, error) {
	if quote == "" {
		quote = DefaultQuote
	}
	quote = strings.ToUpper(strings.TrimSpace(quote))
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Pair{}, ErrUnknownPair
	}
	parts := strings.FieldsFunc(s, isSep)
	switch len(parts) {
	case 2:
		return Pair{Base: parts[0], Quote: parts[1]}, nil
	case 1:
		if strings.HasSuffix(parts[0], quote) && len(parts[0]) > len(quote) {
			return Pair{Base: strings.TrimSuffix(parts[0], quote), Quote: quote}, nil
		}
		for _, q := range knownQuotes {
			if q != quote && strings.HasSuffix(parts[0], q) && len(parts[0])-len(q) >= minForeignBase {
				return Pair{Base: strings.TrimSuffix(parts[0], q), Quote: q}, nil
			}
		}
		if parts[0] != quote {
			return Pair{Base: parts[0], Quote: quote}, nil
		}
	}
	return Pair{}, ErrUnknownPair
}

// Key normalizes raw to the canonical key. Unparseable input is returned upper-cased and trimmed so the
// mapping stays deterministic.
func Key(raw, quote string) string {
	p, err := Parse(raw, quote)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(raw))
	}
	return p.Key()
}
