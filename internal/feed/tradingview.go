package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spot-swing-bot/internal/api"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/symbol"
)

const DefaultScannerURL = "https://scanner.tradingview.com/crypto/scan"

// Ratings returned by Recommendation.
const (
	RatingStrongBuy  = "STRONG_BUY"
	RatingBuy        = "BUY"
	RatingNeutral    = "NEUTRAL"
	RatingSell       = "SELL"
	RatingStrongSell = "STRONG_SELL"
)

// TradingView asks the public screener for the aggregate technical rating of a symbol.
type TradingView struct {
	url      string
	exchange string
	quote    string
	client   *api.Client
	retry    api.RetryConfig
}

var _ interfaces.Recommender = (*TradingView)(nil)

func NewTradingView(url, quote string, timeout time.Duration) *TradingView {
	if url == "" {
		url = DefaultScannerURL
	}
	return &TradingView{
		url:      url,
		exchange: "BINANCE",
		quote:    quote,
		client:   api.NewClient(api.WithTimeout(timeout), api.WithLogging(logger.IsDebugEnabled())),
		retry:    api.RetryConfig{MaxAttempts: 2, InitialWait: time.Second},
	}
}

type scanRequest struct {
	Symbols struct {
		Tickers []string `json:"tickers"`
	} `json:"symbols"`
	Columns []string `json:"columns"`
}

type scanResponse struct {
	Data []struct {
		S string            `json:"s"`
		D []json.RawMessage `json:"d"`
	} `json:"data"`
}

// Recommendation returns one of the Rating constants. An unknown symbol yields an error.
func (t *TradingView) Recommendation(ctx context.Context, sym string) (string, error) {
	p, err := symbol.Parse(sym, t.quote)
	if err != nil {
		return "", err
	}
	var body scanRequest
	body.Symbols.Tickers = []string{t.exchange + ":" + p.Compact()}
	body.Columns = []string{"Recommend.All"}

	resp, err := t.client.PostWithRetry(ctx, t.url, body, t.retry)
	if err != nil {
		return "", fmt.Errorf("tradingview scan: %w", err)
	}
	var out scanResponse
	if err := resp.ParseJSON(&out); err != nil {
		return "", fmt.Errorf("tradingview scan: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].D) == 0 {
		return "", fmt.Errorf("tradingview scan: no rating for %s", p.Key())
	}
	return parseRating(out.Data[0].D[0])
}

// parseRating accepts either a textual rating or the numeric score in [-1, 1].
func parseRating(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.ToUpper(strings.TrimSpace(s)), nil
	}
	var f *float64
	if err := json.Unmarshal(v, &f); err != nil || f == nil {
		return "", fmt.Errorf("tradingview scan: unusable rating %s", string(v))
	}
	return RatingFromScore(*f), nil
}

// RatingFromScore buckets the screener's aggregate score the way its UI does.
func RatingFromScore(score float64) string {
	switch {
	case score >= 0.5:
		return RatingStrongBuy
	case score >= 0.1:
		return RatingBuy
	case score > -0.1:
		return RatingNeutral
	case score > -0.5:
		return RatingSell
	default:
		return RatingStrongSell
	}
}

// Allowed reports whether rating is in allowed, case-insensitively.
func Allowed(rating string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), rating) {
			return true
		}
	}
	return false
}
