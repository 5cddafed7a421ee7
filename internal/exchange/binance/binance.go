// Package binance is a REST client for the Binance spot API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/symbol"
	"spot-swing-bot/internal/types"
)

const recvWindow = "5000"

type Config struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	Quote             string
	RequestsPerSecond float64
	Timeout           time.Duration

	// BreakerFailures consecutive transient failures open the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	mu      sync.Mutex
	symbols map[string]symbolInfo
}

var _ interfaces.Exchange = (*Client)(nil)

type symbolInfo struct {
	tradable bool
	step     decimal.Decimal
	minQty   decimal.Decimal
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Quote == "" {
		cfg.Quote = symbol.DefaultQuote
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	st := gobreaker.Settings{Name: "binance", Timeout: cfg.BreakerCooldown}
	failures := cfg.BreakerFailures
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	// rejected requests are the caller's problem, not the venue's health
	st.IsSuccessful = func(err error) bool { return err == nil || !errors.Is(err, exchange.ErrTransient) }

	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker(st),
		now:     time.Now,
		symbols: make(map[string]symbolInfo),
	}
}

func (c *Client) venueSymbol(key string) (string, error) {
	p, err := symbol.Parse(key, c.cfg.Quote)
	if err != nil {
		return "", fmt.Errorf("%w: %s", exchange.ErrRejected, key)
	}
	return p.Compact(), nil
}

type apiError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance %d (code %d): %s", e.Status, e.Code, e.Msg)
}

// do sends one request through the limiter and breaker and decodes the JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, method, path, params, signed, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", exchange.ErrTransient, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("recvWindow", recvWindow)
	}
	q := params.Encode()
	if signed {
		// signature goes last, over the exact payload sent
		q += "&signature=" + sign(c.cfg.APISecret, q)
	}
	u := c.cfg.BaseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if q != "" {
			u += "?" + q
		}
	} else {
		body = strings.NewReader(q)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", exchange.ErrTransient, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", exchange.ErrTransient, err)
	}

	if resp.StatusCode >= 300 {
		ae := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(b, ae) != nil || ae.Msg == "" {
			ae.Msg = strings.TrimSpace(string(b))
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
			return fmt.Errorf("%w: %w", exchange.ErrTransient, ae)
		}
		return fmt.Errorf("%w: %w", exchange.ErrRejected, ae)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("%w: %s: %v", exchange.ErrBadData, path, err)
		}
	}
	return nil
}

// sign is HMAC-SHA256 of the encoded query, hex encoded.
func sign(secret, payload string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(payload))
	return hex.EncodeToString(m.Sum(nil))
}

func num(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", exchange.ErrBadData, s)
	}
	return f, nil
}

// Candles returns closed bars, oldest first. The still-forming bar is dropped.
func (c *Client) Candles(ctx context.Context, key, timeframe string, limit int) ([]types.Candle, error) {
	sym, err := c.venueSymbol(key)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit+1))

	var rows [][]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v3/klines", params, false, &rows); err != nil {
		return nil, err
	}
	nowMs := c.now().UnixMilli()
	out := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 7 {
			return nil, fmt.Errorf("%w: kline with %d fields", exchange.ErrBadData, len(r))
		}
		var openTime, closeTime int64
		var o, h, l, cl, v string
		for i, dst := range []any{&openTime, &o, &h, &l, &cl, &v, &closeTime} {
			if err := json.Unmarshal(r[i], dst); err != nil {
				return nil, fmt.Errorf("%w: kline field %d: %v", exchange.ErrBadData, i, err)
			}
		}
		if closeTime >= nowMs {
			continue
		}
		candle := types.Candle{Ts: openTime}
		for _, f := range []struct {
			s   string
			dst *float64
		}{{o, &candle.Open}, {h, &candle.High}, {l, &candle.Low}, {cl, &candle.Close}, {v, &candle.Vol}} {
			if *f.dst, err = num(f.s); err != nil {
				return nil, err
			}
		}
		out = append(out, candle)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Ticker returns the 24h rolling ticker with top of book.
func (c *Client) Ticker(ctx context.Context, key string) (types.Ticker, error) {
	sym, err := c.venueSymbol(key)
	if err != nil {
		return types.Ticker{}, err
	}
	var raw struct {
		LastPrice   string `json:"lastPrice"`
		BidPrice    string `json:"bidPrice"`
		AskPrice    string `json:"askPrice"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/ticker/24hr", url.Values{"symbol": {sym}}, false, &raw); err != nil {
		return types.Ticker{}, err
	}
	t := types.Ticker{Symbol: symbol.Key(key, c.cfg.Quote)}
	for _, f := range []struct {
		s   string
		dst *float64
	}{{raw.LastPrice, &t.Last}, {raw.BidPrice, &t.Bid}, {raw.AskPrice, &t.Ask}, {raw.QuoteVolume, &t.QuoteVolume24h}} {
		if *f.dst, err = num(f.s); err != nil {
			return types.Ticker{}, err
		}
	}
	return t, nil
}

// Balances returns non-zero account lines.
func (c *Client) Balances(ctx context.Context) (map[string]types.Balance, error) {
	var raw struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", url.Values{"omitZeroBalances": {"true"}}, true, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]types.Balance, len(raw.Balances))
	for _, b := range raw.Balances {
		free, err := num(b.Free)
		if err != nil {
			return nil, err
		}
		locked, err := num(b.Locked)
		if err != nil {
			return nil, err
		}
		if free+locked <= 0 {
			continue
		}
		out[strings.ToUpper(b.Asset)] = types.Balance{Free: free, Total: free + locked}
	}
	return out, nil
}

func (c *Client) info(ctx context.Context, sym string) (symbolInfo, error) {
	c.mu.Lock()
	si, ok := c.symbols[sym]
	c.mu.Unlock()
	if ok {
		return si, nil
	}

	var raw struct {
		Symbols []struct {
			Symbol               string `json:"symbol"`
			Status               string `json:"status"`
			IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
			Filters              []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				MinQty     string `json:"minQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", url.Values{"symbol": {sym}}, false, &raw)
	var ae *apiError
	if errors.As(err, &ae) && ae.Code == -1121 {
		// invalid symbol
		si = symbolInfo{}
	} else if err != nil {
		return symbolInfo{}, err
	} else {
		for _, s := range raw.Symbols {
			if s.Symbol != sym {
				continue
			}
			si.tradable = s.Status == "TRADING" && s.IsSpotTradingAllowed
			for _, f := range s.Filters {
				if f.FilterType != "LOT_SIZE" {
					continue
				}
				if si.step, err = decimal.NewFromString(f.StepSize); err != nil {
					return symbolInfo{}, fmt.Errorf("%w: step size %q", exchange.ErrBadData, f.StepSize)
				}
				if si.minQty, err = decimal.NewFromString(f.MinQty); err != nil {
					return symbolInfo{}, fmt.Errorf("%w: min qty %q", exchange.ErrBadData, f.MinQty)
				}
			}
		}
	}

	c.mu.Lock()
	c.symbols[sym] = si
	c.mu.Unlock()
	return si, nil
}

// Tradable reports whether the pair is listed and open for spot trading.
func (c *Client) Tradable(ctx context.Context, key string) (bool, error) {
	sym, err := c.venueSymbol(key)
	if err != nil {
		return false, nil
	}
	si, err := c.info(ctx, sym)
	if err != nil {
		return false, err
	}
	return si.tradable, nil
}

// FloorQty rounds qty down to the LOT_SIZE step.
func FloorQty(qty float64, step decimal.Decimal) decimal.Decimal {
	q := decimal.NewFromFloat(qty)
	if step.Sign() <= 0 {
		return q
	}
	return q.Div(step).Floor().Mul(step)
}

func (c *Client) MarketBuy(ctx context.Context, key string, qty float64) (types.OrderResp, error) {
	return c.market(ctx, key, types.SideBuy, qty)
}

func (c *Client) MarketSell(ctx context.Context, key string, qty float64) (types.OrderResp, error) {
	return c.market(ctx, key, types.SideSell, qty)
}

func (c *Client) market(ctx context.Context, key, side string, qty float64) (types.OrderResp, error) {
	sym, err := c.venueSymbol(key)
	if err != nil {
		return types.OrderResp{}, err
	}
	si, err := c.info(ctx, sym)
	if err != nil {
		return types.OrderResp{}, err
	}
	if !si.tradable {
		return types.OrderResp{}, fmt.Errorf("%w: %s is not tradable", exchange.ErrRejected, sym)
	}
	q := FloorQty(qty, si.step)
	if q.Sign() <= 0 || q.LessThan(si.minQty) {
		return types.OrderResp{}, fmt.Errorf("%w: quantity %v below lot size %s", exchange.ErrRejected, qty, si.minQty)
	}

	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", q.String())
	params.Set("newOrderRespType", "FULL")

	var raw struct {
		OrderID             int64  `json:"orderId"`
		Status              string `json:"status"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", params, true, &raw); err != nil {
		return types.OrderResp{}, err
	}
	resp := types.OrderResp{OrderID: strconv.FormatInt(raw.OrderID, 10), Status: raw.Status}
	if resp.FilledQty, err = num(raw.ExecutedQty); err != nil {
		return resp, err
	}
	// EXPIRED and EXPIRED_IN_MATCH come back as 2xx with nothing executed
	if (raw.Status != "FILLED" && raw.Status != "PARTIALLY_FILLED") || !(resp.FilledQty > 0) {
		return resp, fmt.Errorf("%w: order %s %s executed %s", exchange.ErrRejected, resp.OrderID, raw.Status, raw.ExecutedQty)
	}
	quote, err := num(raw.CummulativeQuoteQty)
	if err != nil {
		return resp, err
	}
	if resp.FilledQty > 0 {
		resp.AvgPrice = quote / resp.FilledQty
	}
	return resp, nil
}
