// Package filter decides whether a candidate instrument may be bought on the current bar.
//
// Evaluate is pure: callers fetch the series and ticker, the filter only reads them. Checks run in a fixed
// order and stop at the first failure so the reported reason is stable.
package filter

import (
	"math"

	"spot-swing-bot/internal/ta"
	"spot-swing-bot/internal/types"
)

// Reason is the single cause attached to a decision.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonInsufficientData    Reason = "insufficient_data"
	ReasonTrend               Reason = "trend_filter"
	ReasonMomentum            Reason = "momentum_filter"
	ReasonChoppy              Reason = "choppy_filter"
	ReasonVolume              Reason = "volume_filter"
	ReasonReferenceInstrument Reason = "reference_instrument_filter"
	ReasonLiquidity           Reason = "liquidity_filter"
	ReasonSpread              Reason = "spread_filter"
)

// Config holds every threshold. Percentiles are expressed in percent (25 = 25th percentile).
type Config struct {
	TrendFast int `yaml:"trend_fast"`
	TrendSlow int `yaml:"trend_slow"`

	CrossFast  int     `yaml:"cross_fast"`
	CrossSlow  int     `yaml:"cross_slow"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	RSIPeriod  int     `yaml:"rsi_period"`
	RSIMin     float64 `yaml:"rsi_min"`

	ADXPeriod            int     `yaml:"adx_period"`
	MinADX               float64 `yaml:"min_adx"`
	ATRPeriod            int     `yaml:"atr_period"`
	MinATRPct            float64 `yaml:"min_atr_pct"`
	BBPeriod             int     `yaml:"bb_period"`
	BBStdDev             float64 `yaml:"bb_stddev"`
	BBWidthLookback      int     `yaml:"bb_width_lookback"`
	MinBBWidthPercentile float64 `yaml:"min_bbwidth_percentile"`

	VolumeWindow     int     `yaml:"volume_window"`
	VolumePercentile float64 `yaml:"volume_percentile"`

	ReferenceDropBlock float64 `yaml:"reference_drop_block_fraction"`

	MinQuoteVolume24h float64 `yaml:"min_quote_volume_24h"`
	MaxSpread         float64 `yaml:"max_spread_fraction"`

	// StopLookback is the swing-low window the sizer reads; the short series must cover it.
	StopLookback int `yaml:"stop_lookback"`
}

func DefaultConfig() Config {
	return Config{
		TrendFast:            50,
		TrendSlow:            200,
		CrossFast:            10,
		CrossSlow:            20,
		MACDFast:             12,
		MACDSlow:             26,
		MACDSignal:           9,
		RSIPeriod:            14,
		RSIMin:               50,
		ADXPeriod:            14,
		MinADX:               22,
		ATRPeriod:            14,
		MinATRPct:            0.006,
		BBPeriod:             20,
		BBStdDev:             2,
		BBWidthLookback:      90,
		MinBBWidthPercentile: 25,
		VolumeWindow:         50,
		VolumePercentile:     70,
		ReferenceDropBlock:   0.008,
		MinQuoteVolume24h:    1_000_000,
		MaxSpread:            0.002,
		StopLookback:         10,
	}
}

// MinShortBars is the shortest short-timeframe series every check can be computed on.
func (c Config) MinShortBars() int {
	n := c.MACDSlow + c.MACDSignal
	for _, m := range []int{2 * c.ADXPeriod, c.ATRPeriod + 1, c.RSIPeriod + 1, c.CrossSlow + 1, c.VolumeWindow, c.BBPeriod + 1, c.StopLookback} {
		if m > n {
			n = m
		}
	}
	return n
}

// Inputs are the already-fetched market data for one candidate.
type Inputs struct {
	Short     []types.Candle
	Higher    []types.Candle
	Reference []types.Candle
	Ticker    types.Ticker
}

// Snapshot is the latest-bar indicator state, kept for logging and the decision journal.
type Snapshot struct {
	Close        float64 `json:"close"`
	TrendFast    float64 `json:"ema_trend_fast"`
	TrendSlow    float64 `json:"ema_trend_slow"`
	HigherClose  float64 `json:"higher_close"`
	CrossFast    float64 `json:"ema_cross_fast"`
	CrossSlow    float64 `json:"ema_cross_slow"`
	PrevFast     float64 `json:"ema_cross_fast_prev"`
	PrevSlow     float64 `json:"ema_cross_slow_prev"`
	RSI          float64 `json:"rsi"`
	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macd_signal"`
	MACDHist     float64 `json:"macd_hist"`
	ATR          float64 `json:"atr"`
	ATRPct       float64 `json:"atr_pct"`
	ADX          float64 `json:"adx"`
	DX           float64 `json:"dx"`
	BBWidth      float64 `json:"bb_width"`
	BBWidthFloor float64 `json:"bb_width_floor"`
	Volume       float64 `json:"volume"`
	VolumeFloor  float64 `json:"volume_floor"`
	RefChange    float64 `json:"ref_change"`
	Spread       float64 `json:"spread"`
}

// Map flattens the snapshot for the decision journal.
func (s Snapshot) Map() map[string]float64 {
	return map[string]float64{
		"close": s.Close, "ema50_htf": s.TrendFast, "ema200_htf": s.TrendSlow, "ema10": s.CrossFast,
		"ema20": s.CrossSlow, "rsi": s.RSI, "macd_hist": s.MACDHist, "atr": s.ATR, "atr_pct": s.ATRPct,
		"adx": s.ADX, "bb_width": s.BBWidth, "bb_width_floor": s.BBWidthFloor, "volume": s.Volume,
		"volume_floor": s.VolumeFloor, "ref_change": s.RefChange, "spread": s.Spread,
	}
}

// Decision is the filter verdict.
type Decision struct {
	Admitted bool     `json:"admitted"`
	Reason   Reason   `json:"reason"`
	Snapshot Snapshot `json:"snapshot"`
}

func reject(r Reason, s Snapshot) Decision { return Decision{Reason: r, Snapshot: s} }

// Evaluate runs the checks in order and returns at the first failure.
func Evaluate(in Inputs, cfg Config) Decision {
	var s Snapshot
	if len(in.Short) < cfg.MinShortBars() || len(in.Higher) < cfg.TrendSlow || len(in.Reference) < 3 ||
		!(in.Ticker.Last > 0 && in.Ticker.Bid > 0 && in.Ticker.Ask > 0) {
		return reject(ReasonInsufficientData, s)
	}

	closes := types.Closes(in.Short)
	highs, lows := types.Highs(in.Short), types.Lows(in.Short)
	vols := types.Volumes(in.Short)
	s.Close = ta.Last(closes)

	// trend regime on the higher timeframe
	hc := types.Closes(in.Higher)
	s.HigherClose = ta.Last(hc)
	s.TrendFast = ta.Last(ta.EMA(hc, cfg.TrendFast))
	s.TrendSlow = ta.Last(ta.EMA(hc, cfg.TrendSlow))

	fast := ta.EMA(closes, cfg.CrossFast)
	slow := ta.EMA(closes, cfg.CrossSlow)
	n := len(closes)
	s.CrossFast, s.CrossSlow = fast[n-1], slow[n-1]
	s.PrevFast, s.PrevSlow = fast[n-2], slow[n-2]
	s.RSI = ta.Last(ta.RSI(closes, cfg.RSIPeriod))
	line, sig, hist := ta.MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	s.MACD, s.MACDSignal, s.MACDHist = ta.Last(line), ta.Last(sig), ta.Last(hist)

	s.ATR = ta.Last(ta.ATR(highs, lows, closes, cfg.ATRPeriod))
	if s.Close > 0 {
		s.ATRPct = s.ATR / s.Close
	}
	s.ADX = ta.Last(ta.ADX(highs, lows, closes, cfg.ADXPeriod))
	s.DX = ta.Last(ta.DX(highs, lows, closes, cfg.ADXPeriod))
	widths := ta.Defined(ta.BollingerWidth(closes, cfg.BBPeriod, cfg.BBStdDev))
	s.BBWidth = ta.Last(widths)
	s.BBWidthFloor = ta.Percentile(ta.Tail(widths, cfg.BBWidthLookback), cfg.MinBBWidthPercentile/100)

	window := ta.Tail(vols, cfg.VolumeWindow)
	s.Volume = ta.Last(vols)
	s.VolumeFloor = math.Max(ta.Percentile(window, cfg.VolumePercentile/100), ta.Mean(window))

	rc := types.Closes(in.Reference)
	if base := rc[len(rc)-3]; base > 0 {
		s.RefChange = (rc[len(rc)-1] - base) / base
	}
	s.Spread = (in.Ticker.Ask - in.Ticker.Bid) / in.Ticker.Bid

	for _, v := range []float64{s.TrendFast, s.TrendSlow, s.CrossFast, s.CrossSlow, s.PrevFast, s.PrevSlow,
		s.RSI, s.MACDHist, s.ATR, s.ADX, s.BBWidth, s.BBWidthFloor, s.VolumeFloor} {
		if !ta.Valid(v) {
			return reject(ReasonInsufficientData, s)
		}
	}

	if !(s.TrendFast > s.TrendSlow && s.HigherClose > s.TrendFast) {
		return reject(ReasonTrend, s)
	}
	crossed := s.PrevFast <= s.PrevSlow && s.CrossFast > s.CrossSlow
	if !(crossed && s.MACDHist > 0 && s.RSI > cfg.RSIMin) {
		return reject(ReasonMomentum, s)
	}
	if !(s.ADX >= cfg.MinADX && s.ATRPct >= cfg.MinATRPct && s.BBWidth >= s.BBWidthFloor) {
		return reject(ReasonChoppy, s)
	}
	if !(s.Volume >= s.VolumeFloor) {
		return reject(ReasonVolume, s)
	}
	if s.RefChange < -cfg.ReferenceDropBlock {
		return reject(ReasonReferenceInstrument, s)
	}
	if in.Ticker.QuoteVolume24h < cfg.MinQuoteVolume24h {
		return reject(ReasonLiquidity, s)
	}
	if s.Spread > cfg.MaxSpread {
		return reject(ReasonSpread, s)
	}
	return Decision{Admitted: true, Reason: ReasonOK, Snapshot: s}
}
