package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-swing-bot/internal/types"
)

// breakout builds a slow decline with a sharp up bar at the end: the fast EMA crosses the slow one on the
// last bar, MACD turns positive and the last volume spikes.
func breakout(n int, jump float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		c := 100 - 0.1*float64(i)
		vol := 100.0
		if i == n-1 {
			c = 100 - 0.1*float64(n-2) + jump
			vol = 500
		}
		out[i] = types.Candle{Ts: int64(i) * 900_000, Open: c, High: c + 1, Low: c - 1, Close: c, Vol: vol}
	}
	return out
}

func uptrend(n int, step float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		c := 50 + step*float64(i)
		out[i] = types.Candle{Ts: int64(i) * 3_600_000, Open: c, High: c + 1, Low: c - 1, Close: c, Vol: 1}
	}
	return out
}

func flat(n int, closes ...float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{Close: 100}
	}
	for i, c := range closes {
		out[n-len(closes)+i].Close = c
	}
	return out
}

func passing() Inputs {
	return Inputs{
		Short:     breakout(60, 10),
		Higher:    uptrend(220, 0.5),
		Reference: flat(5),
		Ticker:    types.Ticker{Symbol: "ETH-USDT", Last: 104.2, Bid: 104.19, Ask: 104.21, QuoteVolume24h: 2_000_000},
	}
}

func TestEvaluateAdmitsBreakout(t *testing.T) {
	d := Evaluate(passing(), DefaultConfig())
	require.Equal(t, ReasonOK, d.Reason, "%+v", d.Snapshot)
	assert.True(t, d.Admitted)
	assert.Greater(t, d.Snapshot.CrossFast, d.Snapshot.CrossSlow)
	assert.LessOrEqual(t, d.Snapshot.PrevFast, d.Snapshot.PrevSlow)
	assert.Greater(t, d.Snapshot.MACDHist, 0.0)
	assert.Greater(t, d.Snapshot.RSI, 50.0)
	assert.GreaterOrEqual(t, d.Snapshot.ADX, 22.0)
	assert.Contains(t, d.Snapshot.Map(), "adx")
}

func TestEvaluateReportsFirstFailingCheck(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Inputs, *Config)
		want   Reason
	}{
		{"short series", func(in *Inputs, _ *Config) { in.Short = in.Short[len(in.Short)-49:] }, ReasonInsufficientData},
		{"short higher series", func(in *Inputs, _ *Config) { in.Higher = in.Higher[:150] }, ReasonInsufficientData},
		{"missing quote", func(in *Inputs, _ *Config) { in.Ticker.Bid = 0 }, ReasonInsufficientData},
		{"falling regime", func(in *Inputs, _ *Config) { in.Higher = uptrend(220, -0.1) }, ReasonTrend},
		{"no cross", func(in *Inputs, _ *Config) { in.Short = breakout(60, -0.1) }, ReasonMomentum},
		{"weak trend strength", func(_ *Inputs, c *Config) { c.MinADX = 101 }, ReasonChoppy},
		{"quiet bar", func(in *Inputs, _ *Config) { in.Short[len(in.Short)-1].Vol = 50 }, ReasonVolume},
		{"reference selloff", func(in *Inputs, _ *Config) { in.Reference = flat(5, 100, 100, 98) }, ReasonReferenceInstrument},
		// liquidity fails alone: every earlier check still passes
		{"thin market", func(in *Inputs, _ *Config) { in.Ticker.QuoteVolume24h = 10 }, ReasonLiquidity},
		{"wide spread", func(in *Inputs, _ *Config) { in.Ticker.Bid, in.Ticker.Ask = 103, 105 }, ReasonSpread},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, cfg := passing(), DefaultConfig()
			tc.mutate(&in, &cfg)
			d := Evaluate(in, cfg)
			assert.False(t, d.Admitted)
			assert.Equal(t, tc.want, d.Reason)
		})
	}
}

func TestReferenceDropAtThresholdIsAllowed(t *testing.T) {
	in := passing()
	in.Reference = flat(3, 100, 100, 99.2)
	assert.Equal(t, ReasonOK, Evaluate(in, DefaultConfig()).Reason)
}

func TestMinShortBars(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.MinShortBars())
	cfg.VolumeWindow = 20
	assert.Equal(t, 35, cfg.MinShortBars())
}
