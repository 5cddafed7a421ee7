package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsSeparatorAndCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"BTC/USDT", "btc-usdt", "BTC_USDT", "btc:usdt", "BTCUSDT", " btcusdt ", "BTC"} {
		assert.Equal(t, "BTC-USDT", Key(raw, "USDT"), raw)
	}
}

func TestParseDefaultsQuote(t *testing.T) {
	p, err := Parse("ethusdt", "")
	require.NoError(t, err)
	assert.Equal(t, Pair{Base: "ETH", Quote: "USDT"}, p)
	assert.Equal(t, "ETHUSDT", p.Compact())
}

func TestParseRejectsQuoteOnlyAndEmpty(t *testing.T) {
	_, err := Parse("USDT", "USDT")
	assert.ErrorIs(t, err, ErrUnknownPair)
	_, err = Parse("  ", "USDT")
	assert.ErrorIs(t, err, ErrUnknownPair)
	assert.Equal(t, "USDT", Key("usdt", "USDT"))
}

func TestParseKeepsForeignQuote(t *testing.T) {
	p, err := Parse("eth/btc", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH-BTC", p.Key())

	for raw, want := range map[string]string{
		"ETHBTC":   "ETH-BTC",
		"xrpeth":   "XRP-ETH",
		"SOLFDUSD": "SOL-FDUSD",
		"WBTC":     "WBTC-USDT",
		"SOLUSDT":  "SOL-USDT",
	} {
		p, err := Parse(raw, "USDT")
		require.NoError(t, err, raw)
		assert.Equal(t, want, p.Key(), raw)
	}
}
