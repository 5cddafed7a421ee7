package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t *testing.T, at time.Time) {
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestAppendWritesUTCDayFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	// 23:30 in UTC-5 is already the next UTC day
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	fixedNow(t, at.UTC())

	require.NoError(t, Append(Entry{Symbol: "ETH-USDT", Side: "BUY", Qty: 0.25, Price: 2001, OrderID: "T-1"}))
	require.NoError(t, Append(Entry{Symbol: "ETH-USDT", Side: "SELL", Qty: 0.25, Price: 2200, OrderID: "T-2"}))

	f, err := os.Open(filepath.Join(dir, "2026-03-10.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var got []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 0.25, got[0].Qty)
	assert.Equal(t, "2026-03-10T04:30:00Z", got[0].Time)
	assert.Equal(t, "SELL", got[1].Side)
}

func TestAppendDecisionDropsNaN(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	fixedNow(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	err := AppendDecision(DecisionEntry{Symbol: "SOL-USDT", Reason: "trend_filter", Price: 150,
		Indicators: map[string]float64{"rsi": 55, "adx": math.NaN()}})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "decisions", "2026-03-10.jsonl"))
	require.NoError(t, err)
	var e DecisionEntry
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Equal(t, map[string]float64{"rsi": 55}, e.Indicators)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	old := filepath.Join(dir, "2026-01-01.jsonl")
	fresh := filepath.Join(dir, "2026-03-10.jsonl")
	require.NoError(t, os.WriteFile(old, []byte(`{"Symbol":"BTC-USDT"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}\n"), 0o644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	require.NoError(t, CompressOlder(7))

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	sc := bufio.NewScanner(zr)
	require.True(t, sc.Scan())
	assert.Contains(t, sc.Text(), "BTC-USDT")
}
