package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.008, c.Risk.PerTradeRisk)
	assert.Equal(t, 1.8, c.Risk.MinRewardRisk)
	assert.Equal(t, 90, c.Filter.BBWidthLookback)
	assert.True(t, c.Exit.UseStopForSpot)
	assert.Equal(t, 30, c.Universe.MaxSymbolsPerCycle)
	assert.Contains(t, c.Universe.StrongBuyLabels, "MUA MẠNH")
	assert.Equal(t, []string{"BUY", "STRONG_BUY"}, c.Universe.AllowedRatings)
	assert.Empty(t, c.Universe.RecommendationURL)
}

func TestLoadConfigFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
mode: DRY_RUN
quote: usdt
filter:
  min_adx: 25
exit:
  use_stop_for_spot: false
universe:
  static: [BTC/USDT, ethusdt]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("RISK_PER_TRADE", "")

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "USDT", c.Quote)
	assert.Equal(t, 25.0, c.Filter.MinADX)
	assert.Equal(t, 50, c.Filter.VolumeWindow, "unset nested keys keep defaults")
	assert.False(t, c.Exit.UseStopForSpot)
	assert.Equal(t, []string{"BTC/USDT", "ethusdt"}, c.Universe.Static)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "DRY_RUN", c.Mode)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"RISK_PER_TRADE":        "0.01",
		"MIN_ADX":               "30",
		"USE_STOP_FOR_SPOT":     "false",
		"LOCK_TIMEOUT_SECONDS":  "3",
		"MAX_SYMBOLS_PER_CYCLE": "5",
		"LEDGER_BACKEND":        "redis",
		"REDIS_ADDR":            "localhost:6379",
	}
	c := Default()
	require.NoError(t, applyEnv(&c, func(k string) (string, bool) { v, ok := env[k]; return v, ok }))
	assert.Equal(t, 0.01, c.Risk.PerTradeRisk)
	assert.Equal(t, 30.0, c.Filter.MinADX)
	assert.False(t, c.Exit.UseStopForSpot)
	assert.Equal(t, 3, c.Ledger.LockTimeoutSeconds)
	assert.Equal(t, 5, c.Universe.MaxSymbolsPerCycle)
	require.NoError(t, c.Validate())
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	c := Default()
	err := applyEnv(&c, func(k string) (string, bool) {
		if k == "MIN_ADX" || k == "USE_STOP_FOR_SPOT" {
			return "lots", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_ADX")
	assert.Contains(t, err.Error(), "USE_STOP_FOR_SPOT")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"mode":           func(c *Config) { c.Mode = "PAPER" },
		"risk":           func(c *Config) { c.Risk.PerTradeRisk = 1.5 },
		"percentile":     func(c *Config) { c.Filter.VolumePercentile = 170 },
		"short history":  func(c *Config) { c.Timeframes.ShortLimit = 20 },
		"backend":        func(c *Config) { c.Ledger.Backend = "sqlite" },
		"redis addr":     func(c *Config) { c.Ledger.Backend = "redis" },
		"live w/o keys":  func(c *Config) { c.Mode = "LIVE" },
		"ema ordering":   func(c *Config) { c.Filter.CrossSlow = 5 },
		"sheet format":   func(c *Config) { c.Universe.SheetURL = "http://x"; c.Universe.SheetFormat = "xlsx" },
		"lock timeout":   func(c *Config) { c.Ledger.LockTimeoutSeconds = 0 },
		"scan interval":  func(c *Config) { c.Schedule.ScanSeconds = 0 },
		"higher history": func(c *Config) { c.Timeframes.HigherLimit = 100 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
