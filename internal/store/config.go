package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"spot-swing-bot/internal/filter"
)

type Config struct {
	Mode      string `yaml:"mode"`
	Quote     string `yaml:"quote"`
	Reference string `yaml:"reference_symbol"`

	Timeframes struct {
		Short       string `yaml:"short"`
		Higher      string `yaml:"higher"`
		ShortLimit  int    `yaml:"short_limit"`
		HigherLimit int    `yaml:"higher_limit"`
	} `yaml:"timeframes"`

	Schedule struct {
		ScanSeconds int `yaml:"scan_seconds"`
		ExitSeconds int `yaml:"exit_seconds"`
	} `yaml:"schedule"`

	Universe struct {
		Static             []string `yaml:"static"`
		SheetURL           string   `yaml:"sheet_url"`
		SheetFormat        string   `yaml:"sheet_format"` // csv or html
		StrongBuyLabels    []string `yaml:"strong_buy_labels"`
		MaxSymbolsPerCycle int      `yaml:"max_symbols_per_cycle"`
		CheckTradable      bool     `yaml:"check_tradable"`

		// RecommendationURL enables the screener rating gate when set.
		RecommendationURL string   `yaml:"recommendation_url"`
		AllowedRatings    []string `yaml:"allowed_ratings"`
	} `yaml:"universe"`

	Filter filter.Config `yaml:"filter"`

	Risk struct {
		PerTradeRisk     float64 `yaml:"per_trade_risk"`
		MinRewardRisk    float64 `yaml:"min_reward_risk"`
		StopATRMult      float64 `yaml:"stop_atr_mult"`
		MinNotional      float64 `yaml:"min_notional"`
		FallbackNotional float64 `yaml:"fallback_notional"`
	} `yaml:"risk"`

	Exit struct {
		UseStopForSpot    bool    `yaml:"use_stop_for_spot"`
		FlatGainThreshold float64 `yaml:"flat_gain_threshold"`
		DustNotional      float64 `yaml:"dust_notional"`
	} `yaml:"exit"`

	Ledger struct {
		Backend            string `yaml:"backend"` // file or redis
		Path               string `yaml:"path"`
		RedisAddr          string `yaml:"redis_addr"`
		RedisKey           string `yaml:"redis_key"`
		LockTimeoutSeconds int    `yaml:"lock_timeout_seconds"`
	} `yaml:"ledger"`

	Exchange struct {
		BaseURL           string             `yaml:"base_url"`
		APIKey            string             `yaml:"-"`
		APISecret         string             `yaml:"-"`
		RequestsPerSecond float64            `yaml:"requests_per_second"`
		TimeoutSeconds    int                `yaml:"timeout_seconds"`
		PaperBalances     map[string]float64 `yaml:"paper_balances"`
	} `yaml:"exchange"`

	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Journal struct {
		// RetentionDays after which journal files are gzipped. Zero keeps them uncompressed.
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"journal"`
}

// Default returns the configuration used for every key the file and environment leave unset.
func Default() Config {
	var c Config
	c.Mode = "DRY_RUN"
	c.Quote = "USDT"
	c.Reference = "BTC-USDT"
	c.Timeframes.Short = "1h"
	c.Timeframes.Higher = "4h"
	c.Timeframes.ShortLimit = 300
	c.Timeframes.HigherLimit = 300
	c.Schedule.ScanSeconds = 30 * 60
	c.Schedule.ExitSeconds = 3 * 60
	c.Universe.SheetFormat = "csv"
	c.Universe.StrongBuyLabels = []string{"MUA MẠNH", "STRONG BUY"}
	c.Universe.MaxSymbolsPerCycle = 30
	c.Universe.CheckTradable = true
	c.Universe.AllowedRatings = []string{"BUY", "STRONG_BUY"}
	c.Filter = filter.DefaultConfig()
	c.Risk.PerTradeRisk = 0.008
	c.Risk.MinRewardRisk = 1.8
	c.Risk.StopATRMult = 1.8
	c.Risk.MinNotional = 5
	c.Risk.FallbackNotional = 10
	c.Exit.UseStopForSpot = true
	c.Exit.FlatGainThreshold = 0.15
	c.Exit.DustNotional = 1.0
	c.Ledger.Backend = "file"
	c.Ledger.Path = "data/positions.json"
	c.Ledger.RedisKey = "spot-swing-bot:positions"
	c.Ledger.LockTimeoutSeconds = 10
	c.Exchange.BaseURL = "https://api.binance.com"
	c.Exchange.RequestsPerSecond = 8
	c.Exchange.TimeoutSeconds = 10
	c.Exchange.PaperBalances = map[string]float64{"USDT": 1000}
	c.Metrics.Addr = ":9090"
	c.Journal.RetentionDays = 14
	return c
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Quote == "" {
		return errors.New("quote cannot be empty")
	}
	if c.Risk.PerTradeRisk <= 0 || c.Risk.PerTradeRisk >= 1 {
		return fmt.Errorf("risk.per_trade_risk must be a fraction in (0,1), got %.4f", c.Risk.PerTradeRisk)
	}
	if c.Risk.MinRewardRisk <= 0 {
		return fmt.Errorf("risk.min_reward_risk must be positive, got %.2f", c.Risk.MinRewardRisk)
	}
	for name, p := range map[string]float64{
		"filter.min_bbwidth_percentile": c.Filter.MinBBWidthPercentile,
		"filter.volume_percentile":      c.Filter.VolumePercentile,
	} {
		if p < 0 || p > 100 {
			return fmt.Errorf("%s must be between 0-100, got %.2f", name, p)
		}
	}
	if c.Filter.TrendFast <= 0 || c.Filter.TrendSlow <= c.Filter.TrendFast {
		return fmt.Errorf("filter.trend_slow (%d) must exceed trend_fast (%d)", c.Filter.TrendSlow, c.Filter.TrendFast)
	}
	if c.Filter.CrossFast <= 0 || c.Filter.CrossSlow <= c.Filter.CrossFast {
		return fmt.Errorf("filter.cross_slow (%d) must exceed cross_fast (%d)", c.Filter.CrossSlow, c.Filter.CrossFast)
	}
	if c.Timeframes.ShortLimit < c.Filter.MinShortBars() {
		return fmt.Errorf("timeframes.short_limit %d is below the %d bars the filter needs", c.Timeframes.ShortLimit, c.Filter.MinShortBars())
	}
	if c.Timeframes.HigherLimit < c.Filter.TrendSlow {
		return fmt.Errorf("timeframes.higher_limit %d is below trend_slow %d", c.Timeframes.HigherLimit, c.Filter.TrendSlow)
	}
	if c.Schedule.ScanSeconds <= 0 || c.Schedule.ExitSeconds <= 0 {
		return errors.New("schedule intervals must be positive")
	}
	switch c.Ledger.Backend {
	case "file":
		if c.Ledger.Path == "" {
			return errors.New("ledger.path cannot be empty")
		}
	case "redis":
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be 'file' or 'redis', got '%s'", c.Ledger.Backend)
	}
	if c.Universe.MaxSymbolsPerCycle < 0 {
		return errors.New("universe.max_symbols_per_cycle cannot be negative")
	}
	if c.Ledger.LockTimeoutSeconds <= 0 {
		return errors.New("ledger.lock_timeout_seconds must be positive")
	}
	if c.Mode == "LIVE" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return errors.New("LIVE mode requires BINANCE_API_KEY and BINANCE_API_SECRET")
	}
	if f := strings.ToLower(c.Universe.SheetFormat); c.Universe.SheetURL != "" && f != "csv" && f != "html" {
		return fmt.Errorf("universe.sheet_format must be 'csv' or 'html', got '%s'", c.Universe.SheetFormat)
	}
	return nil
}

func (c *Config) ScanInterval() time.Duration { return time.Duration(c.Schedule.ScanSeconds) * time.Second }
func (c *Config) ExitInterval() time.Duration { return time.Duration(c.Schedule.ExitSeconds) * time.Second }
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Ledger.LockTimeoutSeconds) * time.Second
}

// LoadConfig reads path over the defaults, then applies environment overrides. A missing file is not
// an error: the defaults and environment alone are a valid configuration.
func LoadConfig(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnv(&c, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config env override: %w", err)
	}
	c.Quote = strings.ToUpper(c.Quote)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	e := envSetter{lookup: lookup}
	e.float("RISK_PER_TRADE", &c.Risk.PerTradeRisk)
	e.float("MIN_REWARD_RISK", &c.Risk.MinRewardRisk)
	e.float("MIN_ADX", &c.Filter.MinADX)
	e.float("MIN_ATR_PCT", &c.Filter.MinATRPct)
	e.float("MIN_BBWIDTH_PERCENTILE", &c.Filter.MinBBWidthPercentile)
	e.float("VOLUME_PERCENTILE", &c.Filter.VolumePercentile)
	e.float("REFERENCE_DROP_BLOCK_FRACTION", &c.Filter.ReferenceDropBlock)
	e.float("MIN_QUOTE_VOLUME_24H", &c.Filter.MinQuoteVolume24h)
	e.float("MAX_SPREAD_FRACTION", &c.Filter.MaxSpread)
	e.float("FLAT_GAIN_THRESHOLD", &c.Exit.FlatGainThreshold)
	e.bool("USE_STOP_FOR_SPOT", &c.Exit.UseStopForSpot)
	e.int("LOCK_TIMEOUT_SECONDS", &c.Ledger.LockTimeoutSeconds)
	e.int("MAX_SYMBOLS_PER_CYCLE", &c.Universe.MaxSymbolsPerCycle)
	e.str("BOT_MODE", &c.Mode)
	e.str("LEDGER_PATH", &c.Ledger.Path)
	e.str("LEDGER_BACKEND", &c.Ledger.Backend)
	e.str("REDIS_ADDR", &c.Ledger.RedisAddr)
	e.str("SHEET_URL", &c.Universe.SheetURL)
	e.str("RECOMMENDATION_URL", &c.Universe.RecommendationURL)
	e.str("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)
	e.str("BINANCE_API_KEY", &c.Exchange.APIKey)
	e.str("BINANCE_API_SECRET", &c.Exchange.APISecret)
	e.str("METRICS_ADDR", &c.Metrics.Addr)
	return errors.Join(e.errs...)
}

type envSetter struct {
	lookup lookupFunc
	errs   []error
}

func (e *envSetter) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envSetter) str(key string, dst *string) {
	if v, ok := e.raw(key); ok {
		*dst = v
	}
}

func (e *envSetter) float(key string, dst *float64) {
	if v, ok := e.raw(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envSetter) int(key string, dst *int) {
	if v, ok := e.raw(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envSetter) bool(key string, dst *bool) {
	if v, ok := e.raw(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}
