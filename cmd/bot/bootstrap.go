package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"spot-swing-bot/internal/engine"
	"spot-swing-bot/internal/engine/engineobs"
	"spot-swing-bot/internal/eod"
	"spot-swing-bot/internal/eod/eodobs"
	"spot-swing-bot/internal/exchange/binance"
	"spot-swing-bot/internal/exchange/exchangeobs"
	"spot-swing-bot/internal/exchange/paper"
	"spot-swing-bot/internal/feed"
	"spot-swing-bot/internal/interfaces"
	"spot-swing-bot/internal/ledger"
	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/notify"
	"spot-swing-bot/internal/store"
	"spot-swing-bot/internal/trace"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeExchange returns the venue client with observability. DRY_RUN keeps live market data but
// fills orders against an in-memory account.
func initializeExchange(ctx context.Context, cfg *store.Config) interfaces.Exchange {
	var ex interfaces.Exchange = binance.New(binance.Config{
		BaseURL:           cfg.Exchange.BaseURL,
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		Quote:             cfg.Quote,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Timeout:           time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated", "balances", cfg.Exchange.PaperBalances)
		ex = paper.New(ex, cfg.Quote, cfg.Exchange.PaperBalances)
	}

	return exchangeobs.Wrap(ex)
}

func initializeLedger(ctx context.Context, cfg *store.Config) *ledger.Ledger {
	var st ledger.Store
	switch cfg.Ledger.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Ledger.RedisAddr})
		st = ledger.NewRedisStore(client, cfg.Ledger.RedisKey, cfg.LockTimeout())
		logger.Info(ctx, "Using redis ledger", "addr", cfg.Ledger.RedisAddr, "key", cfg.Ledger.RedisKey)
	default:
		st = ledger.NewFileStore(cfg.Ledger.Path, cfg.LockTimeout())
		logger.Info(ctx, "Using file ledger", "path", cfg.Ledger.Path)
	}
	return ledger.New(st, cfg.Quote)
}

// initializeFeed picks the sheet when configured, the static list otherwise
func initializeFeed(ctx context.Context, cfg *store.Config) interfaces.SymbolFeed {
	if cfg.Universe.SheetURL != "" {
		logger.Info(ctx, "Reading candidates from sheet", "format", cfg.Universe.SheetFormat)
		return feed.NewSheet(feed.SheetConfig{
			URL:     cfg.Universe.SheetURL,
			Format:  cfg.Universe.SheetFormat,
			Quote:   cfg.Quote,
			Labels:  cfg.Universe.StrongBuyLabels,
			Timeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		})
	}
	if len(cfg.Universe.Static) == 0 {
		logger.Warn(ctx, "No candidate source configured - scan cycles will be empty")
	}
	return feed.NewStatic(cfg.Universe.Static, cfg.Quote)
}

func initializeRecommender(cfg *store.Config) interfaces.Recommender {
	if cfg.Universe.RecommendationURL == "" {
		return nil
	}
	return feed.NewTradingView(cfg.Universe.RecommendationURL, cfg.Quote, time.Duration(cfg.Exchange.TimeoutSeconds)*time.Second)
}

// app holds the wired components shared by the commands.
type app struct {
	cfg        *store.Config
	exchange   interfaces.Exchange
	ledger     *ledger.Ledger
	notifier   interfaces.Notifier
	scanner    interfaces.Scanner
	reconciler interfaces.Reconciler
	runner     *engine.Runner
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	if err := initializeSystem(); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}

	ex := initializeExchange(ctx, cfg)
	led := initializeLedger(ctx, cfg)
	n := notify.New(cfg.Notify.WebhookURL)

	scanner := engineobs.WrapScanner(engine.NewScanner(cfg, ex, led, initializeRecommender(cfg), n))
	reconciler := engineobs.WrapReconciler(engine.NewReconciler(cfg, ex, led, n))

	return &app{
		cfg:        cfg,
		exchange:   ex,
		ledger:     led,
		notifier:   n,
		scanner:    scanner,
		reconciler: reconciler,
		runner: &engine.Runner{
			Feed:          initializeFeed(ctx, cfg),
			Scanner:       scanner,
			Reconciler:    reconciler,
			Eod:           eodobs.Wrap(eod.NewSummarizer()),
			ScanInterval:  cfg.ScanInterval(),
			ExitInterval:  cfg.ExitInterval(),
			RetentionDays: cfg.Journal.RetentionDays,
		},
	}, nil
}

// shutdown drains pending notifications and flushes telemetry.
func (a *app) shutdown() {
	if w, ok := a.notifier.(interface{ Wait() }); ok {
		w.Wait()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	logger.Sync()
}
