package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"DCAScanner/internal/collector"
	"DCAScanner/internal/config"
	"DCAScanner/internal/model"
	"DCAScanner/internal/notifier"
	"DCAScanner/internal/portfolio"
	"DCAScanner/internal/ratelimit"
	"DCAScanner/internal/recorder"
	"DCAScanner/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] DCA scanner starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	fetcher := collector.NewFileFetcher(cfg.DataSource.BarsDir)
	log.Printf("[INFO] data source: %s (%s)", fetcher.Name(), cfg.DataSource.BarsDir)

	limiter := ratelimit.New(cfg.DataSource.RequestDelay, nil)
	col := collector.NewCollector(fetcher, limiter, cfg.DataSource.Lookback)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[FATAL] open portfolio store: %v", err)
	}
	defer store.Close()
	pm := portfolio.NewManager(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary, err := pm.EnsurePrimary(ctx, cfg.Portfolio.Owner)
	if err != nil {
		log.Fatalf("[FATAL] ensure primary portfolio: %v", err)
	}
	portfolioIDs := cfg.Portfolio.IDs
	if len(portfolioIDs) == 0 {
		portfolioIDs = []string{primary.ID}
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	sched := scheduler.NewScheduler(ctx, col, pm, tn, rec)
	targets, err := scanTargets(cfg.Scan.Symbols)
	if err != nil {
		log.Fatalf("[FATAL] scan targets: %v", err)
	}
	sched.Targets = targets
	sched.TopN = cfg.Scan.TopN
	sched.PortfolioIDs = portfolioIDs
	sched.Owner = cfg.Portfolio.Owner

	if err := sched.RegisterAll(cfg.Scan.Cron, cfg.Portfolio.SummaryCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	log.Printf("[INFO] DCA scanner is running with %d symbols. Press Ctrl+C to stop.", len(sched.Targets))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] DCA scanner stopped")
}

func scanTargets(symbols []config.Symbol) ([]scheduler.Target, error) {
	targets := make([]scheduler.Target, 0, len(symbols))
	for _, s := range symbols {
		m, err := model.ParseMarket(s.Market)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s.Symbol, err)
		}
		targets = append(targets, scheduler.Target{Symbol: strings.ToUpper(strings.TrimSpace(s.Symbol)), Market: m})
	}
	return targets, nil
}

func openStore(cfg *config.Config) (portfolio.Store, error) {
	switch cfg.Portfolio.Store {
	case config.StoreSQLite:
		return portfolio.NewSQLiteStore(cfg.Database.SQLitePath)
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, err
		}
		log.Printf("[INFO] redis portfolio store: %s", cfg.Redis.Addr)
		return portfolio.NewRedisStore(client), nil
	default:
		return portfolio.NewFileStore(cfg.Portfolio.Dir)
	}
}
