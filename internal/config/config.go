package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DCAScanner/internal/model"
)

// Store backends for portfolio logs.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Symbol is one entry of the scan universe.
type Symbol struct {
	Symbol string `yaml:"symbol"`
	Market string `yaml:"market"`
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BarsDir      string        `yaml:"bars_dir"`
		RequestDelay time.Duration `yaml:"request_delay"`
		Lookback     int           `yaml:"lookback"`
	} `yaml:"data_source"`
	Scan struct {
		Cron    string   `yaml:"cron"`
		TopN    int      `yaml:"top_n"`
		Symbols []Symbol `yaml:"symbols"`
	} `yaml:"scan"`
	Portfolio struct {
		Store       string   `yaml:"store"`
		Dir         string   `yaml:"dir"`
		Owner       string   `yaml:"owner"`
		IDs         []string `yaml:"ids"`
		SummaryCron string   `yaml:"summary_cron"`
	} `yaml:"portfolio"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then a .env file, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	envFile := ".env"
	if v := os.Getenv("DOTENV_PATH"); v != "" {
		envFile = v
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("BARS_DIR"); v != "" {
		c.DataSource.BarsDir = v
	}
	if v := os.Getenv("REQUEST_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_DELAY: %w", err)
		}
		c.DataSource.RequestDelay = d
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		c.Scan.Cron = v
	}
	if v := os.Getenv("SCAN_TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCAN_TOP_N: %w", err)
		}
		c.Scan.TopN = n
	}
	// SCAN_SYMBOLS=BTCUSDT:crypto,THYAO:bist
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		c.Scan.Symbols = nil
		for _, item := range strings.Split(v, ",") {
			sym, market, _ := strings.Cut(strings.TrimSpace(item), ":")
			if sym == "" {
				continue
			}
			c.Scan.Symbols = append(c.Scan.Symbols, Symbol{Symbol: sym, Market: market})
		}
	}
	if v := os.Getenv("PORTFOLIO_STORE"); v != "" {
		c.Portfolio.Store = v
	}
	if v := os.Getenv("PORTFOLIO_DIR"); v != "" {
		c.Portfolio.Dir = v
	}
	if v := os.Getenv("PORTFOLIO_OWNER"); v != "" {
		c.Portfolio.Owner = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.BarsDir == "" {
		c.DataSource.BarsDir = "data/bars"
	}
	if c.DataSource.RequestDelay == 0 {
		c.DataSource.RequestDelay = 10 * time.Second
	}
	if c.DataSource.Lookback == 0 {
		c.DataSource.Lookback = 120
	}
	if c.Scan.Cron == "" {
		c.Scan.Cron = "0 0 9 * * *"
	}
	if c.Scan.TopN == 0 {
		c.Scan.TopN = 10
	}
	if c.Portfolio.Store == "" {
		c.Portfolio.Store = StoreFile
	}
	if c.Portfolio.Dir == "" {
		c.Portfolio.Dir = "data/portfolios"
	}
	if c.Portfolio.Owner == "" {
		c.Portfolio.Owner = "admin"
	}
	if c.Portfolio.SummaryCron == "" {
		c.Portfolio.SummaryCron = "0 0 18 * * 1-5"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/dca_scanner.db"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if len(c.Scan.Symbols) == 0 {
		return fmt.Errorf("scan.symbols must not be empty")
	}
	for _, s := range c.Scan.Symbols {
		if strings.TrimSpace(s.Symbol) == "" {
			return fmt.Errorf("scan.symbols: empty symbol")
		}
		if _, err := model.ParseMarket(s.Market); err != nil {
			return fmt.Errorf("scan.symbols %s: %w", s.Symbol, err)
		}
	}
	if c.DataSource.RequestDelay < 0 {
		return fmt.Errorf("data_source.request_delay must not be negative")
	}
	if c.Scan.TopN < 0 {
		return fmt.Errorf("scan.top_n must not be negative")
	}
	switch c.Portfolio.Store {
	case StoreFile, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("portfolio.store %q must be one of file, sqlite, redis", c.Portfolio.Store)
	}
	return nil
}
