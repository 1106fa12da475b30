package model

import (
	"fmt"
	"strings"
	"time"
)

// Market identifies the venue family a symbol trades on.
type Market string

const (
	MarketCrypto Market = "crypto"
	MarketBIST   Market = "bist"
	MarketUS     Market = "us"
	MarketFX     Market = "fx"
)

// ParseMarket maps a case-insensitive market name to a Market.
func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToLower(strings.TrimSpace(s))); m {
	case MarketCrypto, MarketBIST, MarketUS, MarketFX:
		return m, nil
	default:
		return "", fmt.Errorf("unknown market %q", s)
	}
}

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `yaml:"time"`
	Open   float64   `yaml:"open"`
	High   float64   `yaml:"high"`
	Low    float64   `yaml:"low"`
	Close  float64   `yaml:"close"`
	Volume float64   `yaml:"volume"`
}
