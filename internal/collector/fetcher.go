package collector

import "DCAScanner/internal/model"

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchDailyBars(symbol string, market model.Market, days int) ([]model.OHLCV, error)
	FetchCurrentPrice(symbol string, market model.Market) (float64, error)
	Name() string
}
