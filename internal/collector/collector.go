package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"DCAScanner/internal/calculator"
	"DCAScanner/internal/model"
	"DCAScanner/internal/ratelimit"
)

// DefaultLookback is the number of daily bars requested per symbol.
const DefaultLookback = 120

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
	Err       error
	Calls     int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ string, _ model.Market, days int) ([]model.OHLCV, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, days), nil
}

func (m *MockFetcher) FetchCurrentPrice(_ string, _ model.Market) (float64, error) {
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector orchestrates rate-limited data fetching and indicator computation.
type Collector struct {
	Fetcher  Fetcher
	Limiter  *ratelimit.Limiter
	Lookback int
}

// NewCollector creates a new Collector. A nil limiter disables spacing.
func NewCollector(fetcher Fetcher, limiter *ratelimit.Limiter, lookback int) *Collector {
	if limiter == nil {
		limiter = ratelimit.New(0, nil)
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Collector{Fetcher: fetcher, Limiter: limiter, Lookback: lookback}
}

// Collect fetches daily bars for one symbol and computes a raw snapshot.
// Indicators that cannot be computed are left zero for the normalizer,
// except RSI which is set to NaN.
func (c *Collector) Collect(ctx context.Context, symbol string, market model.Market) (model.IndicatorSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	snap := model.IndicatorSnapshot{Symbol: symbol, Market: market}

	if err := c.Limiter.Wait(ctx); err != nil {
		return snap, fmt.Errorf("rate limit wait: %w", err)
	}
	bars, err := c.Fetcher.FetchDailyBars(symbol, market, c.Lookback)
	if err != nil {
		return snap, fmt.Errorf("fetch daily bars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return snap, fmt.Errorf("fetch daily bars %s: empty response", symbol)
	}

	last := bars[len(bars)-1]
	snap.Open = last.Open
	snap.High = last.High
	snap.Low = last.Low
	snap.Close = last.Close
	snap.Volume = last.Volume

	closes := calculator.Closes(bars)

	if rsi, err := calculator.CalculateRSI(bars, 14); err != nil {
		log.Printf("[WARN] %s RSI calculation failed: %v, left for defaults", symbol, err)
		snap.RSI = math.NaN()
	} else {
		snap.RSI = rsi
	}

	if atr, err := calculator.CalculateATR(bars, 14); err != nil {
		log.Printf("[WARN] %s ATR calculation failed: %v", symbol, err)
	} else {
		snap.ATR = atr
	}

	snap.EMA20 = movingAverage(symbol, "EMA20", closes, 20, calculator.CalculateEMA)
	snap.EMA50 = movingAverage(symbol, "EMA50", closes, 50, calculator.CalculateEMA)
	snap.SMA20 = movingAverage(symbol, "SMA20", closes, 20, calculator.CalculateSMA)
	snap.SMA50 = movingAverage(symbol, "SMA50", closes, 50, calculator.CalculateSMA)

	if bb, err := calculator.CalculateBollinger(closes, 20, 2); err != nil {
		log.Printf("[WARN] %s Bollinger calculation failed: %v, left for defaults", symbol, err)
	} else {
		snap.BBUpper, snap.BBMiddle, snap.BBLower = bb.Upper, bb.Middle, bb.Lower
	}

	if macd, sig, err := calculator.CalculateMACD(closes); err != nil {
		log.Printf("[WARN] %s MACD calculation failed: %v", symbol, err)
	} else {
		snap.MACD, snap.MACDSignal = macd, sig
	}

	return snap, nil
}

func movingAverage(symbol, name string, closes []float64, period int, fn func([]float64, int) (float64, error)) float64 {
	v, err := fn(closes, period)
	if err != nil {
		log.Printf("[WARN] %s %s calculation failed: %v, left for defaults", symbol, name, err)
		return 0
	}
	return v
}

// CurrentPrices fetches a quote per symbol. Failed lookups are logged and
// omitted so that positions fall back to their average price.
func (c *Collector) CurrentPrices(ctx context.Context, symbols map[string]model.Market) map[string]float64 {
	prices := make(map[string]float64, len(symbols))
	for sym, market := range symbols {
		if err := c.Limiter.Wait(ctx); err != nil {
			log.Printf("[WARN] price lookup aborted: %v", err)
			return prices
		}
		p, err := c.Fetcher.FetchCurrentPrice(sym, market)
		if err != nil {
			log.Printf("[WARN] %s current price failed: %v", sym, err)
			continue
		}
		if p > 0 {
			prices[strings.ToUpper(sym)] = p
		}
	}
	return prices
}
