package calculator

import (
	"errors"

	"DCAScanner/internal/model"
)

var errNotEnoughData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errNotEnoughData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// EMASeries returns the exponential moving average of every point, seeded
// with the first price and smoothed with alpha = 2/(period+1).
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) == 0 {
		return nil, errNotEnoughData
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// CalculateEMA returns the latest EMA value. Requires at least period prices.
func CalculateEMA(prices []float64, period int) (float64, error) {
	if period > 0 && len(prices) < period {
		return 0, errNotEnoughData
	}
	series, err := EMASeries(prices, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// CalculateMACD returns the MACD line (EMA12 - EMA26) and its 9-period signal.
func CalculateMACD(prices []float64) (macd, signal float64, err error) {
	if len(prices) < 26 {
		return 0, 0, errNotEnoughData
	}
	fast, _ := EMASeries(prices, 12)
	slow, _ := EMASeries(prices, 26)
	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}
	sig, _ := EMASeries(line, 9)
	return line[len(line)-1], sig[len(sig)-1], nil
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Closes returns the close price of every bar.
func Closes(bars []model.OHLCV) []float64 { return extractCloses(bars) }
