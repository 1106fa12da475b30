package calculator

import (
	"errors"
	"math"

	"DCAScanner/internal/model"
)

// MinATR is the floor applied to every ATR value.
const MinATR = 0.001

// CalculateATR returns the rolling mean of the true range over the last
// period bars (fewer when history is short), floored at MinATR.
func CalculateATR(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < 2 {
		return MinATR, nil
	}

	start := len(bars) - period
	if start < 0 {
		start = 0
	}
	sum, n := 0.0, 0
	for i := start; i < len(bars); i++ {
		tr := bars[i].High - bars[i].Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(bars[i].High-prev), math.Abs(bars[i].Low-prev)))
		}
		if math.IsNaN(tr) {
			tr = MinATR
		}
		sum += tr
		n++
	}
	return math.Max(sum/float64(n), MinATR), nil
}

// Bollinger holds the three bands around a simple moving average.
type Bollinger struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollinger returns bands at mult population standard deviations
// around the period SMA of closes.
func CalculateBollinger(closes []float64, period int, mult float64) (Bollinger, error) {
	mid, err := CalculateSMA(closes, period)
	if err != nil {
		return Bollinger{}, err
	}
	variance := 0.0
	for _, c := range closes[len(closes)-period:] {
		d := c - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return Bollinger{Upper: mid + mult*sd, Middle: mid, Lower: mid - mult*sd}, nil
}
