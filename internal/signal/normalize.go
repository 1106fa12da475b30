package signal

import (
	"math"

	"DCAScanner/internal/model"
)

// minATR is the floor used whenever no usable ATR can be derived.
const minATR = 0.001

// Normalize returns a fully populated copy of raw. It never fails: missing,
// negative or non-finite fields are replaced with documented defaults.
// A missing RSI must be passed as NaN.
func Normalize(raw model.IndicatorSnapshot) model.IndicatorSnapshot {
	n := raw

	n.Close = nonNegative(raw.Close)
	n.Volume = nonNegative(raw.Volume)
	n.Open = orDefault(raw.Open, n.Close)
	n.High = orDefault(raw.High, n.Close)
	n.Low = orDefault(raw.Low, n.Close)
	if n.High < n.Low {
		n.High, n.Low = n.Low, n.High
	}

	n.ATR = normalizeATR(raw.ATR, n.High, n.Low, n.Close)

	n.EMA20 = orDefault(raw.EMA20, n.Close)
	n.EMA50 = orDefault(raw.EMA50, n.Close)
	n.SMA20 = orDefault(raw.SMA20, n.Close)
	n.SMA50 = orDefault(raw.SMA50, n.Close)

	n.BBMiddle = orDefault(raw.BBMiddle, n.Close)
	n.BBUpper = orDefault(raw.BBUpper, n.Close*1.02)
	n.BBLower = orDefault(raw.BBLower, n.Close*0.98)

	// RSI 0 is a real reading (no gains over the window); only NaN means missing.
	switch {
	case !finite(raw.RSI):
		n.RSI = 50
	case raw.RSI < 0:
		n.RSI = 0
	case raw.RSI > 100:
		n.RSI = 100
	}

	n.MACD = finiteOrZero(raw.MACD)
	n.MACDSignal = finiteOrZero(raw.MACDSignal)
	return n
}

// normalizeATR derives a bar-range ATR when none is given and clamps
// implausibly large values to 5% of the close.
func normalizeATR(atr, high, low, close float64) float64 {
	if !finite(atr) || atr <= 0 {
		atr = math.Max(high-low, minATR)
	}
	if atr > close*0.5 {
		atr = close * 0.05
	}
	if atr <= 0 {
		atr = minATR
	}
	return atr
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	if !finite(v) || v < 0 {
		return 0
	}
	return v
}

func orDefault(v, def float64) float64 {
	if !finite(v) || v <= 0 {
		return def
	}
	return v
}
