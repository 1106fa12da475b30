package model

// IndicatorSnapshot holds the point-in-time indicator values for one symbol.
// A zero value means "not provided"; Normalize fills it in. RSI is the
// exception: 0 is a valid reading, so an absent RSI is NaN.
type IndicatorSnapshot struct {
	Symbol     string
	Market     Market
	Open       float64
	Close      float64
	High       float64
	Low        float64
	Volume     float64
	RSI        float64
	ATR        float64
	EMA20      float64
	EMA50      float64
	SMA20      float64
	SMA50      float64
	BBUpper    float64
	BBLower    float64
	BBMiddle   float64
	MACD       float64
	MACDSignal float64
}
