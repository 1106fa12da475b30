package signal

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"DCAScanner/internal/model"
)

func TestSignalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	price := gen.Float64Range(-10, 10_000)

	properties.Property("score stays in [0,100] and matches its category", prop.ForAll(
		func(close, high, low, volume, rsi, atr, ema20, ema50 float64) bool {
			res := ComputeSignal(model.IndicatorSnapshot{
				Close: close, High: high, Low: low, Volume: volume,
				RSI: rsi, ATR: atr, EMA20: ema20, EMA50: ema50,
			})
			return res.Score >= 0 && res.Score <= 100 &&
				res.Category == Categorize(res.Score) &&
				res.IsDCA == (res.Score >= DCAThreshold)
		},
		price, price, price,
		gen.Float64Range(-1, 5_000_000),
		gen.Float64Range(-20, 120),
		gen.Float64Range(-5, 10_000),
		price, price,
	))

	properties.Property("normalized ATR is positive and at most half the close", prop.ForAll(
		func(close, high, low, atr float64) bool {
			n := Normalize(model.IndicatorSnapshot{Close: close, High: high, Low: low, ATR: atr})
			return n.ATR > 0 && n.ATR <= 0.5*n.Close
		},
		gen.Float64Range(0.01, 10_000),
		price, price,
		gen.Float64Range(-5, 20_000),
	))

	properties.Property("factors never exceed their maxima", prop.ForAll(
		func(close, high, low, volume, rsi float64) bool {
			res := ComputeSignal(model.IndicatorSnapshot{Close: close, High: high, Low: low, Volume: volume, RSI: rsi})
			for _, f := range res.Breakdown.Factors() {
				if f.Score < 0 || f.Score > f.Max {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.01, 10_000),
		price, price,
		gen.Float64Range(0, 5_000_000),
		gen.Float64Range(0, 100),
	))

	properties.Property("target bands are ordered when H > 0", prop.ForAll(
		func(rl, h, atr float64) bool {
			lv := model.Levels{RL: rl, RH: rl + h, H: h, VAL: rl + 0.25*h}
			tg := ComputeTargets(lv, atr).Targets
			return tg.T1.From < tg.T1.To && tg.T1.To < tg.T2.From &&
				tg.T2.From < tg.T2.To && tg.T2.To < tg.T3.From && tg.T3.From < tg.T3.To
		},
		gen.Float64Range(0.01, 10_000),
		gen.Float64Range(0.01, 5_000),
		gen.Float64Range(0.001, 500),
	))

	properties.TestingRun(t)
}
