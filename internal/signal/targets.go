package signal

import "DCAScanner/internal/model"

// ComputeTargets derives target bands, entries and stops from the range
// levels and ATR.
func ComputeTargets(lv model.Levels, atr float64) model.TradePlan {
	rh, rl, h := lv.RH, lv.RL, lv.H
	return model.TradePlan{
		Targets: model.Targets{
			T1: model.Band{From: rh + 0.45*h, To: rh + 0.85*h},
			T2: model.Band{From: rh + 1.50*h, To: rh + 1.55*h},
			T3: model.Band{From: rh + 2.80*h, To: rh + 3.00*h},
		},
		Entries: model.Entries{
			Breakout:   rh + 0.1*atr,
			Retest:     rh,
			DCAAvg:     (rl + lv.VAL) / 2,
			DipReclaim: rl + 0.1*atr,
		},
		Stops: model.Stops{
			Breakout:   rh - 0.8*atr,
			Retest:     rh - 1.0*atr,
			DCA:        rl - 0.25*atr,
			DipReclaim: rl - 0.1*atr,
		},
	}
}
