package signal

import (
	"fmt"
	"math"

	"DCAScanner/internal/model"
)

// Thresholds shared by several factors.
const (
	springTolerancePct = 2.0
	nearBreakoutPct    = 5.0
	highVolume         = 1_000_000
	midVolume          = 800_000
	lowVolume          = 500_000
)

// deriveLevels computes support/resistance bounds from a normalized snapshot.
func deriveLevels(s model.IndicatorSnapshot) model.Levels {
	rl := s.Low * 0.95
	rh := s.High * 1.05
	h := rh - rl
	return model.Levels{
		RL:        rl,
		VAL:       rl + 0.25*h,
		RH:        rh,
		H:         h,
		RangePct:  h / math.Max(rl, 0.01) * 100,
		SpringLow: rl * 0.95,
	}
}

// isSpringBar reports whether the bar pierced support and closed back above it.
func isSpringBar(s model.IndicatorSnapshot, lv model.Levels) bool {
	return s.Low < lv.RL*(1-springTolerancePct/100) && s.Close > lv.RL
}

// pctDistance returns |a-ref|/ref in percent, or 100 when ref is not positive.
func pctDistance(a, ref float64) float64 {
	if ref <= 0 {
		return 100
	}
	return math.Abs((a-ref)/ref) * 100
}

// scoreAccumulation scores a narrow trading range and where price sits in it.
// Max: 20 (width 10 + position 10)
func scoreAccumulation(s model.IndicatorSnapshot, lv model.Levels) model.AccumulationScore {
	res := model.AccumulationScore{FactorScore: model.FactorScore{Name: "Accumulation", Max: 20}}
	if lv.RangePct > 20 {
		res.Commentary = fmt.Sprintf("range %.1f%% too wide", lv.RangePct)
		return res
	}

	switch {
	case lv.RangePct <= 10:
		res.Width = 10
	case lv.RangePct <= 15:
		res.Width = 7
	default:
		res.Width = 4
	}

	pos := 0.0
	if pctDistance(s.Close, lv.RL) <= 3 {
		pos += 7
	}
	if pctDistance(s.Close, lv.RH) <= 3 {
		pos += 5
	}
	if pctDistance(s.Close, lv.VAL) <= 2 {
		pos += 3
	}
	if s.ATR > 0 && s.Close > 0 && s.ATR/s.Close*100 <= 2 {
		res.ATRBonus = 1
		pos++
	}
	res.Position = math.Min(pos, 10)

	res.Score = res.Width + res.Position
	res.Commentary = fmt.Sprintf("range %.1f%%, width %.0f, position %.0f", lv.RangePct, res.Width, res.Position)
	return res
}

// scoreSpring scores a lower-wick shakeout below support that reclaims it.
// Max: 15
func scoreSpring(s model.IndicatorSnapshot, lv model.Levels) model.SpringScore {
	res := model.SpringScore{FactorScore: model.FactorScore{Name: "Spring", Max: 15}}
	if !isSpringBar(s, lv) {
		res.Commentary = "no spring"
		return res
	}
	res.Triggered = true

	body := math.Abs(s.Close - s.Open)
	lowWick := math.Min(s.Open, s.Close) - s.Low
	upWick := s.High - math.Max(s.Open, s.Close)

	ratio := 0.0
	if body > 0 {
		ratio = lowWick / body
	}
	switch {
	case ratio >= 1.5:
		res.Wick = 7
	case ratio >= 0.7:
		res.Wick = 4
	}

	switch {
	case lowWick >= upWick*1.2:
		res.Position = 4
	case lowWick >= upWick*0.8:
		res.Position = 2
	}

	dist := 0.0
	if lv.RL > 0 {
		dist = math.Abs((s.Low - lv.RL) / lv.RL * 100)
	}
	switch {
	case dist <= 1.5:
		res.Support = 4
	case dist <= 3:
		res.Support = 2
	}

	if s.Volume > highVolume {
		res.VolumeBonus = 1
	}

	res.Score = math.Min(res.Wick+res.Position+res.Support+res.VolumeBonus, 15)
	res.Commentary = fmt.Sprintf("wick/body %.2f", ratio)
	return res
}

// scoreOBV is a single-bar proxy for rising on-balance volume.
// Max: 15
func scoreOBV(s model.IndicatorSnapshot) model.FactorScore {
	mid := (s.High + s.Low) / 2
	var score float64
	switch {
	case s.RSI > 45 && s.Close > mid:
		score = 15
	case s.RSI > 40:
		score = 10
	default:
		score = 5
	}
	return model.FactorScore{Name: "OBV", Score: score, Max: 15, Commentary: fmt.Sprintf("RSI=%.0f", s.RSI)}
}

// scoreVolume combines dry-up, spring, breakout and churn volume signals.
// Max: 10
func scoreVolume(s model.IndicatorSnapshot, lv model.Levels) model.VolumeScore {
	res := model.VolumeScore{FactorScore: model.FactorScore{Name: "Volume", Max: 10}}
	v := s.Volume

	if v > 0 {
		switch {
		case v > highVolume:
			res.DryUp = 1.5
		case v > lowVolume:
			res.DryUp = 0.5
		default:
			res.DryUp = 3
		}
	}

	if isSpringBar(s, lv) {
		switch {
		case v > midVolume:
			res.SpringVolume = 3
		case v > lowVolume:
			res.SpringVolume = 1.5
		default:
			res.SpringVolume = 0.5
		}
	}

	if s.Close >= lv.RH*0.98 || s.Close > lv.RH {
		switch {
		case v > highVolume:
			res.BreakoutVolume = 3
		case v > midVolume:
			res.BreakoutVolume = 1.5
		default:
			res.BreakoutVolume = 0.5
		}
	}

	trueRange := math.Max(s.High-s.Low, math.Max(math.Abs(s.High-s.Close), math.Abs(s.Low-s.Close)))
	if v > midVolume && trueRange <= 0.6*s.ATR {
		res.ChurnPenalty = -1
	}

	raw := res.DryUp + res.SpringVolume + res.BreakoutVolume + res.ChurnPenalty
	res.Score = math.Max(0, math.Min(10, raw))
	res.Commentary = fmt.Sprintf("vol=%.0f", v)
	return res
}

// scoreBreakout rewards a close within 5% of resistance.
// Max: 10
func scoreBreakout(s model.IndicatorSnapshot, lv model.Levels) model.FactorScore {
	f := model.FactorScore{Name: "Breakout", Max: 10, Commentary: "far from RH"}
	if s.Close >= lv.RH*(1-nearBreakoutPct/100) {
		f.Score = 10
		f.Commentary = "near RH"
	}
	return f
}

// scoreEMACross scores moving-average alignment plus a golden-cross bonus.
// Max: 10
func scoreEMACross(s model.IndicatorSnapshot) model.EMACrossScore {
	res := model.EMACrossScore{FactorScore: model.FactorScore{Name: "EMA Cross", Max: 10}}
	emaUp := s.EMA20 > s.EMA50
	maUp := emaUp && s.SMA20 > s.SMA50

	switch {
	case maUp:
		res.Base = 10
		res.Commentary = "EMA+SMA aligned"
	case emaUp:
		res.Base = 6
		res.Commentary = "EMA aligned"
	default:
		res.Commentary = "not aligned"
	}

	// No bar history is available, so the prior spread is estimated.
	spread := s.EMA20 - s.EMA50
	prevSpread := s.EMA20*0.99 - s.EMA50*1.01
	if emaUp && spread > prevSpread {
		res.GoldenCrossBonus = 2
	}

	res.Score = math.Min(res.Base+res.GoldenCrossBonus, 10)
	return res
}

// scoreRSIRecovery rewards an oversold RSI.
// Max: 10
func scoreRSIRecovery(s model.IndicatorSnapshot) model.FactorScore {
	f := model.FactorScore{Name: "RSI Recovery", Max: 10, Commentary: fmt.Sprintf("RSI=%.0f", s.RSI)}
	if s.RSI < 35 {
		f.Score = 10
	}
	return f
}

// scoreATRVolatility prefers quiet markets, measured as ATR percent of close.
// Max: 10
func scoreATRVolatility(s model.IndicatorSnapshot) model.FactorScore {
	f := model.FactorScore{Name: "ATR Volatility", Max: 10}
	if s.Close <= 0 || s.ATR <= 0 {
		f.Commentary = "ATR unavailable"
		return f
	}
	perc := s.ATR / s.Close * 100
	if perc > 100 {
		perc = 5
	}

	switch {
	case perc < 1:
		f.Score = 10
	case perc < 2:
		f.Score = 8
	case perc < 3:
		f.Score = 5
	case perc < 5:
		f.Score = 3
	}
	f.Commentary = fmt.Sprintf("ATR%%=%.2f", perc)
	return f
}
