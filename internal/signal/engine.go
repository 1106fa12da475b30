package signal

import (
	"math"

	"DCAScanner/internal/model"
)

// Categories maps minimum scores to categories, highest first.
var Categories = []struct {
	MinScore float64
	Category model.Category
}{
	{70, model.CategoryStrongDCA},
	{50, model.CategoryDCA},
	{30, model.CategoryWeakDCA},
}

// DCAThreshold is the score from which a signal counts as a DCA opportunity.
const DCAThreshold = 50

// Categorize maps a score to its category.
func Categorize(score float64) model.Category {
	for _, c := range Categories {
		if score >= c.MinScore {
			return c.Category
		}
	}
	return model.CategoryNoSignal
}

// ComputeSignal normalizes a snapshot and evaluates all eight factors.
// It never fails; a snapshot without a usable close scores 0.
func ComputeSignal(raw model.IndicatorSnapshot) *model.ScoreResult {
	s := Normalize(raw)
	lv := deriveLevels(s)

	if s.Close <= 0 {
		return &model.ScoreResult{
			Symbol:   s.Symbol,
			Market:   s.Market,
			Category: model.CategoryNoSignal,
			Levels:   lv,
			ATR:      s.ATR,
			Plan:     ComputeTargets(lv, s.ATR),
		}
	}

	breakdown := model.ScoreBreakdown{
		Accumulation:  scoreAccumulation(s, lv),
		Spring:        scoreSpring(s, lv),
		OBV:           scoreOBV(s),
		Volume:        scoreVolume(s, lv),
		Breakout:      scoreBreakout(s, lv),
		EMACross:      scoreEMACross(s),
		RSIRecovery:   scoreRSIRecovery(s),
		ATRVolatility: scoreATRVolatility(s),
	}

	score := math.Max(0, math.Min(100, breakdown.Total()))

	return &model.ScoreResult{
		Symbol:    s.Symbol,
		Market:    s.Market,
		Close:     s.Close,
		Score:     score,
		Category:  Categorize(score),
		IsDCA:     score >= DCAThreshold,
		Breakdown: breakdown,
		Levels:    lv,
		ATR:       s.ATR,
		Plan:      ComputeTargets(lv, s.ATR),
	}
}
