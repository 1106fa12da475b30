package signal

import (
	"math"
	"testing"

	"DCAScanner/internal/model"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeSignal_QuietAccumulation(t *testing.T) {
	snap := model.IndicatorSnapshot{
		Symbol: "THYAO", Market: model.MarketBIST,
		Open: 99.5, Close: 100, High: 101, Low: 99,
		Volume: 300000, RSI: 30, ATR: 0.8,
		EMA20: 101, EMA50: 100, SMA20: 101, SMA50: 100,
	}
	res := ComputeSignal(snap)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"accumulation", res.Breakdown.Accumulation.Score, 8},
		{"spring", res.Breakdown.Spring.Score, 0},
		{"obv", res.Breakdown.OBV.Score, 5},
		{"volume", res.Breakdown.Volume.Score, 3},
		{"breakout", res.Breakdown.Breakout.Score, 0},
		{"ema", res.Breakdown.EMACross.Score, 10},
		{"rsi", res.Breakdown.RSIRecovery.Score, 10},
		{"atr", res.Breakdown.ATRVolatility.Score, 10},
		{"total", res.Score, 46},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s: expected %.2f, got %.2f", c.name, c.want, c.got)
		}
	}
	if res.Category != model.CategoryWeakDCA {
		t.Errorf("expected %q, got %q", model.CategoryWeakDCA, res.Category)
	}
	if res.IsDCA {
		t.Error("score below 50 must not be flagged as DCA")
	}
	if res.Symbol != "THYAO" || res.Market != model.MarketBIST {
		t.Errorf("identity not carried through: %s/%s", res.Symbol, res.Market)
	}
}

func TestComputeSignal_LevelsAndPlan(t *testing.T) {
	res := ComputeSignal(model.IndicatorSnapshot{Close: 100, High: 101, Low: 99, ATR: 0.8})
	lv := res.Levels
	if !approx(lv.RL, 94.05) || !approx(lv.RH, 106.05) || !approx(lv.H, 12) || !approx(lv.VAL, 97.05) {
		t.Fatalf("unexpected levels: %+v", lv)
	}
	if !approx(lv.SpringLow, 94.05*0.95) {
		t.Errorf("spring low: got %.4f", lv.SpringLow)
	}
	if !approx(res.Plan.Targets.T1.From, 106.05+0.45*12) {
		t.Errorf("plan not derived from levels: %+v", res.Plan.Targets.T1)
	}
	if !approx(res.ATR, 0.8) {
		t.Errorf("expected ATR 0.8, got %.4f", res.ATR)
	}
}

func TestComputeSignal_NearBreakout(t *testing.T) {
	// RH = 105, close within 5% of it.
	res := ComputeSignal(model.IndicatorSnapshot{Close: 100, High: 100, Low: 95, RSI: 55})
	if res.Breakdown.Breakout.Score != 10 {
		t.Errorf("expected breakout score 10, got %.1f", res.Breakdown.Breakout.Score)
	}
	if res.Breakdown.OBV.Score != 15 {
		t.Errorf("expected OBV 15 for rsi>45 and close above midpoint, got %.1f", res.Breakdown.OBV.Score)
	}
}

func TestComputeSignal_ZeroRSIIsOversold(t *testing.T) {
	res := ComputeSignal(model.IndicatorSnapshot{Close: 100, High: 101, Low: 99, RSI: 0})
	if res.Breakdown.RSIRecovery.Score != 10 {
		t.Errorf("expected RSI recovery 10 for RSI 0, got %.1f", res.Breakdown.RSIRecovery.Score)
	}
	if res.Breakdown.OBV.Score != 5 {
		t.Errorf("expected OBV 5 for RSI 0, got %.1f", res.Breakdown.OBV.Score)
	}
}

func TestComputeSignal_DegenerateSnapshot(t *testing.T) {
	res := ComputeSignal(model.IndicatorSnapshot{Symbol: "DEAD", High: 5, Low: 4})
	if res.Score != 0 || res.Category != model.CategoryNoSignal {
		t.Fatalf("expected an unscored result, got %.2f (%s)", res.Score, res.Category)
	}
	if res.ATR <= 0 {
		t.Errorf("ATR must stay positive, got %f", res.ATR)
	}
	if res.Symbol != "DEAD" {
		t.Errorf("expected symbol to be kept, got %q", res.Symbol)
	}
}

func TestCategorize_AllBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Category
	}{
		{100, model.CategoryStrongDCA},
		{70, model.CategoryStrongDCA},
		{69.9, model.CategoryDCA},
		{50, model.CategoryDCA},
		{49.99, model.CategoryWeakDCA},
		{30, model.CategoryWeakDCA},
		{29.9, model.CategoryNoSignal},
		{0, model.CategoryNoSignal},
	}
	for _, tt := range tests {
		if got := Categorize(tt.score); got != tt.want {
			t.Errorf("score %.2f: expected %q, got %q", tt.score, tt.want, got)
		}
	}
}

func TestScan_SortsByScore(t *testing.T) {
	snaps := []model.IndicatorSnapshot{
		{Symbol: "LOW", Close: 100, High: 150, Low: 60, RSI: 70, ATR: 20, EMA20: 90, EMA50: 100},
		{Symbol: "HIGH", Close: 100, High: 101, Low: 99, RSI: 30, ATR: 0.8, EMA20: 101, EMA50: 100, SMA20: 101, SMA50: 100},
		{Symbol: "EMPTY"},
	}
	results := Scan(snaps)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Errorf("results not sorted: %s(%.1f) before %s(%.1f)",
				results[i-1].Symbol, results[i-1].Score, results[i].Symbol, results[i].Score)
		}
	}
	if results[0].Symbol != "HIGH" {
		t.Errorf("expected HIGH first, got %s", results[0].Symbol)
	}
}

func TestFilterDCA(t *testing.T) {
	in := []*model.ScoreResult{{Symbol: "A", IsDCA: true}, {Symbol: "B"}, {Symbol: "C", IsDCA: true}}
	out := FilterDCA(in)
	if len(out) != 2 || out[0].Symbol != "A" || out[1].Symbol != "C" {
		t.Errorf("unexpected filter result: %+v", out)
	}
}
