package model

// Category buckets a composite score.
type Category string

const (
	CategoryStrongDCA Category = "Strong DCA"
	CategoryDCA       Category = "DCA"
	CategoryWeakDCA   Category = "Weak DCA"
	CategoryNoSignal  Category = "No DCA Signal"
)

// FactorScore represents a single factor's scoring result.
type FactorScore struct {
	Name       string
	Score      float64
	Max        float64
	Commentary string
}

// AccumulationScore is the narrow-range factor (max 20).
type AccumulationScore struct {
	FactorScore
	Width    float64 // 0-10
	Position float64 // 0-10, ATR bonus included
	ATRBonus float64
}

// SpringScore is the manipulation-wick factor (max 15).
type SpringScore struct {
	FactorScore
	Triggered   bool
	Wick        float64 // 0-7
	Position    float64 // 0-4
	Support     float64 // 0-4
	VolumeBonus float64 // 0-1
}

// VolumeScore is the volume composite factor (max 10).
type VolumeScore struct {
	FactorScore
	DryUp          float64 // 0-3
	SpringVolume   float64 // 0-3
	BreakoutVolume float64 // 0-3
	ChurnPenalty   float64 // -1-0
}

// EMACrossScore is the moving-average alignment factor (max 10).
type EMACrossScore struct {
	FactorScore
	Base             float64
	GoldenCrossBonus float64
}

// ScoreBreakdown keeps every factor of a signal as a named field.
type ScoreBreakdown struct {
	Accumulation  AccumulationScore
	Spring        SpringScore
	OBV           FactorScore
	Volume        VolumeScore
	Breakout      FactorScore
	EMACross      EMACrossScore
	RSIRecovery   FactorScore
	ATRVolatility FactorScore
}

// Factors returns the eight top-level factor scores in evaluation order.
func (b ScoreBreakdown) Factors() []FactorScore {
	return []FactorScore{
		b.Accumulation.FactorScore,
		b.Spring.FactorScore,
		b.OBV,
		b.Volume.FactorScore,
		b.Breakout,
		b.EMACross.FactorScore,
		b.RSIRecovery,
		b.ATRVolatility,
	}
}

// Total sums the factor scores without clamping.
func (b ScoreBreakdown) Total() float64 {
	sum := 0.0
	for _, f := range b.Factors() {
		sum += f.Score
	}
	return sum
}

// Levels are the support/resistance bounds derived from a snapshot.
type Levels struct {
	RL        float64 // support
	VAL       float64 // value area low
	RH        float64 // resistance
	H         float64 // RH - RL
	RangePct  float64
	SpringLow float64
}

// Band is a price interval.
type Band struct {
	From float64
	To   float64
}

// Targets holds the three take-profit zones above resistance.
type Targets struct {
	T1 Band
	T2 Band
	T3 Band
}

// Entries holds the suggested entry prices.
type Entries struct {
	Breakout   float64
	Retest     float64
	DCAAvg     float64
	DipReclaim float64
}

// Stops holds the stop-loss price for each entry style.
type Stops struct {
	Breakout   float64
	Retest     float64
	DCA        float64
	DipReclaim float64
}

// TradePlan is the output of the target calculator.
type TradePlan struct {
	Targets Targets
	Entries Entries
	Stops   Stops
}

// ScoreResult is the final output of the scoring engine.
type ScoreResult struct {
	Symbol    string
	Market    Market
	Close     float64
	Score     float64
	Category  Category
	IsDCA     bool
	Breakdown ScoreBreakdown
	Levels    Levels
	ATR       float64
	Plan      TradePlan
}
