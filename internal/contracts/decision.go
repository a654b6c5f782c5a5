package contracts

import (
	"math"
	"time"
)

// WeightTolerance is the allowed drift of Σweights from 1.0
const WeightTolerance = 1e-9

// MonthLabelFormat is the YYYY-MM label used by every report
const MonthLabelFormat = "2006-01"

// Regime describes which branch of the decision policy produced a record
type Regime string

const (
	RegimeOffensive Regime = "offensive"
	RegimeDefensive Regime = "defensive"
	RegimeMixed     Regime = "mixed"
	RegimeBreadth   Regime = "breadth"
	RegimeCash      Regime = "cash"
)

// SymbolScore is one asset's score in a tier
type SymbolScore struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// TierScores keeps tier scores in declared order
type TierScores struct {
	Tier   string        `json:"tier"`
	Kind   string        `json:"kind"`
	Scores []SymbolScore `json:"scores"`
}

// Allocation is one line of the selected portfolio
type Allocation struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// DecisionRecord is the month-end allocation decision
// ⭐ SSOT: Simulator → ReportSink 전달 단위 (생성 후 불변)
type DecisionRecord struct {
	Month      time.Time    `json:"month"`
	Label      string       `json:"label"`
	Regime     Regime       `json:"regime"`
	Tiers      []TierScores `json:"tiers"`
	Positions  []Allocation `json:"positions"`
	Cash       float64      `json:"cash,omitempty"`
	CashSymbol string       `json:"cash_symbol,omitempty"`
}

// TotalWeight returns Σ position weights + cash
func (d *DecisionRecord) TotalWeight() float64 {
	total := d.Cash
	for _, p := range d.Positions {
		total += p.Weight
	}
	return total
}

// Balanced reports whether weights sum to 1 within WeightTolerance
func (d *DecisionRecord) Balanced() bool {
	return math.Abs(d.TotalWeight()-1.0) <= WeightTolerance
}

// Weight returns the weight held in symbol (0 if absent)
func (d *DecisionRecord) Weight(symbol string) float64 {
	for _, p := range d.Positions {
		if p.Symbol == symbol {
			return p.Weight
		}
	}
	return 0
}

// TierScore looks up a score in a named tier
func (d *DecisionRecord) TierScore(tier, symbol string) (float64, bool) {
	for _, t := range d.Tiers {
		if t.Tier != tier {
			continue
		}
		for _, s := range t.Scores {
			if s.Symbol == symbol {
				return s.Score, true
			}
		}
	}
	return 0, false
}
