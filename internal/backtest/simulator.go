package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
)

// Simulator holds each decision from its month-end to the next month-end
// ⭐ SSOT: 보유 수익률 계산은 여기서만 (거래비용 없음)
type Simulator struct {
	matrix *align.Matrix

	// Current state
	equity float64
	curve  []EquityPoint
	held   map[string]float64

	// Statistics
	periods    int
	rebalances int
	turnover   float64
	undefined  int
}

// EquityPoint is the portfolio value at the end of a holding month
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Label  string    `json:"label"`
	Equity float64   `json:"equity"`
	Return float64   `json:"return"`
}

// Stats holds simulation statistics
type Stats struct {
	Periods    int     // 수익률이 정의된 보유 기간 수
	Rebalances int     // 보유 구성이 바뀐 횟수
	Turnover   float64 // Σ |Δweight| / 2
	Undefined  int     // 다음 달 가격이 없어 제외된 기간
}

// NewSimulator creates a holding simulator over an aligned matrix
func NewSimulator(m *align.Matrix) *Simulator {
	return &Simulator{
		matrix: m,
		held:   make(map[string]float64),
	}
}

// Initialize resets the simulator with initial equity
func (s *Simulator) Initialize(equity float64) {
	s.equity = equity
	s.curve = make([]EquityPoint, 0)
	s.held = make(map[string]float64)
	s.periods = 0
	s.rebalances = 0
	s.turnover = 0
	s.undefined = 0
}

// Apply holds rec for one month; false when the period return is undefined
func (s *Simulator) Apply(rec contracts.DecisionRecord) (float64, bool) {
	row := s.matrix.Row(rec.Month)
	if row < 0 || row+1 >= s.matrix.Len() {
		return 0, false // 마지막 결정: 다음 달 없음
	}

	ret, err := s.periodReturn(rec, row)
	if err != nil {
		s.undefined++
		return 0, false
	}

	s.rebalance(rec)
	s.equity *= 1 + ret
	s.periods++
	s.curve = append(s.curve, EquityPoint{
		Date:   s.matrix.Months[row+1],
		Label:  s.matrix.Label(row + 1),
		Equity: s.equity,
		Return: ret,
	})
	return ret, true
}

// periodReturn = Σ w · (p[t+1]/p[t] − 1), cash earns the cash symbol's return
func (s *Simulator) periodReturn(rec contracts.DecisionRecord, row int) (float64, error) {
	total := 0.0
	for _, p := range rec.Positions {
		r, err := s.assetReturn(p.Symbol, row)
		if err != nil {
			return 0, err
		}
		total += p.Weight * r
	}

	if rec.Cash > 0 && rec.CashSymbol != "" {
		r, err := s.assetReturn(rec.CashSymbol, row)
		if err != nil {
			r = 0 // 현금 대용 자산 가격이 없으면 무수익 현금
		}
		total += rec.Cash * r
	}
	return total, nil
}

func (s *Simulator) assetReturn(symbol string, row int) (float64, error) {
	p0, ok0 := s.matrix.Value(row, symbol)
	p1, ok1 := s.matrix.Value(row+1, symbol)
	if !ok0 || !ok1 {
		return 0, fmt.Errorf("%s %s→%s: no price", symbol, s.matrix.Label(row), s.matrix.Label(row+1))
	}
	return p1/p0 - 1, nil
}

// rebalance tracks turnover between consecutive holdings
func (s *Simulator) rebalance(rec contracts.DecisionRecord) {
	next := make(map[string]float64, len(rec.Positions)+1)
	for _, p := range rec.Positions {
		next[p.Symbol] += p.Weight
	}
	if rec.Cash > 0 {
		next["$cash"] += rec.Cash
	}

	diff := 0.0
	for sym, w := range next {
		diff += math.Abs(w - s.held[sym])
	}
	for sym, w := range s.held {
		if _, ok := next[sym]; !ok {
			diff += w
		}
	}

	if diff > contracts.WeightTolerance {
		s.rebalances++
	}
	s.turnover += diff / 2
	s.held = next
}

// GetEquity returns current equity
func (s *Simulator) GetEquity() float64 {
	return s.equity
}

// Curve returns the equity curve so far
func (s *Simulator) Curve() []EquityPoint {
	return s.curve
}

// GetStats returns simulation statistics
func (s *Simulator) GetStats() Stats {
	return Stats{
		Periods:    s.periods,
		Rebalances: s.rebalances,
		Turnover:   s.turnover,
		Undefined:  s.undefined,
	}
}
