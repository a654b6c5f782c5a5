package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
)

const monthsPerYear = 12

// Performance summarizes holding the emitted decisions month to month
type Performance struct {
	Periods          int           `json:"periods"`
	TotalReturn      float64       `json:"total_return"`
	AnnualizedReturn float64       `json:"annualized_return"`
	CAGR             float64       `json:"cagr"`
	Volatility       float64       `json:"volatility"`
	SharpeRatio      float64       `json:"sharpe_ratio"`
	SortinoRatio     float64       `json:"sortino_ratio"`
	MaxDrawdown      float64       `json:"max_drawdown"`
	HitRate          float64       `json:"hit_rate"`
	Rebalances       int           `json:"rebalances"`
	Turnover         float64       `json:"turnover"`
	Undefined        int           `json:"undefined_periods"`
	EquityCurve      []EquityPoint `json:"equity_curve"`
}

// Evaluate holds each record from month t to t+1 and computes metrics
// 무위험 수익률 0, 거래비용 없음
func Evaluate(m *align.Matrix, records []contracts.DecisionRecord) Performance {
	sim := NewSimulator(m)
	sim.Initialize(1.0)

	returns := make([]float64, 0, len(records))
	for _, rec := range records {
		if r, ok := sim.Apply(rec); ok {
			returns = append(returns, r)
		}
	}

	stats := sim.GetStats()
	perf := Performance{
		Periods:     stats.Periods,
		Rebalances:  stats.Rebalances,
		Turnover:    stats.Turnover,
		Undefined:   stats.Undefined,
		EquityCurve: sim.Curve(),
	}
	calculateMetrics(&perf, returns, sim.GetEquity())
	return perf
}

// MonthlyReturns returns the held-month returns in curve order
func (p Performance) MonthlyReturns() []float64 {
	out := make([]float64, len(p.EquityCurve))
	for i, pt := range p.EquityCurve {
		out[i] = pt.Return
	}
	return out
}

// calculateMetrics calculates performance metrics from monthly returns
func calculateMetrics(perf *Performance, returns []float64, finalEquity float64) {
	if len(returns) == 0 {
		return
	}

	// Total return
	perf.TotalReturn = finalEquity - 1.0

	// CAGR
	years := float64(len(returns)) / monthsPerYear
	if finalEquity > 0 {
		perf.CAGR = math.Pow(finalEquity, 1.0/years) - 1.0
	}

	// Annualized (arithmetic) return
	perf.AnnualizedReturn = stat.Mean(returns, nil) * monthsPerYear

	// Volatility (annualized)
	perf.Volatility = volatility(returns) * math.Sqrt(monthsPerYear)

	// Sharpe Ratio (assuming 0% risk-free rate)
	if perf.Volatility > 0 {
		perf.SharpeRatio = perf.AnnualizedReturn / perf.Volatility
	}

	// Sortino Ratio (downside deviation)
	downside := make([]float64, 0)
	hits := 0
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
		if r > 0 {
			hits++
		}
	}
	downsideDeviation := volatility(downside) * math.Sqrt(monthsPerYear)
	if downsideDeviation > 0 {
		perf.SortinoRatio = perf.AnnualizedReturn / downsideDeviation
	}

	perf.HitRate = float64(hits) / float64(len(returns))

	// Maximum Drawdown
	perf.MaxDrawdown = maxDrawdown(perf.EquityCurve, 1.0)
}

// volatility is the sample standard deviation (0 below two samples)
func volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

// maxDrawdown calculates maximum drawdown from equity curve
func maxDrawdown(curve []EquityPoint, initial float64) float64 {
	maxDD := 0.0
	peak := initial

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		drawdown := (peak - point.Equity) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}

	return maxDD
}

// HoldingReturn is the buy-and-hold return of one symbol over a fixed span
type HoldingReturn struct {
	StartLabel string  `json:"start" csv:"start"`
	EndLabel   string  `json:"end" csv:"end"`
	StartClose float64 `json:"start_close" csv:"start_close"`
	EndClose   float64 `json:"end_close" csv:"end_close"`
	Return     float64 `json:"return" csv:"return"`
}

// RollingReturns lists every months-long holding return of symbol
// 시작/종료 월 종가 중 하나라도 없으면 그 구간은 제외
func RollingReturns(m *align.Matrix, symbol string, months int) []HoldingReturn {
	out := make([]HoldingReturn, 0)
	if months < 1 {
		return out
	}
	for i := 0; i+months < m.Len(); i++ {
		p0, ok0 := m.Value(i, symbol)
		p1, ok1 := m.Value(i+months, symbol)
		if !ok0 || !ok1 {
			continue
		}
		out = append(out, HoldingReturn{
			StartLabel: m.Label(i),
			EndLabel:   m.Label(i + months),
			StartClose: p0,
			EndClose:   p1,
			Return:     p1/p0 - 1,
		})
	}
	return out
}
