package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
)

func priceMatrix(t *testing.T, prices map[string][]float64) *align.Matrix {
	t.Helper()
	series := make(map[string][]contracts.Observation)
	var symbols []string
	for s, closes := range prices {
		symbols = append(symbols, s)
		for i, c := range closes {
			if math.IsNaN(c) {
				continue
			}
			series[s] = append(series[s], contracts.Observation{
				Symbol: s,
				Date:   time.Date(2020, time.Month(1+i), 28, 0, 0, 0, 0, time.UTC),
				Close:  c,
			})
		}
	}
	m, err := align.Build(series, symbols, farFuture)
	require.NoError(t, err)
	return m
}

func hold(m *align.Matrix, row int, positions ...contracts.Allocation) contracts.DecisionRecord {
	return contracts.DecisionRecord{Month: m.Months[row], Label: m.Label(row), Positions: positions}
}

func TestEvaluate(t *testing.T) {
	m := priceMatrix(t, map[string][]float64{
		"SPY": {100, 110, 99, 108.9},
		"BIL": {50, 50.5, 51.005, 51.51505},
	})

	records := []contracts.DecisionRecord{
		hold(m, 0, contracts.Allocation{Symbol: "SPY", Weight: 1}),   // +10%
		hold(m, 1, contracts.Allocation{Symbol: "SPY", Weight: 1}),   // -10%
		hold(m, 2, contracts.Allocation{Symbol: "SPY", Weight: 0.5}, // +5% + 0.5%
			contracts.Allocation{Symbol: "BIL", Weight: 0.5}),
		hold(m, 3, contracts.Allocation{Symbol: "BIL", Weight: 1}), // 다음 달 없음
	}

	perf := Evaluate(m, records)

	require.Equal(t, 3, perf.Periods)
	require.Len(t, perf.EquityCurve, 3)
	assert.InDelta(t, 0.10, perf.EquityCurve[0].Return, 1e-12)
	assert.InDelta(t, -0.10, perf.EquityCurve[1].Return, 1e-12)
	assert.InDelta(t, 0.055, perf.EquityCurve[2].Return, 1e-12)
	assert.Equal(t, m.Label(1), perf.EquityCurve[0].Label)

	want := 1.1*0.9*1.055 - 1
	assert.InDelta(t, want, perf.TotalReturn, 1e-12)
	assert.InDelta(t, 0.10, perf.MaxDrawdown, 1e-12)
	assert.InDelta(t, 2.0/3, perf.HitRate, 1e-12)
	assert.InDelta(t, math.Pow(1+want, 12.0/3)-1, perf.CAGR, 1e-9)
	assert.Greater(t, perf.Volatility, 0.0)
	assert.Equal(t, 2, perf.Rebalances) // 첫 진입 + SPY→SPY/BIL
}

func TestEvaluate_CashEarnsCashProxy(t *testing.T) {
	m := priceMatrix(t, map[string][]float64{
		"SPY": {100, 102},
		"IEF": {10, 10.1},
	})
	rec := hold(m, 0, contracts.Allocation{Symbol: "SPY", Weight: 0.5})
	rec.Cash = 0.5
	rec.CashSymbol = "IEF"

	perf := Evaluate(m, []contracts.DecisionRecord{rec})
	require.Equal(t, 1, perf.Periods)
	assert.InDelta(t, 0.5*0.02+0.5*0.01, perf.TotalReturn, 1e-12)
}

func TestEvaluate_UndefinedPeriod(t *testing.T) {
	m := priceMatrix(t, map[string][]float64{
		"SPY": {100, math.NaN(), 120},
		"BIL": {1, 1, 1},
	})

	perf := Evaluate(m, []contracts.DecisionRecord{
		hold(m, 0, contracts.Allocation{Symbol: "SPY", Weight: 1}),
		hold(m, 1, contracts.Allocation{Symbol: "BIL", Weight: 1}),
	})
	assert.Equal(t, 1, perf.Undefined)
	assert.Equal(t, 1, perf.Periods)
	assert.InDelta(t, 0.0, perf.TotalReturn, 1e-12)
}

func TestEvaluate_Empty(t *testing.T) {
	m := priceMatrix(t, map[string][]float64{"SPY": {1, 2}})
	perf := Evaluate(m, nil)
	assert.Zero(t, perf.Periods)
	assert.Zero(t, perf.CAGR)
	assert.Empty(t, perf.EquityCurve)
}

func TestRollingReturns(t *testing.T) {
	m := priceMatrix(t, map[string][]float64{
		"AAPL": {10, 11, math.NaN(), 14, 15},
	})

	got := RollingReturns(m, "AAPL", 1)
	// 10→11, 14→15 (결측 주변 구간 제외)
	require.Len(t, got, 2)
	assert.Equal(t, m.Label(0), got[0].StartLabel)
	assert.InDelta(t, 0.1, got[0].Return, 1e-12)
	assert.Equal(t, m.Label(4), got[1].EndLabel)

	got = RollingReturns(m, "AAPL", 3)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.4, got[0].Return, 1e-12)

	assert.Empty(t, RollingReturns(m, "AAPL", 0))
	assert.Empty(t, RollingReturns(m, "AAPL", 10))
}
