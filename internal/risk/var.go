package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 월간 수익률 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// 95% VaR = 하위 5% 백분위수
	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 수익률, varIdx 이하가 tail
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}
	return lossOf(stat.Mean(sorted[:varIdx+1], nil))
}

// CalculateParametricVaR 정규분포 가정 VaR
// VaR = z·σ - μ, CVaR = σ·φ(z)/(1-c) - μ (σ 가 0 또는 NaN 이면 평균 손실만)
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if !(stdDev > 0) || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence, VaR: lossOf(mean), CVaR: lossOf(mean)}
	}

	z := distuv.UnitNormal.Quantile(confidence)
	phi := distuv.UnitNormal.Prob(z)

	return VaRResult{
		Confidence: confidence,
		VaR:        math.Max(z*stdDev-mean, 0),
		CVaR:       math.Max(stdDev*phi/(1-confidence)-mean, 0),
	}
}

// lossOf 손실을 양수로 (이익이면 0)
func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
