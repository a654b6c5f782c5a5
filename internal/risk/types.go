package risk

import "time"

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// VaRResult VaR 계산 결과 (월간 수익률 기준)
// - VaR=0.05 → 95% 신뢰수준에서 한 달 최대 5% 손실
// - CVaR=0.07 → 5% tail에서 평균 7% 손실
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// MonteCarloConfig 부트스트랩 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 명시적으로 기록
type MonteCarloConfig struct {
	NumSimulations   int       `json:"num_simulations"`   // 기본 10000
	HorizonMonths    int       `json:"horizon_months"`    // 누적 기간 (기본 12개월)
	ConfidenceLevels []float64 `json:"confidence_levels"` // [0.95, 0.99]
	Seed             int64     `json:"seed"`              // 0 → 1 (결정적)
	MinSamples       int       `json:"min_samples"`       // fail-closed, 기본 24개월
}

// DefaultMonteCarloConfig 기본 설정
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations:   10000,
		HorizonMonths:    12,
		ConfidenceLevels: []float64{0.95, 0.99},
		Seed:             1,
		MinSamples:       24,
	}
}

// MonteCarloResult 부트스트랩 결과 (HorizonMonths 누적 수익률 분포)
type MonteCarloResult struct {
	Config      MonteCarloConfig   `json:"config"`
	Samples     int                `json:"input_sample_count"`
	MeanReturn  float64            `json:"mean_return"`
	StdDev      float64            `json:"std_dev"`
	VaR         []VaRResult        `json:"var"`
	ProbLoss    float64            `json:"prob_loss"` // 누적 수익률 < 0 비율
	Percentiles map[string]float64 `json:"percentiles"`
}

// Report 전략 월간 수익률의 tail risk 요약
type Report struct {
	Samples    int               `json:"samples"`
	Historical []VaRResult       `json:"historical"`
	Parametric []VaRResult       `json:"parametric"`
	MonteCarlo *MonteCarloResult `json:"monte_carlo,omitempty"`
	Check      *CheckResult      `json:"check,omitempty"`
}

// RiskLimits 리스크 한도 (월간 VaR/CVaR, 전체 MDD)
type RiskLimits struct {
	MaxVaR95    float64 `json:"max_var_95"`
	MaxCVaR95   float64 `json:"max_cvar_95"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// DefaultRiskLimits 기본 리스크 한도
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxVaR95:    0.05, // 월 5%
		MaxCVaR95:   0.08,
		MaxDrawdown: 0.25,
	}
}

// CheckResult 리스크 한도 체크 결과
type CheckResult struct {
	Passed     bool       `json:"passed"`
	Limits     RiskLimits `json:"limits"`
	Violations []string   `json:"violations"`
	CheckedAt  time.Time  `json:"checked_at"`
}
