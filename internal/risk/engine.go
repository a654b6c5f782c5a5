package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrInsufficientData = errors.New("insufficient data for risk analysis")
	ErrInvalidConfig    = errors.New("invalid risk configuration")
)

// Engine 리스크 엔진 (순수 계산기)
// ⭐ SSOT: 입력은 전략의 월간 보유 수익률 (backtest.Performance)
type Engine struct {
	config MonteCarloConfig
	limits RiskLimits
	now    func() time.Time
}

// NewEngine 새 리스크 엔진 생성
func NewEngine(config MonteCarloConfig, limits RiskLimits) (*Engine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return &Engine{config: config, limits: limits, now: time.Now}, nil
}

// Analyze 월간 수익률의 VaR/CVaR, 부트스트랩 분포, 한도 체크
// maxDrawdown: 전체 기간 MDD (한도 체크용)
func (e *Engine) Analyze(ctx context.Context, monthly []float64, maxDrawdown float64) (*Report, error) {
	// Fail-closed: 최소 샘플 수 체크
	if len(monthly) < e.config.MinSamples {
		return nil, fmt.Errorf("%w: got %d months, need %d",
			ErrInsufficientData, len(monthly), e.config.MinSamples)
	}

	mean, std := stat.MeanStdDev(monthly, nil)

	report := &Report{
		Samples:    len(monthly),
		Historical: make([]VaRResult, 0, len(e.config.ConfidenceLevels)),
		Parametric: make([]VaRResult, 0, len(e.config.ConfidenceLevels)),
	}
	for _, c := range e.config.ConfidenceLevels {
		report.Historical = append(report.Historical, CalculateVaR(monthly, c))
		report.Parametric = append(report.Parametric, CalculateParametricVaR(mean, std, c))
	}

	mc, err := NewMonteCarloSimulator(e.config).Simulate(ctx, monthly)
	if err != nil {
		return nil, err
	}
	report.MonteCarlo = mc

	report.Check = e.CheckLimits(CalculateVaR(monthly, 0.95), maxDrawdown)
	return report, nil
}

// CheckLimits 리스크 한도 체크 (0 한도는 미적용)
func (e *Engine) CheckLimits(var95 VaRResult, maxDrawdown float64) *CheckResult {
	result := &CheckResult{
		Passed:     true,
		Limits:     e.limits,
		Violations: make([]string, 0),
		CheckedAt:  e.now(),
	}

	if e.limits.MaxVaR95 > 0 && var95.VaR > e.limits.MaxVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", var95.VaR, e.limits.MaxVaR95))
	}

	if e.limits.MaxCVaR95 > 0 && var95.CVaR > e.limits.MaxCVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", var95.CVaR, e.limits.MaxCVaR95))
	}

	if e.limits.MaxDrawdown > 0 && maxDrawdown > e.limits.MaxDrawdown {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("MaxDrawdown %.4f exceeds limit %.4f", maxDrawdown, e.limits.MaxDrawdown))
	}

	return result
}

// ValidateConfig 설정 유효성 검사
func ValidateConfig(config MonteCarloConfig) error {
	if config.NumSimulations <= 0 {
		return fmt.Errorf("%w: NumSimulations must be > 0", ErrInvalidConfig)
	}
	if config.HorizonMonths <= 0 {
		return fmt.Errorf("%w: HorizonMonths must be > 0", ErrInvalidConfig)
	}
	if config.MinSamples <= 0 {
		return fmt.Errorf("%w: MinSamples must be > 0", ErrInvalidConfig)
	}
	if len(config.ConfidenceLevels) == 0 {
		return fmt.Errorf("%w: ConfidenceLevels cannot be empty", ErrInvalidConfig)
	}
	for _, cl := range config.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return fmt.Errorf("%w: ConfidenceLevel must be between 0 and 1", ErrInvalidConfig)
		}
	}
	return nil
}
