package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -10%, -9%, ..., +9% (20개)
func ladder() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = float64(i-10) / 100
	}
	return out
}

func TestCalculateVaR(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
		wantVaR    float64
		wantCVaR   float64
	}{
		{"empty", nil, 0.95, 0, 0},
		{"95% of ladder", ladder(), 0.95, 0.09, 0.095},
		{"75% of ladder", ladder(), 0.75, 0.05, 0.075},
		{"all gains", []float64{0.01, 0.02, 0.03}, 0.95, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateVaR(tt.returns, tt.confidence)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.InDelta(t, tt.wantVaR, got.VaR, 1e-12)
			assert.InDelta(t, tt.wantCVaR, got.CVaR, 1e-12)
		})
	}
}

func TestCalculateVaR_DoesNotReorderInput(t *testing.T) {
	in := []float64{0.03, -0.02, 0.01}
	CalculateVaR(in, 0.95)
	assert.Equal(t, []float64{0.03, -0.02, 0.01}, in)
}

func TestCalculateParametricVaR(t *testing.T) {
	got := CalculateParametricVaR(0, 0.04, 0.95)
	assert.InDelta(t, 1.6449*0.04, got.VaR, 1e-4)
	assert.Greater(t, got.CVaR, got.VaR)

	// 평균이 충분히 크면 손실 없음
	got = CalculateParametricVaR(0.5, 0.04, 0.95)
	assert.Equal(t, 0.0, got.VaR)

	// σ = 0
	got = CalculateParametricVaR(-0.01, 0, 0.95)
	assert.InDelta(t, 0.01, got.VaR, 1e-12)

	got = CalculateParametricVaR(0, math.NaN(), 0.95)
	assert.Equal(t, 0.0, got.VaR)
}

func TestMonteCarlo_Deterministic(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.NumSimulations = 2000

	a, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), ladder())
	require.NoError(t, err)
	b, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), ladder())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 20, a.Samples)
	assert.Len(t, a.VaR, 2)
	assert.LessOrEqual(t, a.Percentiles["p5"], a.Percentiles["p50"])
	assert.LessOrEqual(t, a.Percentiles["p50"], a.Percentiles["p95"])
	assert.True(t, a.ProbLoss > 0 && a.ProbLoss < 1)
}

func TestMonteCarlo_ConstantReturn(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.NumSimulations = 100
	cfg.HorizonMonths = 12

	res, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), []float64{0.01})
	require.NoError(t, err)

	want := math.Pow(1.01, 12) - 1
	assert.InDelta(t, want, res.MeanReturn, 1e-12)
	assert.InDelta(t, want, res.Percentiles["p1"], 1e-12)
	assert.Equal(t, 0.0, res.ProbLoss)
}

func TestMonteCarlo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMonteCarloSimulator(DefaultMonteCarloConfig()).Simulate(ctx, ladder())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Analyze(t *testing.T) {
	cfg := DefaultMonteCarloConfig()
	cfg.NumSimulations = 500
	cfg.MinSamples = 12

	e, err := NewEngine(cfg, DefaultRiskLimits())
	require.NoError(t, err)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	report, err := e.Analyze(context.Background(), ladder(), 0.30)
	require.NoError(t, err)

	assert.Equal(t, 20, report.Samples)
	require.Len(t, report.Historical, 2)
	assert.InDelta(t, 0.09, report.Historical[0].VaR, 1e-12)
	require.NotNil(t, report.MonteCarlo)
	require.NotNil(t, report.Check)

	// VaR 9% > 5%, CVaR 9.5% > 8%, MDD 30% > 25%
	assert.False(t, report.Check.Passed)
	assert.Len(t, report.Check.Violations, 3)
	assert.Equal(t, fixed, report.Check.CheckedAt)
}

func TestEngine_InsufficientData(t *testing.T) {
	e, err := NewEngine(DefaultMonteCarloConfig(), DefaultRiskLimits())
	require.NoError(t, err)

	_, err = e.Analyze(context.Background(), ladder(), 0)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MonteCarloConfig)
	}{
		{"no simulations", func(c *MonteCarloConfig) { c.NumSimulations = 0 }},
		{"no horizon", func(c *MonteCarloConfig) { c.HorizonMonths = 0 }},
		{"no min samples", func(c *MonteCarloConfig) { c.MinSamples = 0 }},
		{"no confidence", func(c *MonteCarloConfig) { c.ConfidenceLevels = nil }},
		{"confidence 1", func(c *MonteCarloConfig) { c.ConfidenceLevels = []float64{1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMonteCarloConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidConfig)
		})
	}

	assert.NoError(t, ValidateConfig(DefaultMonteCarloConfig()))
}
