package risk

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var percentileLevels = []float64{0.01, 0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95, 0.99}

// MonteCarloSimulator 월간 수익률 부트스트랩 시뮬레이터
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성 (같은 Seed → 같은 결과)
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = 1
	}
	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Simulate HorizonMonths 동안의 누적 수익률 분포를 부트스트랩으로 추정
// 과거 월간 수익률을 복원 추출해서 복리로 누적
func (mc *MonteCarloSimulator) Simulate(ctx context.Context, monthly []float64) (*MonteCarloResult, error) {
	if len(monthly) == 0 {
		return nil, fmt.Errorf("%w: empty return series", ErrInsufficientData)
	}

	results := make([]float64, mc.config.NumSimulations)
	for i := range results {
		// 1000회마다 취소 확인
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cum := 1.0
		for m := 0; m < mc.config.HorizonMonths; m++ {
			cum *= 1 + monthly[mc.rng.Intn(len(monthly))]
		}
		results[i] = cum - 1
	}

	return mc.calculateResult(results, len(monthly)), nil
}

// calculateResult 시뮬레이션 결과 통계
func (mc *MonteCarloSimulator) calculateResult(results []float64, samples int) *MonteCarloResult {
	sort.Float64s(results)

	mean, std := stat.MeanStdDev(results, nil)
	res := &MonteCarloResult{
		Config:      mc.config,
		Samples:     samples,
		MeanReturn:  mean,
		StdDev:      std,
		VaR:         make([]VaRResult, 0, len(mc.config.ConfidenceLevels)),
		Percentiles: make(map[string]float64, len(percentileLevels)),
	}

	for _, c := range mc.config.ConfidenceLevels {
		res.VaR = append(res.VaR, CalculateVaR(results, c))
	}

	losses := sort.SearchFloat64s(results, 0) // 0 미만 개수
	res.ProbLoss = float64(losses) / float64(len(results))

	for _, p := range percentileLevels {
		res.Percentiles[fmt.Sprintf("p%d", int(p*100+0.5))] = stat.Quantile(p, stat.Empirical, results, nil)
	}

	return res
}
