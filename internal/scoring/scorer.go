package scoring

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

// 점수 미정의 사유 (해당 월 skip)
var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMissingObservation  = errors.New("missing observation")
	ErrDegenerateBase      = errors.New("degenerate base")
)

// Scorer computes momentum / trend scores on an aligned matrix
// 순수 함수: 같은 입력 → 같은 출력, 보간 없음
type Scorer struct {
	minHistory int
	horizons   []strategyconfig.Horizon
	smaWindow  int
	smaCurrent bool
}

// NewScorer creates a scorer from strategy config
func NewScorer(cfg *strategyconfig.Config) *Scorer {
	return &Scorer{
		minHistory: cfg.MinimumHistoryMonths,
		horizons:   cfg.Momentum.Horizons,
		smaWindow:  cfg.SMA.Window,
		smaCurrent: cfg.SMA.IncludeCurrent,
	}
}

// Window returns the trailing row count a score of kind needs ending at t
// N = max(minimum_history_months, span)
func (s *Scorer) Window(kind strategyconfig.ScoreKind) int {
	span := 0
	switch kind {
	case strategyconfig.ScoreMomentum:
		for _, h := range s.horizons {
			if h.Months+1 > span {
				span = h.Months + 1
			}
		}
	case strategyconfig.ScoreSMARatio:
		span = s.smaWindow + 1
		if s.smaCurrent {
			span = s.smaWindow
		}
	}
	if s.minHistory > span {
		return s.minHistory
	}
	return span
}

// Score dispatches on kind
func (s *Scorer) Score(m *align.Matrix, symbol string, t int, kind strategyconfig.ScoreKind) (float64, error) {
	switch kind {
	case strategyconfig.ScoreMomentum:
		return s.Momentum(m, symbol, t)
	case strategyconfig.ScoreSMARatio:
		return s.SMARatio(m, symbol, t)
	default:
		return 0, fmt.Errorf("unknown score kind %q", kind)
	}
}

// Momentum = Σ weight(H) · (p[t]/p[t−H] − 1)
func (s *Scorer) Momentum(m *align.Matrix, symbol string, t int) (float64, error) {
	window, err := s.window(m, symbol, t, s.Window(strategyconfig.ScoreMomentum))
	if err != nil {
		return 0, err
	}

	last := len(window) - 1
	current := window[last]
	score := 0.0
	for _, h := range s.horizons {
		base := window[last-h.Months]
		if base <= 0 {
			return 0, fmt.Errorf("%s@%s %dM base=%v: %w", symbol, m.Label(t), h.Months, base, ErrDegenerateBase)
		}
		score += h.Weight * (current/base - 1)
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%s@%s momentum not finite: %w", symbol, m.Label(t), ErrDegenerateBase)
	}
	return score, nil
}

// SMARatio = p[t] / SMA(W) − 1
// include_current=false: mean(p[t−W..t−1]), true: mean(p[t−W+1..t])
func (s *Scorer) SMARatio(m *align.Matrix, symbol string, t int) (float64, error) {
	window, err := s.window(m, symbol, t, s.Window(strategyconfig.ScoreSMARatio))
	if err != nil {
		return 0, err
	}

	last := len(window) - 1
	var avgRange []float64
	if s.smaCurrent {
		avgRange = window[last-s.smaWindow+1 : last+1]
	} else {
		avgRange = window[last-s.smaWindow : last]
	}

	mean := stat.Mean(avgRange, nil)
	if mean <= 0 || math.IsNaN(mean) {
		return 0, fmt.Errorf("%s@%s sma=%v: %w", symbol, m.Label(t), mean, ErrDegenerateBase)
	}
	return window[last]/mean - 1, nil
}

// window returns closes for rows t−n+1..t, failing on any gap
func (s *Scorer) window(m *align.Matrix, symbol string, t, n int) ([]float64, error) {
	if t < 0 || t >= m.Len() {
		return nil, fmt.Errorf("%s row %d outside matrix: %w", symbol, t, ErrInsufficientHistory)
	}
	if !m.Has(symbol) {
		return nil, fmt.Errorf("%s not aligned: %w", symbol, ErrMissingObservation)
	}
	start := t - n + 1
	if start < 0 {
		return nil, fmt.Errorf("%s@%s needs %d months, have %d: %w", symbol, m.Label(t), n, t+1, ErrInsufficientHistory)
	}

	out := make([]float64, 0, n)
	for i := start; i <= t; i++ {
		v, ok := m.Value(i, symbol)
		if !ok {
			return nil, fmt.Errorf("%s@%s gap at %s: %w", symbol, m.Label(t), m.Label(i), ErrMissingObservation)
		}
		out = append(out, v)
	}
	return out, nil
}

// Reason maps a score error onto a short diagnostic code
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrMissingObservation):
		return "missing_observation"
	case errors.Is(err, ErrDegenerateBase):
		return "degenerate_base"
	default:
		return "error"
	}
}
