package backtest

import (
	"context"
	"fmt"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/policy"
	"github.com/wonny/aegis/taa/internal/scoring"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/logger"
	"github.com/wonny/aegis/taa/pkg/metrics"
)

// State is the walk-forward loop state
type State string

const (
	StateSeekingStart State = "SEEKING_START"
	StateSimulating   State = "SIMULATING"
	StateDone         State = "DONE"
)

// Engine runs the month-by-month walk-forward simulation
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	cfg      *strategyconfig.Config
	policy   *policy.Policy
	scorer   *scoring.Scorer
	logger   *logger.Logger
	recorder *metrics.Recorder
}

// SkippedMonth records why a month produced no decision
type SkippedMonth struct {
	Label  string `json:"label"`
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Result holds one simulation
type Result struct {
	StrategyID string                     `json:"strategy_id"`
	Window     int                        `json:"window"`
	StartLabel string                     `json:"start_label,omitempty"`
	EndLabel   string                     `json:"end_label,omitempty"`
	Records    []contracts.DecisionRecord `json:"records"`
	Skipped    []SkippedMonth             `json:"skipped,omitempty"`
	State      State                      `json:"state"`
}

// NewEngine creates a new backtest engine
func NewEngine(cfg *strategyconfig.Config, log *logger.Logger, recorder *metrics.Recorder) (*Engine, error) {
	p, err := policy.New(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		cfg:      cfg,
		policy:   p,
		scorer:   scoring.NewScorer(cfg),
		logger:   log.WithStrategy(cfg.Meta.StrategyID),
		recorder: recorder,
	}, nil
}

// Window returns the trailing month count needed before the first decision
func (e *Engine) Window() int {
	n := 1
	for _, r := range e.policy.Required() {
		if w := e.scorer.Window(r.Kind); w > n {
			n = w
		}
	}
	return n
}

// Simulate walks the matrix: SEEKING_START → SIMULATING → DONE
// 재귀 없음, 전역 상태 없음, 월 단위로 ctx 확인
func (e *Engine) Simulate(ctx context.Context, m *align.Matrix) (*Result, error) {
	result := &Result{
		StrategyID: e.cfg.Meta.StrategyID,
		Window:     e.Window(),
		Records:    make([]contracts.DecisionRecord, 0),
		State:      StateSeekingStart,
	}

	start := e.seekStart(m, result.Window)
	if start < 0 {
		result.State = StateDone
		e.logger.WithFields(map[string]interface{}{
			"months": m.Len(),
			"window": result.Window,
		}).Info("No simulation start: universe never fully populated long enough")
		return result, nil
	}

	result.State = StateSimulating
	result.StartLabel = m.Label(start)

	required := e.policy.Required()
	for i := start; i < m.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled at %s: %w", m.Label(i), err)
		}

		book, skip := e.scoreMonth(m, i, required)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			e.recorder.RecordSkip(result.StrategyID, skip.Reason)
			e.logger.WithFields(map[string]interface{}{
				"month":  skip.Label,
				"symbol": skip.Symbol,
				"reason": skip.Reason,
			}).Debug("Month skipped")
			continue
		}

		rec, err := e.policy.Decide(m.Months[i], book)
		if err != nil {
			return nil, fmt.Errorf("decide %s: %w", m.Label(i), err)
		}
		result.Records = append(result.Records, rec)
		e.recorder.RecordDecision(result.StrategyID, string(rec.Regime))
	}

	result.State = StateDone
	if n := len(result.Records); n > 0 {
		result.EndLabel = result.Records[n-1].Label
	}

	e.logger.WithFields(map[string]interface{}{
		"start":     result.StartLabel,
		"end":       result.EndLabel,
		"decisions": len(result.Records),
		"skipped":   len(result.Skipped),
	}).Info("Simulation completed")

	return result, nil
}

// seekStart = 전체 유니버스가 처음 채워진 행 + (window − 1)
func (e *Engine) seekStart(m *align.Matrix, window int) int {
	first := m.FirstComplete(e.cfg.Universe())
	if first < 0 {
		return -1
	}
	start := first + window - 1
	if start >= m.Len() {
		return -1
	}
	return start
}

// scoreMonth computes every required score, or the first reason it cannot
func (e *Engine) scoreMonth(m *align.Matrix, row int, required []policy.Requirement) (policy.ScoreBook, *SkippedMonth) {
	book := make(policy.ScoreBook, len(required))
	for _, r := range required {
		v, err := e.scorer.Score(m, r.Symbol, row, r.Kind)
		if err != nil {
			return nil, &SkippedMonth{Label: m.Label(row), Symbol: r.Symbol, Kind: string(r.Kind), Reason: scoring.Reason(err)}
		}
		book[r] = v
	}
	return book, nil
}
