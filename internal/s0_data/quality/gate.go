package quality

import (
	"github.com/wonny/aegis/taa/internal/align"
)

// QualityGate reports month-end coverage of an aligned universe
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinCoverage float64 `yaml:"min_coverage"` // 1.0 (100%): 첫 관측 이후 결측 없음
}

// SymbolCoverage is the coverage of one symbol inside its own span
type SymbolCoverage struct {
	Symbol   string   `json:"symbol"`
	First    string   `json:"first,omitempty"`
	Last     string   `json:"last,omitempty"`
	Observed int      `json:"observed"`
	Span     int      `json:"span"`
	Coverage float64  `json:"coverage"`
	Gaps     []string `json:"gaps,omitempty"`
	Dropped  int      `json:"dropped,omitempty"`
}

// Snapshot is the coverage report of a matrix
type Snapshot struct {
	Months       int              `json:"months"`
	Symbols      []SymbolCoverage `json:"symbols"`
	QualityScore float64          `json:"quality_score"`
	Passed       bool             `json:"passed"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	if config.MinCoverage <= 0 {
		config.MinCoverage = 1.0
	}
	return &QualityGate{config: config}
}

// Check measures coverage for every column of m
// ⭐ SSOT: 정렬된 월말 행렬의 품질 검증
func (g *QualityGate) Check(m *align.Matrix) *Snapshot {
	snap := &Snapshot{
		Months:  m.Len(),
		Symbols: make([]SymbolCoverage, 0, len(m.Symbols)),
		Passed:  true,
	}

	total := 0.0
	for _, s := range m.Symbols {
		cov := g.symbolCoverage(m, s)
		if cov.Coverage < g.config.MinCoverage {
			snap.Passed = false
		}
		total += cov.Coverage
		snap.Symbols = append(snap.Symbols, cov)
	}

	if len(m.Symbols) > 0 {
		snap.QualityScore = total / float64(len(m.Symbols))
	}
	return snap
}

func (g *QualityGate) symbolCoverage(m *align.Matrix, symbol string) SymbolCoverage {
	cov := SymbolCoverage{Symbol: symbol, Dropped: m.Dropped[symbol]}

	first, last := -1, -1
	for i := 0; i < m.Len(); i++ {
		if _, ok := m.Value(i, symbol); ok {
			if first < 0 {
				first = i
			}
			last = i
			cov.Observed++
		}
	}
	if first < 0 {
		return cov // 관측 없음: coverage 0
	}

	cov.First = m.Label(first)
	cov.Last = m.Label(last)
	cov.Span = last - first + 1
	for i := first; i <= last; i++ {
		if _, ok := m.Value(i, symbol); !ok {
			cov.Gaps = append(cov.Gaps, m.Label(i))
		}
	}
	cov.Coverage = float64(cov.Observed) / float64(cov.Span)
	return cov
}
