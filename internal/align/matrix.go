package align

import (
	"time"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// Matrix is the month-end aligned close matrix (rows = months, cols = symbols)
// ⭐ SSOT: 빌드 후 읽기 전용, 결측은 결측으로 유지 (forward-fill 금지)
type Matrix struct {
	Months  []time.Time // 월말 (UTC), 행 간격 정확히 1개월
	Symbols []string    // 요청 순서

	values  [][]float64
	present [][]bool
	column  map[string]int

	// Dropped counts raw records rejected as invalid (non-positive / non-finite)
	Dropped map[string]int
}

func newMatrix(symbols []string, months []time.Time) *Matrix {
	m := &Matrix{
		Months:  months,
		Symbols: symbols,
		values:  make([][]float64, len(months)),
		present: make([][]bool, len(months)),
		column:  make(map[string]int, len(symbols)),
		Dropped: make(map[string]int),
	}
	for i := range months {
		m.values[i] = make([]float64, len(symbols))
		m.present[i] = make([]bool, len(symbols))
	}
	for j, s := range symbols {
		m.column[s] = j
	}
	return m
}

// Len returns the number of month rows
func (m *Matrix) Len() int {
	return len(m.Months)
}

// Has reports whether symbol is a column
func (m *Matrix) Has(symbol string) bool {
	_, ok := m.column[symbol]
	return ok
}

// Value returns the close of symbol at row, false when missing
func (m *Matrix) Value(row int, symbol string) (float64, bool) {
	j, ok := m.column[symbol]
	if !ok || row < 0 || row >= len(m.Months) {
		return 0, false
	}
	if !m.present[row][j] {
		return 0, false
	}
	return m.values[row][j], true
}

// Label returns the YYYY-MM label of row
func (m *Matrix) Label(row int) string {
	return m.Months[row].Format(contracts.MonthLabelFormat)
}

// Complete reports whether every symbol has a value at row
func (m *Matrix) Complete(row int, symbols []string) bool {
	for _, s := range symbols {
		if _, ok := m.Value(row, s); !ok {
			return false
		}
	}
	return true
}

// FirstComplete returns the first row where every symbol is present, or -1
func (m *Matrix) FirstComplete(symbols []string) int {
	for i := range m.Months {
		if m.Complete(i, symbols) {
			return i
		}
	}
	return -1
}

// Row returns the row index of the month containing t, or -1
func (m *Matrix) Row(t time.Time) int {
	if len(m.Months) == 0 {
		return -1
	}
	i := monthsBetween(m.Months[0], t)
	if i < 0 || i >= len(m.Months) {
		return -1
	}
	return i
}

// Observed returns the number of present cells of symbol
func (m *Matrix) Observed(symbol string) int {
	j, ok := m.column[symbol]
	if !ok {
		return 0
	}
	n := 0
	for i := range m.present {
		if m.present[i][j] {
			n++
		}
	}
	return n
}

func set(m *Matrix, row int, symbol string, v float64) {
	j := m.column[symbol]
	m.values[row][j] = v
	m.present[row][j] = true
}
