package contracts

import (
	"context"
	"time"
)

// Observation is one raw close-price record from the price store
type Observation struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
}

// PriceSource supplies raw daily closes for a symbol
// ⭐ SSOT: 가격 조회 계약 (DB/CSV/메모리 구현이 공유)
type PriceSource interface {
	// PriceSeries returns observations for symbol with from <= date <= to,
	// ordered by date. Symbols without data return an empty slice.
	PriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]Observation, error)
}
