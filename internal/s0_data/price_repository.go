package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// PriceRepository implements contracts.PriceSource on PostgreSQL
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// PriceSeries retrieves closes for a symbol within date range
func (r *PriceRepository) PriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Observation, error) {
	query := `
		SELECT symbol, trade_date, close_price
		FROM data.daily_prices
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", symbol, err)
	}
	defer rows.Close()

	obs := make([]contracts.Observation, 0)
	for rows.Next() {
		var o contracts.Observation
		if err := rows.Scan(&o.Symbol, &o.Date, &o.Close); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", symbol, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// SymbolRange is the stored date span of one symbol
type SymbolRange struct {
	Symbol string
	First  time.Time
	Last   time.Time
	Rows   int64
}

// Ranges returns stored spans for the given symbols (missing symbols omitted)
func (r *PriceRepository) Ranges(ctx context.Context, symbols []string) ([]SymbolRange, error) {
	query := `
		SELECT symbol, MIN(trade_date), MAX(trade_date), COUNT(*)
		FROM data.daily_prices
		WHERE symbol = ANY($1)
		GROUP BY symbol
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("query ranges: %w", err)
	}
	defer rows.Close()

	var out []SymbolRange
	for rows.Next() {
		var sr SymbolRange
		if err := rows.Scan(&sr.Symbol, &sr.First, &sr.Last, &sr.Rows); err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
