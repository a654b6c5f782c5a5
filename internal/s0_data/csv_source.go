package s0_data

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// csvRow is one line of a price export: date,symbol,close
type csvRow struct {
	Date   string  `csv:"date"`
	Symbol string  `csv:"symbol"`
	Close  float64 `csv:"close"`
}

var csvDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// CSVSource serves prices loaded from a CSV export
type CSVSource struct {
	mem *MemorySource
}

// NewCSVSource loads a date,symbol,close CSV file into memory
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*csvRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	obs, err := decodeRows(rows, "")
	if err != nil {
		return nil, fmt.Errorf("%s %w", path, err)
	}

	mem := NewMemorySource()
	mem.Add(obs...)

	return &CSVSource{mem: mem}, nil
}

// PriceSeries implements contracts.PriceSource
func (s *CSVSource) PriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Observation, error) {
	return s.mem.PriceSeries(ctx, symbol, from, to)
}

// Symbols lists symbols present in the file
func (s *CSVSource) Symbols() []string {
	return s.mem.Symbols()
}

// decodeRows converts parsed rows; fallback fills a missing symbol column
func decodeRows(rows []*csvRow, fallback string) ([]contracts.Observation, error) {
	obs := make([]contracts.Observation, 0, len(rows))
	for i, row := range rows {
		date, err := parseCSVDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			symbol = fallback
		}
		obs = append(obs, contracts.Observation{
			Symbol: symbol,
			Date:   date,
			Close:  row.Close,
		})
	}
	return obs, nil
}

func parseCSVDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}
