package s0_data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// MemorySource is an in-memory PriceSource (tests, CSV backing store)
type MemorySource struct {
	mu     sync.RWMutex
	series map[string][]contracts.Observation
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{series: make(map[string][]contracts.Observation)}
}

// Add appends observations
func (s *MemorySource) Add(obs ...contracts.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		s.series[o.Symbol] = append(s.series[o.Symbol], o)
	}
}

// PriceSeries implements contracts.PriceSource
func (s *MemorySource) PriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Observation, 0, len(s.series[symbol]))
	for _, o := range s.series[symbol] {
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		out = append(out, o)
	}
	sortByDate(out)
	return out, nil
}

func sortByDate(obs []contracts.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})
}

// Symbols lists stored symbols, sorted
func (s *MemorySource) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
