package s0_data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/pkg/httputil"
)

// DefaultFeedCacheTTL bounds how long a downloaded symbol is reused
const DefaultFeedCacheTTL = 10 * time.Minute

// HTTPSource fetches one CSV document per symbol from a remote price feed
// URL 템플릿의 "{symbol}" 을 티커로 치환. 404 → 빈 시계열
// 응답은 ttl 동안만 재사용: 장기 실행(scheduler, api)에서도 새 월말 종가를 봄
type HTTPSource struct {
	client   *httputil.Client
	template string
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]feedEntry
}

type feedEntry struct {
	obs       []contracts.Observation
	fetchedAt time.Time
}

// NewHTTPSource creates a remote CSV source
func NewHTTPSource(client *httputil.Client, template string) (*HTTPSource, error) {
	if !strings.Contains(template, "{symbol}") {
		return nil, fmt.Errorf("price feed URL %q has no {symbol} placeholder", template)
	}
	return &HTTPSource{
		client:   client,
		template: template,
		ttl:      DefaultFeedCacheTTL,
		now:      time.Now,
		cache:    make(map[string]feedEntry),
	}, nil
}

// WithCacheTTL sets how long a symbol's download is reused; 0 disables reuse
func (s *HTTPSource) WithCacheTTL(ttl time.Duration) *HTTPSource {
	if ttl >= 0 {
		s.ttl = ttl
	}
	return s
}

// PriceSeries implements contracts.PriceSource
func (s *HTTPSource) PriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Observation, error) {
	all, err := s.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.Observation, 0, len(all))
	for _, o := range all {
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// fetch downloads a symbol unless a fresh copy is held
func (s *HTTPSource) fetch(ctx context.Context, symbol string) ([]contracts.Observation, error) {
	s.mu.Lock()
	entry, ok := s.cache[symbol]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.obs, nil
	}

	target := strings.ReplaceAll(s.template, "{symbol}", url.PathEscape(symbol))
	body, err := s.client.GetBytes(ctx, target)

	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		body, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	obs := []contracts.Observation{}
	if len(body) > 0 {
		var rows []*csvRow
		if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
			return nil, fmt.Errorf("parse %s feed: %w", symbol, err)
		}
		if obs, err = decodeRows(rows, symbol); err != nil {
			return nil, fmt.Errorf("%s feed %w", symbol, err)
		}
		obs = onlySymbol(obs, symbol)
		sortByDate(obs)
	}

	s.mu.Lock()
	s.cache[symbol] = feedEntry{obs: obs, fetchedAt: s.now()}
	s.mu.Unlock()
	return obs, nil
}

func onlySymbol(obs []contracts.Observation, symbol string) []contracts.Observation {
	out := obs[:0]
	for _, o := range obs {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out
}
