package s0_data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/taa/pkg/config"
	"github.com/wonny/aegis/taa/pkg/httputil"
	"github.com/wonny/aegis/taa/pkg/logger"
)

func newFeed(t *testing.T, handler http.HandlerFunc) *HTTPSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httputil.New(&config.Config{}, logger.NewNop())
	src, err := NewHTTPSource(client, server.URL+"/{symbol}.csv")
	require.NoError(t, err)
	return src
}

func TestHTTPSource(t *testing.T) {
	var hits int32
	src := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/SPY.csv":
			// per-symbol file without a symbol column
			w.Write([]byte("date,close\n2024-02-29,500\n2024-01-31,480.5\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	obs, err := src.PriceSeries(ctx, "SPY", epoch, horizon)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "SPY", obs[0].Symbol)
	assert.Equal(t, 480.5, obs[0].Close, "sorted by date")

	obs, err = src.PriceSeries(ctx, "SPY", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), horizon)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second call served from memory")

	obs, err = src.PriceSeries(ctx, "QQQ", epoch, horizon)
	require.NoError(t, err)
	assert.Empty(t, obs, "404 is an empty series")
}

func TestHTTPSource_RefetchesAfterTTL(t *testing.T) {
	var hits int32
	src := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		// 첫 응답은 1월만, 이후 2월 종가 추가
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Write([]byte("date,close\n2024-01-31,480\n"))
			return
		}
		w.Write([]byte("date,close\n2024-01-31,480\n2024-02-29,500\n"))
	})

	clock := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return clock }
	src.WithCacheTTL(time.Hour)
	ctx := context.Background()

	obs, err := src.PriceSeries(ctx, "SPY", epoch, horizon)
	require.NoError(t, err)
	require.Len(t, obs, 1)

	clock = clock.Add(30 * time.Minute)
	obs, err = src.PriceSeries(ctx, "SPY", epoch, horizon)
	require.NoError(t, err)
	assert.Len(t, obs, 1, "within ttl")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	clock = clock.Add(time.Hour)
	obs, err = src.PriceSeries(ctx, "SPY", epoch, horizon)
	require.NoError(t, err)
	require.Len(t, obs, 2, "expired entry is downloaded again")
	assert.Equal(t, 500.0, obs[1].Close)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPSource_ZeroTTLAlwaysFetches(t *testing.T) {
	var hits int32
	src := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("date,close\n2024-01-31,480\n"))
	})
	src.WithCacheTTL(0)

	for i := 0; i < 3; i++ {
		_, err := src.PriceSeries(context.Background(), "SPY", epoch, horizon)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHTTPSource_ServerError(t *testing.T) {
	src := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := src.PriceSeries(context.Background(), "SPY", epoch, horizon)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fetch SPY"))
}

func TestNewHTTPSource_NeedsPlaceholder(t *testing.T) {
	_, err := NewHTTPSource(httputil.New(&config.Config{}, nil), "https://example.com/prices.csv")
	assert.Error(t, err)
}
