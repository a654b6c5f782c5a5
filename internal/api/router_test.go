package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis/taa/internal/api/handlers"
	"github.com/wonny/aegis/taa/internal/audit"
	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/s0_data"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/metrics"
	"github.com/wonny/aegis/taa/pkg/redis"
)

type fakeStore struct {
	runs map[string]*audit.StoredRun
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*audit.StoredRun, error) {
	if run, ok := f.runs[id]; ok {
		return run, nil
	}
	return nil, fmt.Errorf("%w: %s", audit.ErrRunNotFound, id)
}

func (f *fakeStore) ListRuns(_ context.Context, strategyID string, limit int) ([]contracts.RunInfo, error) {
	out := []contracts.RunInfo{}
	for _, r := range f.runs {
		if r.Info.StrategyID == strategyID && len(out) < limit {
			out = append(out, r.Info)
		}
	}
	return out, nil
}

func gtaaSource(months int) *s0_data.MemorySource {
	src := s0_data.NewMemorySource()
	for j, s := range []string{"SPY", "EFA", "IEF", "DBC", "VNQ", "BIL"} {
		for i := 0; i < months; i++ {
			src.Add(contracts.Observation{
				Symbol: s,
				Date:   time.Date(2010, time.Month(1+i), 28, 0, 0, 0, 0, time.UTC),
				Close:  100 * math.Pow(1.003+0.001*float64(j), float64(i)),
			})
		}
	}
	return src
}

func newTestRouter(t *testing.T, limiter *rate.Limiter) (http.Handler, *metrics.Recorder) {
	t.Helper()
	configs, err := strategyconfig.Presets()
	require.NoError(t, err)

	recorder := metrics.New()
	orch := brain.NewOrchestrator(gtaaSource(60), nil, nil, recorder, nil)
	store := &fakeStore{runs: map[string]*audit.StoredRun{
		"run-1": {Info: contracts.RunInfo{RunID: "run-1", StrategyID: "gtaa"}},
	}}
	h := handlers.NewStrategyHandler(configs, orch, store, redis.NewRateLimiter(redis.Disabled(), "test"), nil)
	return NewRouter(h, recorder, limiter, nil), recorder
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestListStrategies(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := get(t, h, "/api/strategies")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []handlers.StrategySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 6)
	assert.Equal(t, "abaa", out[0].StrategyID)
	assert.Len(t, out[0].ConfigHash, 64)
}

func TestGetStrategy(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := get(t, h, "/api/strategies/GTAA")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"binary_breadth"`)

	rec = get(t, h, "/api/strategies/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// latestRunner reports a fixed published run
type latestRunner struct {
	*brain.Orchestrator
	info contracts.RunInfo
}

func (l latestRunner) LatestRun(_ context.Context, strategyID string) (*contracts.RunInfo, bool) {
	if strategyID != l.info.StrategyID {
		return nil, false
	}
	return &l.info, true
}

func TestGetStrategy_LatestRun(t *testing.T) {
	configs, err := strategyconfig.Presets()
	require.NoError(t, err)

	runner := latestRunner{
		Orchestrator: brain.NewOrchestrator(gtaaSource(60), nil, nil, nil, nil),
		info:         contracts.RunInfo{RunID: "run-7", StrategyID: "gtaa"},
	}
	h := NewRouter(handlers.NewStrategyHandler(configs, runner, nil, nil, nil), nil, nil, nil)

	var detail handlers.StrategyDetail
	rec := get(t, h, "/api/strategies/gtaa")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.LatestRun)
	assert.Equal(t, "run-7", detail.LatestRun.RunID)

	rec = get(t, h, "/api/strategies/baa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "latest_run")
}

func TestGetDecisions(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := get(t, h, "/api/strategies/gtaa/decisions?asof=2015-01-15&last=3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out handlers.DecisionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Records, 3)
	assert.Equal(t, "2014-12", out.Records[2].Label)
	assert.Equal(t, 11, out.Window)
	for _, r := range out.Records {
		assert.True(t, r.Balanced())
	}
}

func TestGetDecisions_BadRequest(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/strategies/gtaa/decisions?asof=15-01-2015").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/strategies/gtaa/decisions?last=-1").Code)
}

func TestGetDecisions_UnknownSymbol(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	// baa 유니버스는 메모리 소스에 없음
	rec := get(t, h, "/api/strategies/baa/decisions?asof=2015-01-15")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "unknown symbol"))
}

func TestRuns(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := get(t, h, "/api/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/missing").Code)

	rec = get(t, h, "/api/strategies/gtaa/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/strategies/gtaa/runs?limit=0").Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestRouter(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	assert.Equal(t, http.StatusOK, get(t, h, "/api/strategies").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/strategies").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health is not limited")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	get(t, h, "/api/strategies")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taa_http_requests_total{method="GET",route="/api/strategies",status="200"} 1`)
}
