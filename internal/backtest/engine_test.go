package backtest

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

var farFuture = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

// synthetic builds a matrix from Jan 2010 with a distinct wave per symbol
// gaps: symbol → 결측 행 번호
func synthetic(t *testing.T, symbols []string, months int, gaps map[string][]int) *align.Matrix {
	t.Helper()
	series := make(map[string][]contracts.Observation, len(symbols))
	for j, s := range symbols {
		skip := make(map[int]bool)
		for _, g := range gaps[s] {
			skip[g] = true
		}
		for i := 0; i < months; i++ {
			if skip[i] {
				continue
			}
			price := 100 * math.Pow(1.004+0.001*float64(j%5), float64(i)) * (1 + 0.08*math.Sin(float64(i)/(2.5+float64(j))))
			series[s] = append(series[s], contracts.Observation{
				Symbol: s,
				Date:   time.Date(2010, time.Month(1+i), 28, 0, 0, 0, 0, time.UTC),
				Close:  price,
			})
		}
	}
	m, err := align.Build(series, symbols, farFuture)
	require.NoError(t, err)
	return m
}

func newEngine(t *testing.T, id string) (*Engine, *strategyconfig.Config) {
	t.Helper()
	cfg, err := strategyconfig.Preset(id)
	require.NoError(t, err)
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	return e, cfg
}

func TestSimulate_AllPresetsBalanced(t *testing.T) {
	windows := map[string]int{"abaa": 13, "baa": 13, "daa": 13, "gtaa": 11, "paa": 13, "vaa": 13}
	for id, window := range windows {
		t.Run(id, func(t *testing.T) {
			e, cfg := newEngine(t, id)
			m := synthetic(t, cfg.Universe(), 60, nil)

			res, err := e.Simulate(context.Background(), m)
			require.NoError(t, err)

			assert.Equal(t, StateDone, res.State)
			assert.Equal(t, window, res.Window)
			require.Len(t, res.Records, 60-(window-1))
			assert.Equal(t, m.Label(window-1), res.StartLabel)
			assert.Equal(t, m.Label(59), res.EndLabel)

			for _, rec := range res.Records {
				assert.True(t, rec.Balanced(), "%s total=%v", rec.Label, rec.TotalWeight())
				for _, p := range rec.Positions {
					assert.Greater(t, p.Weight, 0.0)
				}
			}
		})
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	e, cfg := newEngine(t, "baa")
	m := synthetic(t, cfg.Universe(), 48, map[string][]int{"QQQ": {20}})

	a, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)
	b, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
}

func TestSimulate_SkipsGapAndContinues(t *testing.T) {
	e, cfg := newEngine(t, "gtaa")
	m := synthetic(t, cfg.Universe(), 60, map[string][]int{"SPY": {30}})

	res, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)

	// 창(11개월)에 30번 행이 포함되는 30..40 구간은 건너뜀
	require.Len(t, res.Skipped, 11)
	assert.Equal(t, m.Label(30), res.Skipped[0].Label)
	assert.Equal(t, m.Label(40), res.Skipped[10].Label)
	assert.Equal(t, "SPY", res.Skipped[0].Symbol)
	assert.Equal(t, "missing_observation", res.Skipped[0].Reason)

	assert.Len(t, res.Records, 60-10-11)
	skipped := make(map[string]bool)
	for _, s := range res.Skipped {
		skipped[s.Label] = true
	}
	for i, rec := range res.Records {
		assert.False(t, skipped[rec.Label], "record emitted for skipped %s", rec.Label)
		if i > 0 {
			assert.True(t, rec.Month.After(res.Records[i-1].Month), "labels must increase")
		}
	}
	assert.Equal(t, m.Label(41), res.Records[30-10].Label)
}

func TestSimulate_GTAAFirstDecision(t *testing.T) {
	e, cfg := newEngine(t, "gtaa")
	m := synthetic(t, cfg.Universe(), 30, nil)

	res, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)

	// 당월 포함 10개월 SMA: 10번 행(11번째 달)부터 결정
	assert.Equal(t, 11, e.Window())
	assert.Equal(t, "2010-11", res.StartLabel)
	require.NotEmpty(t, res.Records)
	assert.Equal(t, "2010-11", res.Records[0].Label)
	assert.Len(t, res.Records, 20)
}

func TestSimulate_NoStart(t *testing.T) {
	e, cfg := newEngine(t, "vaa")

	// 13개월 미만
	res, err := e.Simulate(context.Background(), synthetic(t, cfg.Universe(), 12, nil))
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.StartLabel)

	// 한 종목이 처음부터 끝까지 없음
	gaps := map[string][]int{"SHY": make([]int, 0, 40)}
	for i := 0; i < 40; i++ {
		gaps["SHY"] = append(gaps["SHY"], i)
	}
	res, err = e.Simulate(context.Background(), synthetic(t, cfg.Universe(), 40, gaps))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestSimulate_StartsAfterLateListing(t *testing.T) {
	e, cfg := newEngine(t, "vaa")
	// SHY는 10번 행부터 존재 → 시작 = 10 + 12
	late := make([]int, 10)
	for i := range late {
		late[i] = i
	}
	m := synthetic(t, cfg.Universe(), 40, map[string][]int{"SHY": late})

	res, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, m.Label(22), res.StartLabel)
	assert.Len(t, res.Records, 40-22)
	assert.Empty(t, res.Skipped)
}

func TestSimulate_Cancelled(t *testing.T) {
	e, cfg := newEngine(t, "paa")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Simulate(ctx, synthetic(t, cfg.Universe(), 30, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWindow_ShortHorizons(t *testing.T) {
	cfg, err := strategyconfig.Parse([]byte(`
meta: {strategy_id: short}
minimum_history_months: 12
momentum:
  horizons: [{months: 1, weight: 1}, {months: 3, weight: 1}, {months: 6, weight: 1}]
offensive: {symbols: [SPY, EFA], select: 1}
`))
	require.NoError(t, err)
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, e.Window())

	m := synthetic(t, cfg.Universe(), 12, nil)
	res, err := e.Simulate(context.Background(), m)
	require.NoError(t, err)
	// 정확히 12개월 → 마지막 달 하나만 결정
	require.Len(t, res.Records, 1)
	assert.Equal(t, m.Label(11), res.Records[0].Label)
}
