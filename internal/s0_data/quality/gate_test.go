package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/contracts"
)

func TestQualityGate_Check(t *testing.T) {
	at := func(m int, close float64, symbol string) contracts.Observation {
		return contracts.Observation{Symbol: symbol, Date: time.Date(2024, time.Month(m), 10, 0, 0, 0, 0, time.UTC), Close: close}
	}
	series := map[string][]contracts.Observation{
		"SPY": {at(1, 1, "SPY"), at(2, 1, "SPY"), at(4, 1, "SPY")},
		"BIL": {at(2, 1, "BIL"), at(3, 1, "BIL"), at(4, 1, "BIL"), at(4, -1, "BIL")},
	}
	m, err := align.Build(series, []string{"SPY", "BIL", "QQQ"}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	snap := NewQualityGate(Config{}).Check(m)

	assert.Equal(t, 4, snap.Months)
	require.Len(t, snap.Symbols, 3)

	spy := snap.Symbols[0]
	assert.Equal(t, "2024-01", spy.First)
	assert.Equal(t, "2024-04", spy.Last)
	assert.Equal(t, []string{"2024-03"}, spy.Gaps)
	assert.InDelta(t, 0.75, spy.Coverage, 1e-12)

	bil := snap.Symbols[1]
	assert.Equal(t, 1.0, bil.Coverage, "late listing is not a gap")
	assert.Equal(t, 1, bil.Dropped)

	qqq := snap.Symbols[2]
	assert.Zero(t, qqq.Observed)
	assert.Zero(t, qqq.Coverage)

	assert.False(t, snap.Passed)
	assert.InDelta(t, (0.75+1.0+0)/3, snap.QualityScore, 1e-12)
}

func TestQualityGate_Passed(t *testing.T) {
	series := map[string][]contracts.Observation{
		"SPY": {{Symbol: "SPY", Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Close: 1}},
	}
	m, err := align.Build(series, []string{"SPY"}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	snap := NewQualityGate(Config{MinCoverage: 0.9}).Check(m)
	assert.True(t, snap.Passed)
	assert.Equal(t, 1.0, snap.QualityScore)
}
