package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

type fakeRunner struct {
	template brain.RunConfig
	configs  []*strategyconfig.Config
	err      error
}

func (f *fakeRunner) RunAll(_ context.Context, configs []*strategyconfig.Config, template brain.RunConfig) ([]*brain.RunResult, error) {
	f.configs = configs
	f.template = template
	out := make([]*brain.RunResult, 0, len(configs))
	for _, c := range configs {
		out = append(out, &brain.RunResult{Info: contracts.RunInfo{StrategyID: c.Meta.StrategyID}})
	}
	return out, f.err
}

func TestStrategyRunJob(t *testing.T) {
	configs, err := strategyconfig.Presets()
	require.NoError(t, err)

	runner := &fakeRunner{}
	job := NewStrategyRunJob(runner, configs, "", nil)
	job.now = func() time.Time { return time.Date(2024, 7, 1, 7, 0, 0, 0, time.UTC) }

	assert.Equal(t, MonthlyJobName, job.Name())
	assert.Equal(t, "0 0 7 1 * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, runner.template.Publish)
	assert.Equal(t, time.Date(2024, 7, 1, 7, 0, 0, 0, time.UTC), runner.template.AsOf)
	assert.Len(t, runner.configs, len(configs))
}

func TestStrategyRunJob_Failure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("price store down")}
	job := NewStrategyRunJob(runner, nil, "@monthly", nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price store down")
}

type fakePurger struct {
	cutoff time.Time
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestRunRetentionJob(t *testing.T) {
	purger := &fakePurger{}
	job := NewRunRetentionJob(purger, 30*24*time.Hour, nil)
	now := time.Date(2024, 7, 31, 3, 30, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-30*24*time.Hour), purger.cutoff)
}
