package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/logger"
)

// MonthlyJobName is the job that re-runs every strategy after a month closes
const MonthlyJobName = "taa-monthly"

// Runner is the part of the orchestrator the job needs
type Runner interface {
	RunAll(ctx context.Context, configs []*strategyconfig.Config, template brain.RunConfig) ([]*brain.RunResult, error)
}

// StrategyRunJob runs every configured strategy with AsOf = now and publishes
type StrategyRunJob struct {
	runner   Runner
	configs  []*strategyconfig.Config
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewStrategyRunJob creates the monthly strategy job
func NewStrategyRunJob(runner Runner, configs []*strategyconfig.Config, schedule string, log *logger.Logger) *StrategyRunJob {
	if schedule == "" {
		schedule = "0 0 7 1 * *"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &StrategyRunJob{
		runner:   runner,
		configs:  configs,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *StrategyRunJob) Name() string {
	return MonthlyJobName
}

// Schedule returns the cron schedule (1일 07:00, 전월 마감 후)
func (j *StrategyRunJob) Schedule() string {
	return j.schedule
}

// Run executes every strategy; any failure fails the job so it is retried
func (j *StrategyRunJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	j.logger.WithFields(map[string]interface{}{
		"strategies": len(j.configs),
		"as_of":      asOf.Format("2006-01-02"),
	}).Info("Starting scheduled strategy runs")

	results, err := j.runner.RunAll(ctx, j.configs, brain.RunConfig{AsOf: asOf, Publish: true})

	for _, r := range results {
		fields := map[string]interface{}{
			"strategy": r.Info.StrategyID,
			"run_id":   r.Info.RunID,
		}
		if last, ok := r.Last(); ok {
			fields["month"] = last.Label
			fields["regime"] = last.Regime
		}
		j.logger.WithFields(fields).Info("Strategy decision published")
	}

	if err != nil {
		return fmt.Errorf("strategy runs: %d/%d ok: %w", len(results), len(j.configs), err)
	}
	return nil
}
