package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/taa/pkg/logger"
)

// RunPurger deletes stored runs older than a cutoff
type RunPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetentionJob purges old decision runs from the store
type RunRetentionJob struct {
	purger    RunPurger
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewRunRetentionJob creates a new retention job
func NewRunRetentionJob(purger RunPurger, retention time.Duration, log *logger.Logger) *RunRetentionJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &RunRetentionJob{
		purger:    purger,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *RunRetentionJob) Name() string {
	return "run_retention"
}

// Schedule returns the cron schedule (daily 03:30)
func (j *RunRetentionJob) Schedule() string {
	return "0 30 3 * * *"
}

// Run executes the purge
func (j *RunRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	removed, err := j.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge runs before %s: %w", cutoff.Format("2006-01-02"), err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format("2006-01-02"),
		}).Info("Run retention completed")
	}
	return nil
}
