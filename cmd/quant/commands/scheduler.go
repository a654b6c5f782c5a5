package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/scheduler"
	"github.com/wonny/aegis/taa/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run taa-monthly`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- taa-monthly: 매월 1일 07:00 (SCHEDULE_CRON, 전체 전략 실행 + 저장)
- run_retention: 매일 03:30 (RUN_RETENTION 지난 run 삭제, DB 필요)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

var (
	schedulerCSV        string
	schedulerConfigFile string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerCSV, "csv", "", "가격 CSV 파일")
	schedulerCmd.PersistentFlags().StringVar(&schedulerConfigFile, "config", "", "전략 YAML 파일")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== TAA Scheduler ===")

	sched, rt, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %-14s next: %s\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, rt, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	stats := sched.GetJobStats()
	widths := []int{16, 16}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	for _, jobName := range sched.GetAllJobs() {
		PrintTableRow([]string{jobName, stats[jobName].Schedule}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, rt, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	// 프로세스가 바로 종료되므로 동기 실행
	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("Job %s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, rt, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}

		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

// initScheduler wires the runtime and registers every job
// 호출자가 rt.Close() 책임
func initScheduler() (*scheduler.Scheduler, *runtime, error) {
	rt, err := loadRuntime(runtimeOptions{
		csvPath:   schedulerCSV,
		needPrice: true,
		wantDB:    true,
	})
	if err != nil {
		return nil, nil, err
	}

	configs, err := loadStrategies(rt.cfg, schedulerConfigFile)
	if err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("load strategies: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := rt.ensureSchema(ctx); err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	sched := scheduler.New(rt.log).WithRetry(2, time.Minute)

	// run 저장소가 있으면 publish 대상
	var sink contracts.ReportSink
	if rt.runs != nil {
		sink = rt.runs
	}
	orch := rt.orchestrator(sink)

	if err := sched.AddJob(jobs.NewStrategyRunJob(orch, configs, rt.cfg.Strategy.ScheduleCron, rt.log)); err != nil {
		rt.Close()
		return nil, nil, err
	}

	if rt.runs != nil {
		if err := sched.AddJob(jobs.NewRunRetentionJob(rt.runs, rt.cfg.Strategy.RunRetention, rt.log)); err != nil {
			rt.Close()
			return nil, nil, err
		}
	} else {
		rt.log.Warn("DATABASE_URL not set: runs are not persisted, retention job disabled")
	}

	return sched, rt, nil
}
