package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "데이터 정리 도구",
	Long: `데이터베이스 정리 작업을 수행합니다.

Example:
  quant cleanup runs --older-than 8760h
  quant cleanup runs --before 2020-01-01`,
}

var cleanupRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "오래된 run 삭제",
	Long: `generated_at 기준으로 오래된 run과 결정 기록을 삭제합니다.

--before 와 --older-than 중 하나만 지정합니다.
둘 다 없으면 RUN_RETENTION (기본 8760h) 을 사용합니다.
config_snapshots 는 삭제하지 않습니다 (재현용).

Example:
  quant cleanup runs --older-than 720h`,
	RunE: runCleanupRuns,
}

var (
	cleanupBefore    string
	cleanupOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupRunsCmd)

	cleanupRunsCmd.Flags().StringVar(&cleanupBefore, "before", "", "이 날짜 이전 run 삭제 (YYYY-MM-DD)")
	cleanupRunsCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "이 기간보다 오래된 run 삭제 (예: 720h)")
}

func runCleanupRuns(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Run Cleanup ===")

	if cleanupBefore != "" && cleanupOlderThan > 0 {
		return errors.New("--before and --older-than are mutually exclusive")
	}
	before, err := parseDate("before", cleanupBefore)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(runtimeOptions{wantDB: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.runs == nil {
		return errors.New("❌ DATABASE_URL is not set")
	}

	cutoff := before
	if cutoff.IsZero() {
		age := cleanupOlderThan
		if age <= 0 {
			age = rt.cfg.Strategy.RunRetention
		}
		cutoff = time.Now().Add(-age)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	deleted, err := rt.runs.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("❌ Failed to delete runs: %w", err)
	}

	PrintKeyValue("Cutoff", cutoff.Format(time.RFC3339), 8)
	PrintSuccess(fmt.Sprintf("Deleted %d run(s)", deleted))
	return nil
}
