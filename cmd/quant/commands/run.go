package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/report"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "전략 실행 (월별 자산배분 결정)",
	Long: `전략 하나를 실행하여 월말 자산배분 결정 시퀀스를 출력합니다.

가격 소스 우선순위:
  1. --csv 파일 (date,symbol,close)
  2. PRICE_FEED_URL (원격 CSV, {symbol} 치환)
  3. DATABASE_URL (data.daily_prices)

--publish 는 DATABASE_URL 이 설정된 경우 taa.runs / taa.decisions 에 저장합니다.

Example:
  go run ./cmd/quant run --strategy gtaa --csv prices.csv
  go run ./cmd/quant run --strategy baa --asof 2024-06-30 --last 12
  go run ./cmd/quant run --config my_strategy.yaml --json > decisions.json
  go run ./cmd/quant run --strategy paa --publish`,
	RunE: runStrategy,
}

var (
	runStrategyID string
	runConfigFile string
	runCSV        string
	runAsOf       string
	runFrom       string
	runJSON       bool
	runLast       int
	runPublish    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runStrategyID, "strategy", "s", "", "전략 ID (baa, daa, vaa, abaa, gtaa, paa)")
	runCmd.Flags().StringVar(&runConfigFile, "config", "", "전략 YAML 파일")
	runCmd.Flags().StringVar(&runCSV, "csv", "", "가격 CSV 파일 (date,symbol,close)")
	runCmd.Flags().StringVar(&runAsOf, "asof", "", "기준일 (YYYY-MM-DD, 기본: 오늘)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "가격 조회 시작일 (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "JSON 출력")
	runCmd.Flags().IntVar(&runLast, "last", 12, "표에 표시할 최근 개월 수 (0 = 전체)")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "결정 이력을 DB 에 저장")
}

func runStrategy(cmd *cobra.Command, args []string) error {
	asOf, err := parseDate("asof", runAsOf)
	if err != nil {
		return err
	}
	from, err := parseDate("from", runFrom)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(runtimeOptions{
		csvPath:   runCSV,
		logTo:     stderrIf(runJSON),
		needPrice: true,
		wantDB:    runPublish,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	configs, err := loadStrategies(rt.cfg, runConfigFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	sc, err := selectStrategy(configs, runStrategyID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var sinks report.Fanout
	if runJSON {
		sinks = append(sinks, report.NewJSONWriter(os.Stdout, true))
	} else {
		sinks = append(sinks, report.NewConsoleTable(os.Stdout, runLast))
	}
	if runPublish {
		if rt.runs == nil {
			return fmt.Errorf("--publish requires DATABASE_URL")
		}
		if err := rt.ensureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, rt.runs)
	}

	result, err := rt.orchestrator(sinks).Run(ctx, brain.RunConfig{
		Strategy: sc,
		AsOf:     asOf,
		From:     from,
		Publish:  true, // 콘솔/JSON 출력도 sink 경유
		NoCache:  true,
	})
	if err != nil {
		return err
	}

	if runJSON {
		return nil
	}

	for _, w := range result.Warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	if n := len(result.Simulation.Skipped); n > 0 {
		PrintInfo(fmt.Sprintf("%d month(s) skipped (first: %s, %s)", n,
			result.Simulation.Skipped[0].Label, result.Simulation.Skipped[0].Reason))
	}
	if last, ok := result.Last(); ok {
		printCurrentAllocation(last)
	} else {
		PrintWarning(fmt.Sprintf("No decision: need %d complete months of history", result.Simulation.Window))
	}
	return nil
}

func printCurrentAllocation(rec contracts.DecisionRecord) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Allocation for %s  (regime: %s)\n", rec.Label, rec.Regime)
	PrintSeparator()
	for _, p := range rec.Positions {
		PrintKeyValue(p.Symbol, fmt.Sprintf("%6.2f%%", p.Weight*100), 8)
	}
	if rec.Cash > 0 {
		PrintKeyValue("Cash", fmt.Sprintf("%6.2f%% (%s)", rec.Cash*100, rec.CashSymbol), 8)
	}
	PrintDoubleSeparator()
}
