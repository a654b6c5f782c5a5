package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/taa/internal/strategyconfig"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "월말 가격 커버리지 점검",
	Long: `전략 유니버스의 월말 종가 커버리지를 점검합니다.

심볼별로:
- 첫/마지막 관측 월
- 관측 월 수 / 구간 월 수 (coverage)
- 결측 월 (해당 월은 결정이 생략됨)
- 제거된 비정상 종가 수 (0 이하, NaN, Inf)

--strategy 없이 실행하면 모든 전략의 유니버스를 합쳐서 점검합니다.

Example:
  go run ./cmd/quant data-check --csv prices.csv
  go run ./cmd/quant data-check --strategy vaa`,
	RunE: runDataCheck,
}

var (
	dataCheckStrategyID string
	dataCheckConfigFile string
	dataCheckCSV        string
	dataCheckAsOf       string
)

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().StringVarP(&dataCheckStrategyID, "strategy", "s", "", "전략 ID (기본: 전체)")
	dataCheckCmd.Flags().StringVar(&dataCheckConfigFile, "config", "", "전략 YAML 파일")
	dataCheckCmd.Flags().StringVar(&dataCheckCSV, "csv", "", "가격 CSV 파일")
	dataCheckCmd.Flags().StringVar(&dataCheckAsOf, "asof", "", "기준일 (YYYY-MM-DD, 기본: 오늘)")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	asOf, err := parseDate("asof", dataCheckAsOf)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(runtimeOptions{
		csvPath:   dataCheckCSV,
		logTo:     os.Stderr,
		needPrice: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	configs, err := loadStrategies(rt.cfg, dataCheckConfigFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	if dataCheckStrategyID != "" {
		sc, err := selectStrategy(configs, dataCheckStrategyID)
		if err != nil {
			return err
		}
		configs = []*strategyconfig.Config{sc}
	}
	symbols := unionUniverse(configs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	matrix, snap, err := rt.orchestrator(nil).Inspect(ctx, symbols, time.Time{}, asOf)
	if err != nil {
		return err
	}

	header := RunHeader{Title: "Month-end Coverage", Strategy: dataCheckStrategyID, Symbols: len(symbols)}
	if matrix.Len() > 0 {
		header.Period = &Period{Start: matrix.Label(0), End: matrix.Label(matrix.Len() - 1)}
	}
	PrintRunHeader(header)
	PrintDoubleSeparator()

	widths := []int{8, 8, 8, 10, 9, 8, 24}
	PrintTableHeader([]string{"Symbol", "First", "Last", "Observed", "Coverage", "Dropped", "Gaps"}, widths)
	for _, c := range snap.Symbols {
		first, last := c.First, c.Last
		if first == "" {
			first, last = "-", "-"
		}
		PrintTableRow([]string{
			c.Symbol,
			first,
			last,
			fmt.Sprintf("%d/%d", c.Observed, c.Span),
			fmt.Sprintf("%.1f%%", c.Coverage*100),
			fmt.Sprintf("%d", c.Dropped),
			gapList(c.Gaps, 3),
		}, widths)
	}

	fmt.Println()
	PrintKeyValue("Quality Score", fmt.Sprintf("%.1f%%", snap.QualityScore*100), 14)
	if snap.Passed {
		PrintSuccess("All symbols have gap-free month-end closes")
		return nil
	}

	PrintWarning("Coverage gaps found: months without a close for a required symbol are skipped")
	return nil
}

// unionUniverse merges every strategy universe, sorted
func unionUniverse(configs []*strategyconfig.Config) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, c := range configs {
		for _, s := range c.Universe() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func gapList(gaps []string, max int) string {
	if len(gaps) == 0 {
		return "-"
	}
	if len(gaps) <= max {
		return strings.Join(gaps, ",")
	}
	return fmt.Sprintf("%s (+%d)", strings.Join(gaps[:max], ","), len(gaps)-max)
}
