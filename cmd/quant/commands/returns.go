package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis/taa/internal/backtest"
)

// returnsCmd represents the returns command
var returnsCmd = &cobra.Command{
	Use:   "returns SYMBOL",
	Short: "심볼의 N개월 보유 수익률",
	Long: `한 심볼을 월말에 매수해 N개월 뒤 월말에 매도한 수익률을 모두 나열합니다.

시작 또는 종료 월 종가가 없는 구간은 제외합니다.

Example:
  go run ./cmd/quant returns SPY --months 12 --csv prices.csv
  go run ./cmd/quant returns EFA --months 1 --out efa.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReturns,
}

var (
	returnsMonths int
	returnsCSV    string
	returnsFrom   string
	returnsAsOf   string
	returnsOut    string
)

func init() {
	rootCmd.AddCommand(returnsCmd)

	returnsCmd.Flags().IntVarP(&returnsMonths, "months", "m", 12, "보유 기간 (개월)")
	returnsCmd.Flags().StringVar(&returnsCSV, "csv", "", "가격 CSV 파일")
	returnsCmd.Flags().StringVar(&returnsFrom, "from", "", "가격 조회 시작일 (YYYY-MM-DD)")
	returnsCmd.Flags().StringVar(&returnsAsOf, "asof", "", "기준일 (YYYY-MM-DD, 기본: 오늘)")
	returnsCmd.Flags().StringVar(&returnsOut, "out", "", "CSV 출력 파일 (- 는 stdout)")
}

func runReturns(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if returnsMonths < 1 {
		return fmt.Errorf("--months must be >= 1")
	}
	from, err := parseDate("from", returnsFrom)
	if err != nil {
		return err
	}
	asOf, err := parseDate("asof", returnsAsOf)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(runtimeOptions{
		csvPath:   returnsCSV,
		logTo:     os.Stderr,
		needPrice: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	matrix, _, err := rt.orchestrator(nil).Inspect(ctx, []string{symbol}, from, asOf)
	if err != nil {
		return err
	}
	if matrix.Observed(symbol) == 0 {
		return fmt.Errorf("no month-end closes for %s", symbol)
	}

	rows := backtest.RollingReturns(matrix, symbol, returnsMonths)

	if returnsOut != "" {
		return writeReturnsCSV(returnsOut, rows)
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s %d-month holding returns (%d)\n", symbol, returnsMonths, len(rows))
	PrintDoubleSeparator()

	widths := []int{8, 8, 12, 12, 10}
	PrintTableHeader([]string{"Start", "End", "Start Close", "End Close", "Return"}, widths)
	sum := 0.0
	for _, r := range rows {
		PrintTableRow([]string{
			r.StartLabel,
			r.EndLabel,
			fmt.Sprintf("%.4f", r.StartClose),
			fmt.Sprintf("%.4f", r.EndClose),
			pct(r.Return),
		}, widths)
		sum += r.Return
	}

	if len(rows) > 0 {
		fmt.Println()
		PrintKeyValue("Average", pct(sum/float64(len(rows))), 8)
	}
	return nil
}

func writeReturnsCSV(path string, rows []backtest.HoldingReturn) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
