package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis/taa/internal/backtest"
	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/risk"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "전략 성과 평가",
	Long: `전략 결정을 다음 월말까지 보유했을 때의 성과를 계산합니다.

지표:
- CAGR, 누적 수익률
- 변동성 (연율화), Sharpe, Sortino (무위험 수익률 0)
- 최대 낙폭 (MDD), 월간 승률
- 리밸런싱 횟수 및 회전율

거래비용/슬리피지는 반영하지 않습니다.

Example:
  go run ./cmd/quant backtest --strategy gtaa --csv prices.csv
  go run ./cmd/quant backtest --strategy baa --from 2005-01-01 --json`,
	RunE: runBacktest,
}

var (
	backtestStrategyID string
	backtestConfigFile string
	backtestCSV        string
	backtestFrom       string
	backtestAsOf       string
	backtestJSON       bool
	backtestRisk       bool
	backtestSims       int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestStrategyID, "strategy", "s", "", "전략 ID")
	backtestCmd.Flags().StringVar(&backtestConfigFile, "config", "", "전략 YAML 파일")
	backtestCmd.Flags().StringVar(&backtestCSV, "csv", "", "가격 CSV 파일")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "가격 조회 시작일 (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestAsOf, "asof", "", "기준일 (YYYY-MM-DD, 기본: 오늘)")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "JSON 출력 (equity curve 포함)")
	backtestCmd.Flags().BoolVar(&backtestRisk, "risk", true, "월간 VaR/CVaR + 12개월 부트스트랩")
	backtestCmd.Flags().IntVar(&backtestSims, "simulations", 10000, "부트스트랩 횟수")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	asOf, err := parseDate("asof", backtestAsOf)
	if err != nil {
		return err
	}
	from, err := parseDate("from", backtestFrom)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(runtimeOptions{
		csvPath:   backtestCSV,
		logTo:     os.Stderr,
		needPrice: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	configs, err := loadStrategies(rt.cfg, backtestConfigFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	sc, err := selectStrategy(configs, backtestStrategyID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := rt.orchestrator(nil).Run(ctx, brain.RunConfig{Strategy: sc, AsOf: asOf, From: from})
	if err != nil {
		return err
	}

	var report *risk.Report
	if backtestRisk {
		report, err = analyzeRisk(ctx, result.Performance)
		if err != nil {
			rt.log.WithError(err).Warn("Risk analysis skipped")
		}
	}

	if backtestJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Performance backtest.Performance `json:"performance"`
			Risk        *risk.Report         `json:"risk,omitempty"`
		}{result.Performance, report})
	}

	printPerformance(result)
	if report != nil {
		printRisk(report)
	}
	return nil
}

func analyzeRisk(ctx context.Context, perf backtest.Performance) (*risk.Report, error) {
	cfg := risk.DefaultMonteCarloConfig()
	cfg.NumSimulations = backtestSims

	engine, err := risk.NewEngine(cfg, risk.DefaultRiskLimits())
	if err != nil {
		return nil, err
	}
	return engine.Analyze(ctx, perf.MonthlyReturns(), perf.MaxDrawdown)
}

func printRisk(r *risk.Report) {
	PrintRunHeader(RunHeader{Title: fmt.Sprintf("Tail Risk (%d months)", r.Samples)})

	widths := []int{12, 12, 12, 12}
	PrintTableHeader([]string{"Confidence", "Hist VaR", "Hist CVaR", "Param VaR"}, widths)
	for i, h := range r.Historical {
		PrintTableRow([]string{
			fmt.Sprintf("%.0f%%", h.Confidence*100),
			pct(h.VaR),
			pct(h.CVaR),
			pct(r.Parametric[i].VaR),
		}, widths)
	}

	if mc := r.MonteCarlo; mc != nil {
		fmt.Println()
		fmt.Printf("  %d-month bootstrap (%d paths)\n", mc.Config.HorizonMonths, mc.Config.NumSimulations)
		PrintKeyValue("Mean", pct(mc.MeanReturn), 10)
		PrintKeyValue("P(loss)", pct(mc.ProbLoss), 10)
		PrintKeyValue("p5 / p50", fmt.Sprintf("%s / %s", pct(mc.Percentiles["p5"]), pct(mc.Percentiles["p50"])), 10)
	}

	if c := r.Check; c != nil {
		fmt.Println()
		if c.Passed {
			PrintSuccess("Within risk limits")
			return
		}
		for _, v := range c.Violations {
			PrintError(v)
		}
	}
}

func printPerformance(result *brain.RunResult) {
	perf := result.Performance
	sim := result.Simulation

	header := RunHeader{Title: "Backtest", Strategy: result.Info.StrategyID}
	if sim.StartLabel != "" {
		header.Period = &Period{Start: sim.StartLabel, End: sim.EndLabel}
	}
	PrintRunHeader(header)
	fmt.Printf("  Decisions : %d (skipped %d, window %d)\n", len(sim.Records), len(sim.Skipped), sim.Window)
	PrintSeparator()

	if perf.Periods == 0 {
		PrintWarning("Not enough decisions to evaluate (need at least two consecutive months)")
		return
	}

	PrintKeyValue("Total Return", pct(perf.TotalReturn), 14)
	PrintKeyValue("CAGR", pct(perf.CAGR), 14)
	PrintKeyValue("Volatility", pct(perf.Volatility), 14)
	PrintKeyValue("Sharpe", fmt.Sprintf("%.2f", perf.SharpeRatio), 14)
	PrintKeyValue("Sortino", fmt.Sprintf("%.2f", perf.SortinoRatio), 14)
	PrintKeyValue("Max Drawdown", pct(perf.MaxDrawdown), 14)
	PrintKeyValue("Hit Rate", pct(perf.HitRate), 14)
	PrintKeyValue("Rebalances", fmt.Sprintf("%d", perf.Rebalances), 14)
	PrintKeyValue("Turnover", fmt.Sprintf("%.2f", perf.Turnover), 14)
	if perf.Undefined > 0 {
		PrintKeyValue("Undefined", fmt.Sprintf("%d month(s) without prices", perf.Undefined), 14)
	}
	PrintDoubleSeparator()

	printYearly(perf.EquityCurve)
}

// printYearly prints calendar-year returns from the equity curve
func printYearly(curve []backtest.EquityPoint) {
	if len(curve) == 0 {
		return
	}

	fmt.Println()
	widths := []int{6, 10}
	PrintTableHeader([]string{"Year", "Return"}, widths)

	year := curve[0].Date.Year()
	growth := 1.0
	for _, p := range curve {
		if p.Date.Year() != year {
			PrintTableRow([]string{fmt.Sprintf("%d", year), pct(growth - 1)}, widths)
			year, growth = p.Date.Year(), 1.0
		}
		growth *= 1 + p.Return
	}
	PrintTableRow([]string{fmt.Sprintf("%d", year), pct(growth - 1)}, widths)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
