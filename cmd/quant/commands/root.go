package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "TAA - 전술적 자산배분 판단 엔진",
	Long: `TAA Unified CLI

월말 가격으로 카나리아/모멘텀 기반 자산배분 결정을 생성합니다.
전략: BAA, DAA, VAA, ABAA, GTAA, PAA (YAML 로 추가 가능)

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant strategies list
  go run ./cmd/quant run --strategy gtaa --csv prices.csv
  go run ./cmd/quant backtest --strategy paa --csv prices.csv
  go run ./cmd/quant api
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
