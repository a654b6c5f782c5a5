package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/config"
)

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "전략 설정 조회/검증",
	Long: `등록된 전략 설정을 조회하거나 YAML 파일을 검증합니다.

Subcommands:
  list      - 전략 목록
  show      - 전략 설정 (YAML)
  validate  - YAML 파일/디렉토리 검증

Example:
  go run ./cmd/quant strategies list
  go run ./cmd/quant strategies show baa
  go run ./cmd/quant strategies validate config/strategy`,
}

var (
	strategiesListCmd = &cobra.Command{
		Use:   "list",
		Short: "전략 목록",
		RunE:  listStrategies,
	}

	strategiesShowCmd = &cobra.Command{
		Use:   "show [strategy_id]",
		Short: "전략 설정 출력",
		Args:  cobra.ExactArgs(1),
		RunE:  showStrategy,
	}

	strategiesValidateCmd = &cobra.Command{
		Use:   "validate [file|dir]",
		Short: "YAML 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  validateStrategies,
	}
)

func init() {
	rootCmd.AddCommand(strategiesCmd)
	strategiesCmd.AddCommand(strategiesListCmd)
	strategiesCmd.AddCommand(strategiesShowCmd)
	strategiesCmd.AddCommand(strategiesValidateCmd)
}

func configuredStrategies() ([]*strategyconfig.Config, error) {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return loadStrategies(cfg, "")
}

func listStrategies(cmd *cobra.Command, args []string) error {
	configs, err := configuredStrategies()
	if err != nil {
		return err
	}

	fmt.Println()
	widths := []int{8, 36, 18, 8, 14}
	PrintTableHeader([]string{"ID", "Name", "Rule", "Assets", "Hash"}, widths)
	for _, c := range configs {
		hash, err := strategyconfig.Hash(c)
		if err != nil {
			return err
		}
		PrintTableRow([]string{
			c.Meta.StrategyID,
			c.Meta.Name,
			string(c.Weighting.Rule),
			strconv.Itoa(len(c.Universe())),
			hash[:12],
		}, widths)
	}
	fmt.Println()
	return nil
}

func showStrategy(cmd *cobra.Command, args []string) error {
	configs, err := configuredStrategies()
	if err != nil {
		return err
	}
	sc, err := selectStrategy(configs, args[0])
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", sc.Meta.StrategyID, err)
	}
	fmt.Print(string(out))

	for _, w := range strategyconfig.Warn(sc) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}

func validateStrategies(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	files := []string{path}
	if info.IsDir() {
		files = nil
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return err
			}
			files = append(files, matches...)
		}
	}

	failed := 0
	for _, f := range files {
		sc, _, err := strategyconfig.Load(f)
		if err != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", f, err))
			continue
		}
		PrintSuccess(fmt.Sprintf("%s: %s", f, sc.Meta.StrategyID))
		warnings := strategyconfig.Warn(sc)
		items := make([]string, 0, len(warnings))
		for _, w := range warnings {
			items = append(items, fmt.Sprintf("⚠️  [%s] %s", w.Code, w.Message))
		}
		PrintList(items)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) invalid: %s", failed, len(files), strings.TrimSpace(path))
	}
	return nil
}
