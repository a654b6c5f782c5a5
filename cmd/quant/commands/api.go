package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis/taa/internal/api"
	"github.com/wonny/aegis/taa/internal/api/handlers"
	"github.com/wonny/aegis/taa/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 전략 목록/설정 조회
- 온디맨드 전략 실행 (결정 기록 + 성과)
- 저장된 run 조회 (DATABASE_URL 설정 시)

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus metrics
  GET  /api/strategies                  - 전략 목록
  GET  /api/strategies/{id}             - 전략 설정
  GET  /api/strategies/{id}/decisions   - 결정 기록 (?asof=YYYY-MM-DD&last=N)
  GET  /api/strategies/{id}/runs        - 저장된 run 목록
  GET  /api/runs/{id}                   - 저장된 run 조회

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --csv prices.csv`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	apiCSV        string
	apiConfigFile string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().StringVar(&apiCSV, "csv", "", "가격 CSV 파일")
	apiCmd.Flags().StringVar(&apiConfigFile, "config", "", "전략 YAML 파일")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== TAA Decision API Server ===")

	rt, err := loadRuntime(runtimeOptions{
		csvPath:   apiCSV,
		needPrice: true,
		wantDB:    true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	configs, err := loadStrategies(rt.cfg, apiConfigFile)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := rt.ensureSchema(initCtx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	rt.log.WithFields(map[string]interface{}{
		"port":       rt.cfg.Port,
		"env":        rt.cfg.Env,
		"strategies": len(configs),
		"run_store":  rt.runs != nil,
	}).Info("Initializing API server")

	// API 결정 조회는 저장하지 않음 (publish는 CLI/스케줄러 전용)
	orch := rt.orchestrator(nil)

	var store handlers.RunStore
	if rt.runs != nil {
		store = rt.runs
	}
	strategyHandler := handlers.NewStrategyHandler(
		configs,
		orch,
		store,
		redis.NewRateLimiter(rt.redis, "taa"),
		rt.log,
	)

	limiter := rate.NewLimiter(rate.Limit(rt.cfg.API.RateLimit), rt.cfg.API.RateBurst)
	router := api.NewRouter(strategyHandler, rt.recorder, limiter, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	if rt.recorder != nil {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("  GET  /api/strategies")
	fmt.Println("  GET  /api/strategies/{id}")
	fmt.Println("  GET  /api/strategies/{id}/decisions")
	fmt.Println("  GET  /api/strategies/{id}/runs")
	fmt.Println("  GET  /api/runs/{id}")
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	// Graceful shutdown with timeout
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	rt.log.Info("Server stopped")
	return nil
}
