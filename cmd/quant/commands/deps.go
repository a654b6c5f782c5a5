package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wonny/aegis/taa/internal/audit"
	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/s0_data"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/config"
	"github.com/wonny/aegis/taa/pkg/database"
	"github.com/wonny/aegis/taa/pkg/httputil"
	"github.com/wonny/aegis/taa/pkg/logger"
	"github.com/wonny/aegis/taa/pkg/metrics"
	"github.com/wonny/aegis/taa/pkg/redis"
)

// runtime holds the shared dependencies of every command
// ⭐ SSOT: CLI 의존성 조립은 여기서만
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // DATABASE_URL 없으면 nil
	redis    *redis.Client
	recorder *metrics.Recorder
	source   contracts.PriceSource
	sourceID string // 캐시 키 구분용
	runs     *audit.DecisionRepository // db 없으면 nil
}

// runtimeOptions selects optional wiring
type runtimeOptions struct {
	csvPath   string    // 우선순위 1
	logTo     io.Writer // nil → stdout
	needPrice bool
	wantDB    bool // run 저장소 필요 (publish, api, scheduler)
}

func loadRuntime(opts runtimeOptions) (*runtime, error) {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	rt := &runtime{cfg: cfg}
	if opts.logTo != nil {
		rt.log = logger.NewWithWriter(opts.logTo, cfg.LogLevel)
	} else {
		rt.log = logger.New(cfg)
	}

	if cfg.MetricsEnabled {
		rt.recorder = metrics.New()
	}

	rt.redis, err = redis.New(cfg)
	if err != nil {
		rt.log.WithError(err).Warn("Redis unavailable, run cache disabled")
		rt.redis = redis.Disabled()
	}

	// CSV/피드만으로 실행할 때는 DB 연결 시도 안 함
	dbPrices := opts.needPrice && opts.csvPath == "" && cfg.PriceFeed.URL == ""
	if cfg.HasDatabase() && (opts.wantDB || dbPrices) {
		rt.db, err = database.New(cfg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.runs = audit.NewDecisionRepository(rt.db.Pool)
	}

	if opts.needPrice {
		if rt.source, err = rt.priceSource(opts.csvPath); err != nil {
			rt.Close()
			return nil, err
		}
	}

	return rt, nil
}

// priceSource: --csv > PRICE_FEED_URL > DATABASE_URL
func (rt *runtime) priceSource(csvPath string) (contracts.PriceSource, error) {
	switch {
	case csvPath != "":
		src, err := s0_data.NewCSVSource(csvPath)
		if err != nil {
			return nil, fmt.Errorf("load csv: %w", err)
		}
		rt.log.WithFields(map[string]interface{}{
			"path":    csvPath,
			"symbols": len(src.Symbols()),
		}).Info("Using CSV price source")
		rt.sourceID = "csv:" + csvPath
		return src, nil

	case rt.cfg.PriceFeed.URL != "":
		limit := redis.PriceFeedRateLimit
		if rt.cfg.PriceFeed.RatePerSec > 0 {
			limit.Limit = rt.cfg.PriceFeed.RatePerSec
		}
		client := httputil.New(rt.cfg, rt.log).
			WithRateLimiter(redis.NewRateLimiter(rt.redis, "taa"), limit).
			WithCircuitBreaker("price-feed")
		rt.log.WithField("url", rt.cfg.PriceFeed.URL).Info("Using remote price feed")
		src, err := s0_data.NewHTTPSource(client, rt.cfg.PriceFeed.URL)
		if err != nil {
			return nil, err
		}
		rt.sourceID = "feed:" + rt.cfg.PriceFeed.URL
		return src.WithCacheTTL(rt.cfg.PriceFeed.CacheTTL), nil

	case rt.db != nil:
		rt.log.Info("Using PostgreSQL price store")
		rt.sourceID = "db"
		return s0_data.NewPriceRepository(rt.db.Pool), nil
	}

	return nil, errors.New("no price source: pass --csv, or set PRICE_FEED_URL or DATABASE_URL")
}

// orchestrator builds the run coordinator; sink may be nil
func (rt *runtime) orchestrator(sink contracts.ReportSink) *brain.Orchestrator {
	var cache brain.RunCache
	if rt.redis.Enabled() {
		cache = redis.NewCache(rt.redis, "taa")
	}

	o := brain.NewOrchestrator(
		rt.source,
		sink,
		cache,
		rt.recorder,
		rt.log,
	).
		WithCacheTTL(rt.cfg.Redis.RunTTL).
		WithSourceID(rt.sourceID).
		WithHistoryFrom(rt.cfg.Strategy.HistoryFrom)

	if rt.runs != nil {
		o = o.WithSnapshotStore(rt.runs)
	}
	return o
}

// ensureSchema creates the taa tables when a DB is configured
func (rt *runtime) ensureSchema(ctx context.Context) error {
	if rt.runs == nil {
		return nil
	}
	return rt.runs.EnsureSchema(ctx)
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
	if rt.redis != nil {
		rt.redis.Close()
	}
}

// loadStrategies: --config 파일 > STRATEGY_DIR > 내장 프리셋
func loadStrategies(cfg *config.Config, file string) ([]*strategyconfig.Config, error) {
	if file != "" {
		sc, _, err := strategyconfig.Load(file)
		if err != nil {
			return nil, err
		}
		return []*strategyconfig.Config{sc}, nil
	}
	if cfg != nil && cfg.Strategy.Dir != "" {
		return strategyconfig.LoadDir(cfg.Strategy.Dir)
	}
	return strategyconfig.Presets()
}

// selectStrategy picks one strategy by id (or the only one loaded from a file)
func selectStrategy(configs []*strategyconfig.Config, id string) (*strategyconfig.Config, error) {
	if id == "" {
		if len(configs) == 1 {
			return configs[0], nil
		}
		return nil, errors.New("--strategy is required (see: quant strategies list)")
	}
	sc, ok := strategyconfig.Find(configs, id)
	if !ok {
		ids := make([]string, 0, len(configs))
		for _, c := range configs {
			ids = append(ids, c.Meta.StrategyID)
		}
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", id, strings.Join(ids, ", "))
	}
	return sc, nil
}

// parseDate parses an optional YYYY-MM-DD flag
func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func stderrIf(cond bool) io.Writer {
	if cond {
		return os.Stderr
	}
	return nil
}
