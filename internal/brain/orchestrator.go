package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis/taa/internal/align"
	"github.com/wonny/aegis/taa/internal/backtest"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/s0_data/quality"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/logger"
	"github.com/wonny/aegis/taa/pkg/metrics"
	"github.com/wonny/aegis/taa/pkg/redis"
)

// ErrUnknownSymbol is returned when a configured symbol has no observations
var ErrUnknownSymbol = errors.New("unknown symbol")

// DefaultHistoryFrom is the earliest date fetched when RunConfig.From is zero
var DefaultHistoryFrom = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// RunCache stores run results between calls
type RunCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SnapshotStore persists the config a run was produced from
type SnapshotStore interface {
	SaveConfigSnapshot(ctx context.Context, snap *strategyconfig.DecisionSnapshot) error
}

// Orchestrator coordinates one strategy run
// fetch → align → quality → simulate → evaluate → publish
// ⭐ SSOT: 실행 조율은 여기서만
type Orchestrator struct {
	source      contracts.PriceSource
	sink        contracts.ReportSink
	cache       RunCache
	cacheTTL    time.Duration
	sourceID    string
	snapshots   SnapshotStore
	qualityGate *quality.QualityGate
	recorder    *metrics.Recorder
	historyFrom time.Time
	now         func() time.Time

	logger *logger.Logger
}

// RunConfig holds configuration for one run
type RunConfig struct {
	Strategy *strategyconfig.Config
	AsOf     time.Time // zero → now; 이 날짜가 속한 월은 미완성으로 제외
	From     time.Time // zero → history start
	To       time.Time // zero → AsOf
	Publish  bool      // sink 로 전달 여부
	NoCache  bool
}

// RunResult holds the results of one run
type RunResult struct {
	Info        contracts.RunInfo        `json:"run"`
	Simulation  *backtest.Result         `json:"simulation"`
	Performance backtest.Performance     `json:"performance"`
	Quality     *quality.Snapshot        `json:"quality"`
	Warnings    []strategyconfig.Warning `json:"warnings,omitempty"`
	Cached      bool                     `json:"cached"`
	Duration    time.Duration            `json:"duration"`
}

// Records is a shortcut for the emitted decision sequence
func (r *RunResult) Records() []contracts.DecisionRecord {
	if r == nil || r.Simulation == nil {
		return nil
	}
	return r.Simulation.Records
}

// Last returns the most recent decision, if any
func (r *RunResult) Last() (contracts.DecisionRecord, bool) {
	recs := r.Records()
	if len(recs) == 0 {
		return contracts.DecisionRecord{}, false
	}
	return recs[len(recs)-1], true
}

// NewOrchestrator creates a new orchestrator
// sink, cache, recorder 는 nil 허용
func NewOrchestrator(
	source contracts.PriceSource,
	sink contracts.ReportSink,
	cache RunCache,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		source:      source,
		sink:        sink,
		cache:       cache,
		cacheTTL:    redis.TTLDaily,
		sourceID:    "default",
		qualityGate: quality.NewQualityGate(quality.Config{}),
		recorder:    recorder,
		historyFrom: DefaultHistoryFrom,
		now:         time.Now,
		logger:      log,
	}
}

// WithCacheTTL sets how long run results stay in Redis
func (o *Orchestrator) WithCacheTTL(ttl time.Duration) *Orchestrator {
	if ttl > 0 {
		o.cacheTTL = ttl
	}
	return o
}

// WithSourceID names the price source in cache keys
// 같은 설정이라도 CSV/DB/피드 결과는 서로 공유하지 않음
func (o *Orchestrator) WithSourceID(id string) *Orchestrator {
	if id != "" {
		o.sourceID = id
	}
	return o
}

// WithHistoryFrom sets the default first fetch date
func (o *Orchestrator) WithHistoryFrom(from time.Time) *Orchestrator {
	if !from.IsZero() {
		o.historyFrom = from
	}
	return o
}

// WithSnapshotStore saves the config YAML of every published run
func (o *Orchestrator) WithSnapshotStore(store SnapshotStore) *Orchestrator {
	o.snapshots = store
	return o
}

// Run executes one strategy run
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if config.Strategy == nil {
		return nil, fmt.Errorf("run: strategy config is nil")
	}
	cfg := config.Strategy
	strategyID := cfg.Meta.StrategyID

	asOf := config.AsOf
	if asOf.IsZero() {
		asOf = o.now()
	}
	asOf = asOf.UTC()

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config %s: %w", strategyID, err)
	}

	log := o.logger.WithStrategy(strategyID)
	log.WithFields(map[string]interface{}{
		"as_of":       asOf.Format("2006-01-02"),
		"config_hash": hash[:12],
		"publish":     config.Publish,
	}).Info("Starting strategy run")

	from, to := o.span(config, asOf)
	cacheKey := redis.RunKey(hash, o.sourceID, asOf, from, to)
	if cached, ok := o.lookup(ctx, cacheKey, config); ok {
		cached.Cached = true
		log.WithField("run_id", cached.Info.RunID).Info("Run served from cache")
		o.recorder.ObserveRun(strategyID, "cached", time.Since(startTime))
		return cached, nil
	}

	result, err := o.execute(ctx, config, asOf, from, to, hash, log)
	if err != nil {
		o.recorder.ObserveRun(strategyID, "error", time.Since(startTime))
		return nil, err
	}

	if config.Publish {
		if err := o.publish(ctx, cfg, result); err != nil {
			o.recorder.ObserveRun(strategyID, "error", time.Since(startTime))
			return nil, err
		}
	}

	result.Duration = time.Since(startTime)
	if !config.NoCache && o.cache != nil {
		if err := o.cache.Set(ctx, cacheKey, result, o.cacheTTL); err != nil {
			log.WithError(err).Warn("Failed to cache run result")
		}
	}

	o.recorder.ObserveRun(strategyID, "ok", result.Duration)
	log.WithFields(map[string]interface{}{
		"run_id":    result.Info.RunID,
		"decisions": len(result.Records()),
		"skipped":   len(result.Simulation.Skipped),
		"duration":  result.Duration.Seconds(),
	}).Info("Strategy run completed")

	return result, nil
}

// RunAll runs every strategy, continuing past individual failures
func (o *Orchestrator) RunAll(ctx context.Context, configs []*strategyconfig.Config, template RunConfig) ([]*RunResult, error) {
	results := make([]*RunResult, 0, len(configs))
	var errs []error

	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rc := template
		rc.Strategy = cfg
		result, err := o.Run(ctx, rc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cfg.Meta.StrategyID, err))
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

func (o *Orchestrator) lookup(ctx context.Context, key string, config RunConfig) (*RunResult, bool) {
	if config.NoCache || config.Publish || o.cache == nil {
		return nil, false
	}

	var cached RunResult
	found, err := o.cache.Get(ctx, key, &cached)
	if err != nil {
		o.logger.WithError(err).Warn("Run cache lookup failed")
		return nil, false
	}
	o.recorder.RecordCache(found)
	if !found {
		return nil, false
	}
	return &cached, true
}

// span resolves the fetch range of a run
func (o *Orchestrator) span(config RunConfig, asOf time.Time) (time.Time, time.Time) {
	from := config.From
	if from.IsZero() {
		from = o.historyFrom
	}
	to := config.To
	if to.IsZero() || to.After(asOf) {
		to = asOf
	}
	return from, to
}

// execute: fetch → align → quality → simulate → evaluate
func (o *Orchestrator) execute(ctx context.Context, config RunConfig, asOf, from, to time.Time, hash string, log *logger.Logger) (*RunResult, error) {
	cfg := config.Strategy

	universe := cfg.Universe()
	series, err := o.fetch(ctx, universe, from, to)
	if err != nil {
		return nil, err
	}

	matrix, err := align.Build(series, universe, asOf)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	snapshot := o.qualityGate.Check(matrix)
	if !snapshot.Passed {
		log.WithFields(map[string]interface{}{
			"quality_score": snapshot.QualityScore,
			"gaps":          gapSummary(snapshot),
		}).Warn("Month-end coverage has gaps; affected months will be skipped")
	}

	engine, err := backtest.NewEngine(cfg, log, o.recorder)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	sim, err := engine.Simulate(ctx, matrix)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	return &RunResult{
		Info: contracts.RunInfo{
			RunID:       uuid.NewString(),
			StrategyID:  cfg.Meta.StrategyID,
			ConfigHash:  hash,
			AsOf:        asOf,
			GeneratedAt: o.now().UTC(),
		},
		Simulation:  sim,
		Performance: backtest.Evaluate(matrix, sim.Records),
		Quality:     snapshot,
		Warnings:    strategyconfig.Warn(cfg),
	}, nil
}

// Inspect aligns symbols onto the month-end grid without running a strategy
// 관측 없는 심볼은 에러 대신 빈 열 (coverage 0)
func (o *Orchestrator) Inspect(ctx context.Context, symbols []string, from, asOf time.Time) (*align.Matrix, *quality.Snapshot, error) {
	if asOf.IsZero() {
		asOf = o.now()
	}
	if from.IsZero() {
		from = o.historyFrom
	}

	series := make(map[string][]contracts.Observation, len(symbols))
	for _, sym := range symbols {
		obs, err := o.source.PriceSeries(ctx, sym, from, asOf)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", sym, err)
		}
		series[sym] = obs
	}

	matrix, err := align.Build(series, symbols, asOf)
	if err != nil {
		return nil, nil, fmt.Errorf("align: %w", err)
	}
	return matrix, o.qualityGate.Check(matrix), nil
}

// fetch loads every symbol; zero observations → ErrUnknownSymbol
func (o *Orchestrator) fetch(ctx context.Context, symbols []string, from, to time.Time) (map[string][]contracts.Observation, error) {
	series := make(map[string][]contracts.Observation, len(symbols))
	var unknown []string

	for _, sym := range symbols {
		obs, err := o.source.PriceSeries(ctx, sym, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", sym, err)
		}
		if len(obs) == 0 {
			unknown = append(unknown, sym)
			continue
		}
		series[sym] = obs
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, strings.Join(unknown, ", "))
	}
	return series, nil
}

func (o *Orchestrator) publish(ctx context.Context, cfg *strategyconfig.Config, result *RunResult) error {
	if o.snapshots != nil {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config snapshot: %w", err)
		}
		snap, err := strategyconfig.NewDecisionSnapshot(cfg, data)
		if err != nil {
			return fmt.Errorf("config snapshot: %w", err)
		}
		if err := o.snapshots.SaveConfigSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save config snapshot: %w", err)
		}
	}

	if o.sink != nil {
		if err := o.sink.Publish(ctx, result.Info, result.Records()); err != nil {
			return fmt.Errorf("publish run %s: %w", result.Info.RunID, err)
		}
	}

	// 최신 run 포인터는 만료 없음 (다음 publish 가 덮어씀)
	if o.cache != nil {
		if err := o.cache.Set(ctx, redis.LatestRunKey(cfg.Meta.StrategyID), result.Info, 0); err != nil {
			o.logger.WithError(err).Warn("Failed to record latest run")
		}
	}
	return nil
}

// LatestRun returns the most recently published run of a strategy
func (o *Orchestrator) LatestRun(ctx context.Context, strategyID string) (*contracts.RunInfo, bool) {
	if o.cache == nil {
		return nil, false
	}

	var info contracts.RunInfo
	found, err := o.cache.Get(ctx, redis.LatestRunKey(strategyID), &info)
	if err != nil {
		o.logger.WithError(err).Warn("Latest run lookup failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &info, true
}

func gapSummary(snap *quality.Snapshot) map[string]int {
	out := make(map[string]int)
	for _, s := range snap.Symbols {
		if len(s.Gaps) > 0 {
			out[s.Symbol] = len(s.Gaps)
		}
	}
	return out
}
