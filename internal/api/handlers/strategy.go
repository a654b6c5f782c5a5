package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis/taa/internal/audit"
	"github.com/wonny/aegis/taa/internal/backtest"
	"github.com/wonny/aegis/taa/internal/brain"
	"github.com/wonny/aegis/taa/internal/contracts"
	"github.com/wonny/aegis/taa/internal/strategyconfig"
	"github.com/wonny/aegis/taa/pkg/logger"
	"github.com/wonny/aegis/taa/pkg/redis"
)

// Runner executes one strategy run
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
	LatestRun(ctx context.Context, strategyID string) (*contracts.RunInfo, bool)
}

// RunStore reads published runs
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*audit.StoredRun, error)
	ListRuns(ctx context.Context, strategyID string, limit int) ([]contracts.RunInfo, error)
}

// StrategyHandler handles strategy and decision endpoints
// ⭐ SSOT: 전략 API 핸들러는 이 구조체에서만
type StrategyHandler struct {
	configs []*strategyconfig.Config
	runner  Runner
	runs    RunStore // nil → DB 없음
	limiter *redis.RateLimiter
	logger  *logger.Logger
}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler(
	configs []*strategyconfig.Config,
	runner Runner,
	runs RunStore,
	limiter *redis.RateLimiter,
	log *logger.Logger,
) *StrategyHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &StrategyHandler{
		configs: configs,
		runner:  runner,
		runs:    runs,
		limiter: limiter,
		logger:  log,
	}
}

// StrategySummary is one line of the strategy list
type StrategySummary struct {
	StrategyID string                   `json:"strategy_id"`
	Name       string                   `json:"name"`
	Version    string                   `json:"version"`
	ConfigHash string                   `json:"config_hash"`
	Rule       string                   `json:"rule"`
	Universe   []string                 `json:"universe"`
	Warnings   []strategyconfig.Warning `json:"warnings,omitempty"`
}

// StrategyDetail is the full config of one strategy
type StrategyDetail struct {
	StrategySummary
	Config    *strategyconfig.Config `json:"config"`
	LatestRun *contracts.RunInfo     `json:"latest_run,omitempty"` // 마지막 publish 된 run
}

// DecisionsResponse is the payload of an on-demand run
type DecisionsResponse struct {
	Run         contracts.RunInfo          `json:"run"`
	Cached      bool                       `json:"cached"`
	Window      int                        `json:"window"`
	Records     []contracts.DecisionRecord `json:"records"`
	Skipped     []backtest.SkippedMonth    `json:"skipped,omitempty"`
	Performance backtest.Performance       `json:"performance"`
}

// ListStrategies returns every configured strategy
// GET /api/strategies
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	out := make([]StrategySummary, 0, len(h.configs))
	for _, cfg := range h.configs {
		summary, err := summarize(cfg)
		if err != nil {
			h.logger.WithError(err).Error("Failed to hash strategy config")
			respondError(w, http.StatusInternalServerError, "Failed to describe strategies")
			return
		}
		out = append(out, summary)
	}

	respondJSON(w, http.StatusOK, out)
}

// GetStrategy returns one strategy config
// GET /api/strategies/{id}
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.strategy(w, r)
	if !ok {
		return
	}

	summary, err := summarize(cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to describe strategy")
		return
	}

	detail := StrategyDetail{StrategySummary: summary, Config: cfg}
	if info, ok := h.runner.LatestRun(r.Context(), cfg.Meta.StrategyID); ok {
		detail.LatestRun = info
	}

	respondJSON(w, http.StatusOK, detail)
}

// GetDecisions runs the strategy on demand (cached per config hash + asof)
// GET /api/strategies/{id}/decisions?asof=YYYY-MM-DD&last=N
func (h *StrategyHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.strategy(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var asOf time.Time
	if v := q.Get("asof"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "asof must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	last := 0
	if v := q.Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "last must be a non-negative integer")
			return
		}
		last = n
	}

	if h.limiter != nil {
		allowed, _, err := h.limiter.Allow(r.Context(), redis.RunRateLimit)
		if err != nil {
			h.logger.WithError(err).Warn("Run rate limiter unavailable")
		} else if !allowed {
			respondError(w, http.StatusTooManyRequests, "Too many strategy runs, retry later")
			return
		}
	}

	result, err := h.runner.Run(r.Context(), brain.RunConfig{Strategy: cfg, AsOf: asOf})
	if err != nil {
		if errors.Is(err, brain.ErrUnknownSymbol) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.WithError(err).WithField("strategy", cfg.Meta.StrategyID).Error("Strategy run failed")
		respondError(w, http.StatusInternalServerError, "Strategy run failed")
		return
	}

	records := result.Records()
	if last > 0 && len(records) > last {
		records = records[len(records)-last:]
	}

	respondJSON(w, http.StatusOK, DecisionsResponse{
		Run:         result.Info,
		Cached:      result.Cached,
		Window:      result.Simulation.Window,
		Records:     records,
		Skipped:     result.Simulation.Skipped,
		Performance: result.Performance,
	})
}

// ListRuns returns the stored runs of a strategy
// GET /api/strategies/{id}/runs?limit=N
func (h *StrategyHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.strategy(w, r)
	if !ok {
		return
	}
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run store not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), cfg.Meta.StrategyID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetRun returns one stored run with its decisions
// GET /api/runs/{id}
func (h *StrategyHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run store not configured")
		return
	}

	run, err := h.runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, audit.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (h *StrategyHandler) strategy(w http.ResponseWriter, r *http.Request) (*strategyconfig.Config, bool) {
	id := mux.Vars(r)["id"]
	cfg, ok := strategyconfig.Find(h.configs, id)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown strategy: "+id)
		return nil, false
	}
	return cfg, true
}

func summarize(cfg *strategyconfig.Config) (StrategySummary, error) {
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return StrategySummary{}, err
	}
	return StrategySummary{
		StrategyID: cfg.Meta.StrategyID,
		Name:       cfg.Meta.Name,
		Version:    cfg.Meta.Version,
		ConfigHash: hash,
		Rule:       string(cfg.Weighting.Rule),
		Universe:   cfg.Universe(),
		Warnings:   strategyconfig.Warn(cfg),
	}, nil
}
