package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis/taa/internal/api/handlers"
	"github.com/wonny/aegis/taa/pkg/logger"
	"github.com/wonny/aegis/taa/pkg/metrics"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	strategyHandler *handlers.StrategyHandler,
	recorder *metrics.Recorder,
	limiter *rate.Limiter,
	log *logger.Logger,
) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Strategy endpoints
	api.HandleFunc("/strategies", strategyHandler.ListStrategies).Methods("GET")
	api.HandleFunc("/strategies/{id}", strategyHandler.GetStrategy).Methods("GET")
	api.HandleFunc("/strategies/{id}/decisions", strategyHandler.GetDecisions).Methods("GET")
	api.HandleFunc("/strategies/{id}/runs", strategyHandler.ListRuns).Methods("GET")

	// Stored runs
	api.HandleFunc("/runs/{id}", strategyHandler.GetRun).Methods("GET")

	// Rate limit applies to /api only
	if limiter != nil {
		api.Use(rateLimitMiddleware(limiter))
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, recorder))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "taa-api",
	})
}
