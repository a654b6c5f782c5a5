package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: CSV 기반 실행은 DB 없이 동작)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Strategy
	Strategy StrategyConfig

	// API
	API APIConfig

	// Remote CSV price feed (optional)
	PriceFeed PriceFeedConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	RunTTL   time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// StrategyConfig holds where strategy YAML files live and how often they run
type StrategyConfig struct {
	Dir          string // 비어 있으면 내장 프리셋 사용
	ScheduleCron string // 6-field cron (seconds 포함)
	HistoryFrom  time.Time
	RunRetention time.Duration // 저장된 run 보관 기간
}

// APIConfig holds HTTP API limits
type APIConfig struct {
	RateLimit float64 // requests per second
	RateBurst int
}

// PriceFeedConfig holds the remote CSV price feed settings
type PriceFeedConfig struct {
	URL        string // "{symbol}" 자리에 티커 치환
	Timeout    time.Duration
	MaxRetries int
	RatePerSec int
	CacheTTL   time.Duration // 심볼별 응답 재사용 기간, 0 → 매 조회마다 다운로드
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			RunTTL:   getEnvAsDuration("REDIS_RUN_TTL", "24h"),
		},

		Strategy: StrategyConfig{
			Dir:          getEnv("STRATEGY_DIR", ""),
			ScheduleCron: getEnv("SCHEDULE_CRON", "0 0 7 1 * *"),
			HistoryFrom:  getEnvAsDate("HISTORY_FROM", "1990-01-01"),
			RunRetention: getEnvAsDuration("RUN_RETENTION", "8760h"),
		},

		API: APIConfig{
			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 20),
			RateBurst: getEnvAsInt("API_RATE_BURST", 40),
		},

		PriceFeed: PriceFeedConfig{
			URL:        getEnv("PRICE_FEED_URL", ""),
			Timeout:    getEnvAsDuration("PRICE_FEED_TIMEOUT", "30s"),
			MaxRetries: getEnvAsInt("PRICE_FEED_MAX_RETRIES", 3),
			RatePerSec: getEnvAsInt("PRICE_FEED_RPS", 5),
			CacheTTL:   getEnvAsDuration("PRICE_FEED_CACHE_TTL", "10m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFrom loads an explicit env file first, then reads configuration
// 이미 설정된 환경변수는 덮어쓰지 않음 (godotenv.Load 규칙)
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	return Load()
}

// HasDatabase reports whether a price store is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.API.RateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be > 0")
	}
	if c.API.RateBurst < 1 {
		return fmt.Errorf("API_RATE_BURST must be >= 1")
	}

	if c.PriceFeed.URL != "" && !strings.Contains(c.PriceFeed.URL, "{symbol}") {
		return fmt.Errorf("PRICE_FEED_URL must contain {symbol}")
	}
	if c.PriceFeed.CacheTTL < 0 {
		return fmt.Errorf("PRICE_FEED_CACHE_TTL must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsDate(key string, defaultValue string) time.Time {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	date, err := time.Parse("2006-01-02", valueStr)
	if err != nil {
		date, _ = time.Parse("2006-01-02", defaultValue)
	}

	return date
}
