package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/aegis/taa/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestNilClient_Disabled(t *testing.T) {
	var client *Client
	if client.Enabled() {
		t.Error("Expected nil client to report disabled")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), RunRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != RunRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", RunRateLimit.Limit, remaining)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	if err := cache.Set(ctx, "key", "value", TTLShort); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
}

func TestCacheKeys(t *testing.T) {
	asOf := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	history := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "RunKey",
			fn:       func() string { return RunKey("abc123", "db", asOf, history, asOf) },
			expected: "run:abc123:db:2024-06-15:1990-01-01:2024-06-15",
		},
		{
			name:     "RunKey with later start",
			fn:       func() string { return RunKey("abc123", "db", asOf, recent, asOf) },
			expected: "run:abc123:db:2024-06-15:2015-01-01:2024-06-15",
		},
		{
			name:     "RunKey per source",
			fn:       func() string { return RunKey("abc123", "csv:prices.csv", asOf, history, asOf) },
			expected: "run:abc123:csv:prices.csv:2024-06-15:1990-01-01:2024-06-15",
		},
		{
			name:     "LatestRunKey",
			fn:       func() string { return LatestRunKey("gtaa") },
			expected: "run:latest:gtaa",
		},
		{
			name:     "fullKey",
			fn:       func() string { return NewCache(Disabled(), "taa").fullKey("x") },
			expected: "taa:cache:x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRateLimiter_NilAllowsAll(t *testing.T) {
	var limiter *RateLimiter

	allowed, _, err := limiter.Allow(context.Background(), PriceFeedRateLimit)
	if err != nil || !allowed {
		t.Fatalf("nil limiter: allowed=%v err=%v", allowed, err)
	}
	if err := limiter.Wait(context.Background(), PriceFeedRateLimit); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
