package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "throttle:"

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed           bool
	Limit             int
	RequestsRemaining int
	ResetAt           time.Time
	RetryAfter        time.Duration
}

// Config holds the fixed-window parameters
type Config struct {
	Limit  int
	Window time.Duration
}

// RateLimitService counts requests per key in fixed windows stored in Redis
type RateLimitService struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(client redis.UniversalClient, cfg Config, logger *zap.Logger) (*RateLimitService, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", cfg.Window)
	}

	return &RateLimitService{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		logger: logger,
	}, nil
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// windowScript increments the counter and starts the window expiry in one
// atomic step. A counter found without expiry gets a fresh window.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// CheckLimit records one request for key and reports whether it fits in the
// current window
func (s *RateLimitService) CheckLimit(ctx context.Context, key string) (*RateLimitResult, error) {
	values, err := windowScript.Run(ctx, s.client, []string{keyPrefix + key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to count request: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected counter reply %v", values)
	}
	count, ttl := values[0], time.Duration(values[1])*time.Millisecond

	result := &RateLimitResult{
		Allowed:           count <= int64(s.limit),
		Limit:             s.limit,
		RequestsRemaining: max(s.limit-int(count), 0),
		ResetAt:           time.Now().Add(ttl),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
		s.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", s.limit))
	}

	return result, nil
}

// HealthCheck pings the counter store
func (s *RateLimitService) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
