package utils

import (
	"context"
	"strconv"
	"sync"
	"time"

	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/redis/go-redis/v9"
)

// RateLimiter answers whether a keyed caller may proceed within the current
// window.
type RateLimiter interface {
	// Allow checks whether the request identified by key is within limits.
	Allow(ctx context.Context, key string) (bool, error)

	// GetLimitInfo returns the current window state for key.
	GetLimitInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Reset clears the window for key.
	Reset(ctx context.Context, key string) error
}

// LimitInfo describes the state of one rate-limit window.
type LimitInfo struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
	Window    time.Duration `json:"window"`
}

// allowScript implements a sliding window over a sorted set: drop entries
// older than the window, count the rest, admit if under the limit.
const allowScript = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)

if current < limit then
  redis.call('ZADD', key, now, now)
  redis.call('EXPIRE', key, window_seconds)
  return 1
end
return 0
`

// RedisRateLimiter is a sliding-window limiter over Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	logger *logx.Logger
	window time.Duration
	limit  int
	prefix string
}

// NewRedisRateLimiter creates a limiter allowing limit requests per window.
func NewRedisRateLimiter(client redis.UniversalClient, logger *logx.Logger, window time.Duration, limit int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		logger: logger,
		window: window,
		limit:  limit,
		prefix: "tally:rate:",
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	result, err := rl.client.Eval(ctx, allowScript, []string{rl.prefix + key},
		windowStart.UnixNano(), now.UnixNano(), rl.limit, int(rl.window.Seconds())+1).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (rl *RedisRateLimiter) GetLimitInfo(ctx context.Context, key string) (*LimitInfo, error) {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	count, err := rl.client.ZCount(ctx, rl.prefix+key,
		strconv.FormatInt(windowStart.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return nil, err
	}

	remaining := rl.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &LimitInfo{
		Limit:     rl.limit,
		Remaining: remaining,
		ResetTime: now.Add(rl.window),
		Window:    rl.window,
	}, nil
}

func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.prefix+key).Err()
}

// InmemRateLimiter is a fixed-slice sliding window kept in process memory,
// used when Redis is not configured.
type InmemRateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string][]time.Time
}

// NewInmemRateLimiter creates an in-memory limiter.
func NewInmemRateLimiter(window time.Duration, limit int) *InmemRateLimiter {
	return &InmemRateLimiter{
		window:  window,
		limit:   limit,
		entries: make(map[string][]time.Time),
	}
}

func (rl *InmemRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.pruneLocked(key, time.Now())
	if len(kept) >= rl.limit {
		return false, nil
	}
	rl.entries[key] = append(kept, time.Now())
	return true, nil
}

func (rl *InmemRateLimiter) GetLimitInfo(ctx context.Context, key string) (*LimitInfo, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	kept := rl.pruneLocked(key, now)
	remaining := rl.limit - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return &LimitInfo{
		Limit:     rl.limit,
		Remaining: remaining,
		ResetTime: now.Add(rl.window),
		Window:    rl.window,
	}, nil
}

func (rl *InmemRateLimiter) Reset(ctx context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
	return nil
}

func (rl *InmemRateLimiter) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	kept := rl.entries[key][:0]
	for _, ts := range rl.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rl.entries[key] = kept
	return kept
}
