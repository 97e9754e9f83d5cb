package utils

import (
	"context"
	"sync"
	"time"

	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/pool"
)

// OpsCounter counts applied operations in total, per day and per user.
// Counts live in Redis when a pool is available; otherwise they fall back to
// process-local counters so /health stays meaningful in memory-only runs.
type OpsCounter struct {
	logger *logx.Logger
	redis  pool.Manager

	totalKey       string
	dailyKeyPrefix string
	userKeyPrefix  string
	dailyTTL       time.Duration
	userTTL        time.Duration

	mu         sync.Mutex
	localTotal int64
	localUsers map[string]int64
}

// NewOpsCounter creates a counter over the given pool manager.
func NewOpsCounter(logger *logx.Logger, redis pool.Manager) *OpsCounter {
	return &OpsCounter{
		logger:         logger,
		redis:          redis,
		totalKey:       "tally:ops:total",
		dailyKeyPrefix: "tally:ops:daily:",
		userKeyPrefix:  "tally:ops:user:",
		dailyTTL:       7 * 24 * time.Hour,
		userTTL:        7 * 24 * time.Hour,
		localUsers:     make(map[string]int64),
	}
}

// Inc records one applied operation for a user.
func (c *OpsCounter) Inc(ctx context.Context, userID string) {
	client, err := c.redis.GetClient(ctx, "background")
	if err != nil {
		c.mu.Lock()
		c.localTotal++
		c.localUsers[userID]++
		c.mu.Unlock()
		return
	}

	day := time.Now().Format("2006-01-02")
	pipe := client.Pipeline()
	pipe.Incr(ctx, c.totalKey)
	dailyKey := c.dailyKeyPrefix + day
	pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, c.dailyTTL)
	userKey := c.userKeyPrefix + userID
	pipe.Incr(ctx, userKey)
	pipe.Expire(ctx, userKey, c.userTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn(ctx, "ops counter increment failed", logx.KV("error", err))
	}
}

// Total returns the all-time operation count.
func (c *OpsCounter) Total(ctx context.Context) int64 {
	client, err := c.redis.GetClient(ctx, "background")
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.localTotal
	}

	n, err := client.Get(ctx, c.totalKey).Int64()
	if err != nil {
		return 0
	}
	return n
}

// UserTotal returns the operation count for one user.
func (c *OpsCounter) UserTotal(ctx context.Context, userID string) int64 {
	client, err := c.redis.GetClient(ctx, "background")
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.localUsers[userID]
	}

	n, err := client.Get(ctx, c.userKeyPrefix+userID).Int64()
	if err != nil {
		return 0
	}
	return n
}
