package pool

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNoRedis is returned by the in-memory manager; callers that can run
// without Redis treat it as "feature disabled".
var ErrNoRedis = errors.New("redis not configured")

// InmemManager satisfies Manager for redis-less runs. Components holding a
// Manager degrade to no-ops when GetClient fails.
type InmemManager struct{}

// NewInmem creates a manager that never hands out clients.
func NewInmem() Manager {
	return &InmemManager{}
}

func (m *InmemManager) GetClient(ctx context.Context, poolType string) (*redis.Client, error) {
	return nil, ErrNoRedis
}

func (m *InmemManager) Ping(ctx context.Context, poolType string) error {
	return ErrNoRedis
}

func (m *InmemManager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"redis_requests": 0,
		"redis_failures": 0,
		"active_pools":   0,
	}
}

func (m *InmemManager) Close() error { return nil }
