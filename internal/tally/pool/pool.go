package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blueledger/tally-go/internal/tally/config"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/redis/go-redis/v9"
)

// Manager hands out named Redis client pools.
type Manager interface {
	// GetClient returns the client for a pool type, creating it on first use.
	GetClient(ctx context.Context, poolType string) (*redis.Client, error)

	// Ping tests the connection of a pool type.
	Ping(ctx context.Context, poolType string) error

	// Stats returns pool usage counters.
	Stats() map[string]interface{}

	// Close closes all clients.
	Close() error
}

// RedisManager creates and caches Redis clients per pool type.
type RedisManager struct {
	clients map[string]*redis.Client
	cfg     *config.MemoryConfig
	logger  *logx.Logger
	mu      sync.RWMutex

	requests int64
	failures int64
}

// NewRedisManager creates a manager backed by the configured Redis instance.
func NewRedisManager(cfg *config.MemoryConfig, logger *logx.Logger) *RedisManager {
	return &RedisManager{
		clients: make(map[string]*redis.Client),
		cfg:     cfg,
		logger:  logger,
	}
}

// GetClient returns the Redis client for a pool type, creating it on first use.
func (rm *RedisManager) GetClient(ctx context.Context, poolType string) (*redis.Client, error) {
	rm.mu.RLock()
	client, exists := rm.clients[poolType]
	rm.mu.RUnlock()

	if exists {
		rm.mu.Lock()
		rm.requests++
		rm.mu.Unlock()
		return client, nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	// Double check after acquiring the write lock.
	if client, exists := rm.clients[poolType]; exists {
		rm.requests++
		return client, nil
	}

	client, err := rm.createClient(ctx, poolType)
	if err != nil {
		rm.failures++
		return nil, fmt.Errorf("create redis pool (pool_type=%s): %w", poolType, err)
	}

	rm.clients[poolType] = client
	rm.requests++

	rm.logger.Info(ctx, "created redis pool", logx.KV("pool_type", poolType))
	return client, nil
}

func (rm *RedisManager) createClient(ctx context.Context, poolType string) (*redis.Client, error) {
	opt := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", rm.cfg.RedisHost, rm.cfg.RedisPort),
		Password:     rm.cfg.RedisPassword,
		DB:           rm.cfg.RedisDB,
		PoolSize:     maxConnectionsForPoolType(poolType),
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func maxConnectionsForPoolType(poolType string) int {
	switch poolType {
	case "high_priority":
		return 200
	case "background":
		return 50
	default:
		return 100
	}
}

// Ping tests the connection of a pool type.
func (rm *RedisManager) Ping(ctx context.Context, poolType string) error {
	client, err := rm.GetClient(ctx, poolType)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Stats returns pool usage counters.
func (rm *RedisManager) Stats() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	poolTypes := make([]string, 0, len(rm.clients))
	for poolType := range rm.clients {
		poolTypes = append(poolTypes, poolType)
	}

	return map[string]interface{}{
		"redis_requests": rm.requests,
		"redis_failures": rm.failures,
		"active_pools":   len(rm.clients),
		"pool_types":     poolTypes,
	}
}

// Close closes all clients.
func (rm *RedisManager) Close() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var lastErr error
	for poolType, client := range rm.clients {
		if err := client.Close(); err != nil {
			rm.logger.Error(context.Background(), "close redis pool failed",
				logx.KV("pool_type", poolType), logx.KV("error", err))
			lastErr = err
		}
	}

	rm.clients = make(map[string]*redis.Client)
	return lastErr
}
