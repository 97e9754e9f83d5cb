// Command tallyd serves accumulator sessions over HTTP, SSE and websocket.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blueledger/tally-go/internal/tally/api"
	"github.com/blueledger/tally-go/internal/tally/config"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/monitoring"
	"github.com/blueledger/tally-go/internal/tally/pool"
	"github.com/blueledger/tally-go/internal/tally/store"
	"github.com/blueledger/tally-go/internal/tally/utils"
	"github.com/blueledger/tally-go/internal/tally/ws"
)

func main() {
	cfg := config.Load()

	logger := logx.Initialize(cfg.App.LogLevel, cfg.App.LogFormat)
	ctx := context.Background()

	logger.Info(ctx, "starting tallyd",
		logx.KV("version", cfg.App.Version),
		logx.KV("environment", cfg.App.Environment),
		logx.KV("store_type", cfg.Memory.StoreType))

	// Pool and store: Redis when configured, in-process otherwise. The
	// counters and the rate limiter degrade with the pool.
	var poolMgr pool.Manager
	var st store.Store
	if cfg.Memory.StoreType == "redis" {
		redisMgr := pool.NewRedisManager(&cfg.Memory, logger)
		if _, err := redisMgr.GetClient(ctx, "normal"); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		poolMgr = redisMgr
		st = store.NewRedis(poolMgr, logger)
	} else {
		poolMgr = pool.NewInmem()
		st = store.NewInmem()
	}

	var limiter utils.RateLimiter
	if cfg.Security.EnableRateLimit {
		window := time.Minute
		if client, err := poolMgr.GetClient(ctx, "normal"); err == nil {
			limiter = utils.NewRedisRateLimiter(client, logger, window, cfg.Security.RateLimitPerMinute)
		} else {
			limiter = utils.NewInmemRateLimiter(window, cfg.Security.RateLimitPerMinute)
		}
	}

	monitor := monitoring.NewMonitor(cfg.App.Version)
	hub := ws.NewHub(logger)
	ops := utils.NewOpsCounter(logger, poolMgr)

	router := api.NewRouter(cfg, logger, st, hub, monitor, ops, limiter)

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	go func() {
		if err := router.Run(addr); err != nil {
			logger.Error(ctx, "http server failed", logx.KV("error", err))
			os.Exit(1)
		}
	}()

	logger.Info(ctx, "tallyd started", logx.KV("addr", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down tallyd")

	hub.Close()
	if err := poolMgr.Close(); err != nil {
		logger.Error(ctx, "closing redis pools failed", logx.KV("error", err))
	}

	logger.Info(ctx, "tallyd stopped")
}
