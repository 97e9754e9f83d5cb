package api

import (
	"net/http"
	"time"

	"github.com/blueledger/tally-go/internal/tally/calc"
	"github.com/blueledger/tally-go/internal/tally/config"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/monitoring"
	"github.com/blueledger/tally-go/internal/tally/store"
	"github.com/blueledger/tally-go/internal/tally/utils"
	"github.com/blueledger/tally-go/internal/tally/ws"
	"github.com/gin-gonic/gin"
)

// Router wires the HTTP surface: health, greeter, accumulator sessions and
// the event feeds.
type Router struct {
	engine  *gin.Engine
	cfg     *config.Config
	logger  *logx.Logger
	store   store.Store
	hub     *ws.Hub
	monitor *monitoring.Monitor
	ops     *utils.OpsCounter
}

// NewRouter creates the router with all middleware and routes installed.
// limiter may be nil when rate limiting is disabled.
func NewRouter(
	cfg *config.Config,
	logger *logx.Logger,
	st store.Store,
	hub *ws.Hub,
	monitor *monitoring.Monitor,
	ops *utils.OpsCounter,
	limiter utils.RateLimiter,
) *Router {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(RequestContextMiddleware())
	engine.Use(RequestLoggingMiddleware(logger))
	engine.Use(RecoveryMiddleware(logger))
	engine.Use(CORSMiddleware(cfg.API.CORSOrigins))
	if cfg.Security.EnableRateLimit && limiter != nil {
		engine.Use(RateLimitMiddleware(limiter, logger))
	}

	router := &Router{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		store:   st,
		hub:     hub,
		monitor: monitor,
		ops:     ops,
	}

	router.setupRoutes()
	return router
}

// Engine exposes the underlying gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server on addr.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/ping", r.handlePing)
	r.engine.GET("/greet", r.handleGreet)
	r.engine.GET("/ws", r.handleWebsocket)

	v1 := r.engine.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", r.handleCreateSession)
			sessions.GET("/:id", r.handleGetSession)
			sessions.DELETE("/:id", r.handleDeleteSession)
			sessions.POST("/:id/add", r.handleAdd)
			sessions.POST("/:id/multiply", r.handleMultiply)
			sessions.GET("/:id/history", r.handleHistory)
			sessions.GET("/:id/stream", r.handleStream)
		}
	}
}

func (r *Router) handleHealth(c *gin.Context) {
	health := r.monitor.GetHealth()

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":      health.Status,
		"timestamp":   health.Timestamp,
		"version":     health.Version,
		"uptime":      health.UptimeHuman,
		"goroutines":  health.Goroutines,
		"ops_applied": health.OpsApplied,
		"subscribers": r.hub.Count(),
		"ops_total":   r.ops.Total(c.Request.Context()),
	})
}

func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now(),
	})
}

// handleGreet runs the Greeter: the greeting goes to the process stdout
// exactly as in the reference flow, and the response carries the same text
// plus the status the Greeter returns.
func (r *Router) handleGreet(c *gin.Context) {
	status := calc.NewGreeter().Greet()

	c.JSON(http.StatusOK, gin.H{
		"message": calc.GreetingMessage,
		"status":  status,
	})
}
