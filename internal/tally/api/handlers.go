package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blueledger/tally-go/internal/tally/calc"
	"github.com/blueledger/tally-go/internal/tally/contextx"
	"github.com/blueledger/tally-go/internal/tally/events"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/store"
	"github.com/blueledger/tally-go/internal/tally/ws"
	"github.com/gin-gonic/gin"
)

// userID resolves the caller identity. Sessions are keyed per user; callers
// without an X-User-ID header share the anonymous namespace.
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (r *Router) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	user := userID(c)
	ctx := contextx.WithSessionID(contextx.WithUserID(c.Request.Context(), user), req.SessionID)

	sess, err := r.store.Create(ctx, user, req.SessionID)
	if err != nil {
		r.logger.Error(ctx, "create session failed", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create session failed"})
		return
	}

	r.logger.Info(ctx, "session created")
	c.JSON(http.StatusCreated, sessionResponse(sess))
}

func (r *Router) handleGetSession(c *gin.Context) {
	sess, err := r.store.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		r.logger.Error(c.Request.Context(), "get session failed", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get session failed"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (r *Router) handleDeleteSession(c *gin.Context) {
	err := r.store.Delete(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		r.logger.Error(c.Request.Context(), "delete session failed", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete session failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type applyRequest struct {
	// Pointer so an explicit operand of 0 passes validation; multiply by
	// zero is a legitimate operation.
	Operand *float64 `json:"operand" binding:"required"`
}

func (r *Router) handleAdd(c *gin.Context) {
	r.applyOp(c, store.OpAdd)
}

func (r *Router) handleMultiply(c *gin.Context) {
	r.applyOp(c, store.OpMultiply)
}

func (r *Router) applyOp(c *gin.Context, kind store.OpKind) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operand is required and must be numeric"})
		return
	}

	user := userID(c)
	sessionID := c.Param("id")
	ctx := contextx.WithSessionID(contextx.WithUserID(c.Request.Context(), user), sessionID)

	value, err := r.store.Apply(ctx, user, sessionID, kind, *req.Operand)
	if err != nil {
		r.logger.Error(ctx, "apply operation failed",
			logx.KV("kind", kind), logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "apply operation failed"})
		return
	}

	r.monitor.RecordOp()
	r.ops.Inc(ctx, user)
	r.hub.Broadcast(ctx, events.NewValueUpdate(user, sessionID, events.ValueUpdateData{
		Kind:    kind,
		Operand: *req.Operand,
		Value:   value,
		Result:  "Result: " + calc.FormatValue(value),
	}))

	r.logger.Debug(ctx, "operation applied",
		logx.KV("kind", kind),
		logx.KV("operand", *req.Operand),
		logx.KV("value", value))

	c.JSON(http.StatusOK, gin.H{
		"kind":    kind,
		"operand": *req.Operand,
		"value":   value,
		"result":  "Result: " + calc.FormatValue(value),
	})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	ops, err := r.store.History(c.Request.Context(), userID(c), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		r.logger.Error(c.Request.Context(), "get history failed", logx.KV("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get history failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operations": ops,
		"count":      len(ops),
	})
}

// handleStream serves an SSE feed of value updates for one session.
func (r *Router) handleStream(c *gin.Context) {
	key := ws.SessionKey(userID(c), c.Param("id"))
	ch, cancel := r.hub.Subscribe(key)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleWebsocket serves the websocket feed. Without session_id the client
// receives updates for every session.
func (r *Router) handleWebsocket(c *gin.Context) {
	key := "*"
	if sessionID := c.Query("session_id"); sessionID != "" {
		key = ws.SessionKey(userID(c), sessionID)
	}
	r.hub.Serve(c.Writer, c.Request, key)
}

func sessionResponse(sess *store.Session) gin.H {
	return gin.H{
		"user_id":    sess.UserID,
		"session_id": sess.SessionID,
		"value":      sess.Value,
		"op_count":   sess.OpCount,
		"result":     "Result: " + calc.FormatValue(sess.Value),
	}
}
