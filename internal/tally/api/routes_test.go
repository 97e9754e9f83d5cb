package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blueledger/tally-go/internal/tally/config"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/monitoring"
	"github.com/blueledger/tally-go/internal/tally/pool"
	"github.com/blueledger/tally-go/internal/tally/store"
	"github.com/blueledger/tally-go/internal/tally/utils"
	"github.com/blueledger/tally-go/internal/tally/ws"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.API.CORSOrigins = []string{"*"}

	logger := logx.NewTo(&bytes.Buffer{}, "ERROR", "text")
	return NewRouter(cfg, logger,
		store.NewInmem(),
		ws.NewHub(logger),
		monitoring.NewMonitor(cfg.App.Version),
		utils.NewOpsCounter(logger, pool.NewInmem()),
		nil)
}

func doJSON(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/ping", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode(t, w)["message"])
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestGreet(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/greet", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Hello World!", body["message"])
	assert.Equal(t, "success", body["status"])
}

func TestCreateSession(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]string{"session_id": "s1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, 0.0, body["value"])
	assert.Equal(t, "Result: 0", body["result"])
}

func TestCreateSessionGeneratesID(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions", nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decode(t, w)["session_id"])
}

func TestReferenceFlowOverAPI(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]string{"session_id": "demo"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/demo/add", map[string]float64{"operand": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5.0, decode(t, w)["value"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/demo/multiply", map[string]float64{"operand": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 10.0, body["value"])
	assert.Equal(t, "Result: 10", body["result"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/sessions/demo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, 10.0, body["value"])
	assert.Equal(t, 2.0, body["op_count"])
	assert.Equal(t, "Result: 10", body["result"])
}

func TestMultiplyByZeroOperandAccepted(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/add", map[string]float64{"operand": 42})
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/multiply", map[string]float64{"operand": 0})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode(t, w)["value"])
}

func TestApplyMissingOperand(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/add", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplyNonNumericOperand(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/add", map[string]string{"operand": "five"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnknownSession(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsScopedByUser(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/sessions/shared/add", map[string]float64{"operand": 5})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/shared", nil)
	req.Header.Set("X-User-ID", "someone-else")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistory(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/add", map[string]float64{"operand": 5})
	doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/multiply", map[string]float64{"operand": 2})

	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/s1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 2.0, body["count"])

	ops := body["operations"].([]any)
	first := ops[0].(map[string]any)
	assert.Equal(t, "add", first["kind"])
	assert.Equal(t, 5.0, first["result"])
}

func TestHistoryBadLimit(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/sessions/s1/add", map[string]float64{"operand": 1})

	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/s1/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSession(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/sessions", map[string]string{"session_id": "s1"})
	w := doJSON(t, r, http.MethodDelete, "/api/v1/sessions/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEchoed(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.API.CORSOrigins = []string{"*"}
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimitPerMinute = 2

	logger := logx.NewTo(&bytes.Buffer{}, "ERROR", "text")
	limiter := utils.NewInmemRateLimiter(time.Minute, cfg.Security.RateLimitPerMinute)
	r := NewRouter(cfg, logger,
		store.NewInmem(),
		ws.NewHub(logger),
		monitoring.NewMonitor(cfg.App.Version),
		utils.NewOpsCounter(logger, pool.NewInmem()),
		limiter)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}
