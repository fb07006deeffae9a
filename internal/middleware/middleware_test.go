package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok/42", "/missing", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok/:id", entries[0].ContextMap()["route"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	t.Parallel()

	called := false
	router := gin.New()
	router.Use(CORSMiddleware())
	router.POST("/v1/orders", func(c *gin.Context) { called = true })
	router.OPTIONS("/v1/orders", func(c *gin.Context) { called = true })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/orders", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), idempotencyHeader)
	assert.False(t, called)
}

func TestIdempotencyMiddleware_DisabledWithoutRedis(t *testing.T) {
	t.Parallel()

	calls := 0
	router := gin.New()
	router.Use(IdempotencyMiddleware(nil, zap.NewNop()))
	router.POST("/v1/orders", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
		req.Header.Set(idempotencyHeader, "same-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyKey_ScopedByMethodAndPath(t *testing.T) {
	t.Parallel()

	a := idempotencyKey(http.MethodPost, "/v1/orders/a/cancel", "k")
	b := idempotencyKey(http.MethodPost, "/v1/orders/b/cancel", "k")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "idempotency:POST:/v1/orders/a/cancel:k", a)
}
