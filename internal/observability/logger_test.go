package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWithFields_AccumulatesAcrossCalls(t *testing.T) {
	ctx := context.Background()
	ctx = WithFields(ctx, Field{"call_sid", "CA123"})
	ctx = WithFields(ctx, Field{"stream_sid", "MZ456"})

	fields := getObservabilityFields(ctx)
	assert.Len(t, fields, 2)
	assert.Equal(t, "call_sid", fields[0].Key)
	assert.Equal(t, "stream_sid", fields[1].Key)
}

func TestWithFields_EmptyContext(t *testing.T) {
	fields := getObservabilityFields(context.Background())
	assert.Nil(t, fields)
}

func TestMiddleware_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := NewLogger()

	router := gin.New()
	router.Use(Middleware(logger))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMiddleware_PreservesExistingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := NewLogger()

	router := gin.New()
	router.Use(Middleware(logger))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-fixed")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-fixed", w.Header().Get("X-Request-ID"))
}

func TestMiddleware_RecoversFromPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := NewLogger()

	router := gin.New()
	router.Use(Middleware(logger))
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
