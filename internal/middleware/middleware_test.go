package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.Use(handlers...)
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserKey))
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth("secret"))

	token, err := IssueToken("secret", "operator", time.Hour)
	require.NoError(t, err)
	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Basic abc").Code)

	forged, err := IssueToken("other", "operator", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+forged).Code)

	expired, err := IssueToken("secret", "operator", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+expired).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Minute))

	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "").Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := &RateLimiter{requests: make(map[string][]time.Time), limit: 1, window: 20 * time.Millisecond}
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}
