package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInvalidAuthRateLimiter_WindowExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewInvalidAuthRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Record("1.2.3.4")
	assert.False(t, rl.Blocked("1.2.3.4"))
	rl.Record("1.2.3.4")
	assert.True(t, rl.Blocked("1.2.3.4"))
	assert.False(t, rl.Blocked("5.6.7.8"))

	now = now.Add(2 * time.Minute)
	assert.False(t, rl.Blocked("1.2.3.4"))
}

func TestSessionMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SessionMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c))
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "abc")
	w := serve(req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get(SessionHeader))

	w = serve(httptest.NewRequest(http.MethodGet, "/?session=xyz", nil))
	assert.Equal(t, "xyz", w.Body.String())

	w = serve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, strings.Repeat("x", 200))
	w = serve(req)
	assert.Len(t, w.Body.String(), 36, "oversized ids are replaced")
}

func TestJWTMiddleware(t *testing.T) {
	rl := NewInvalidAuthRateLimiter(2, time.Minute)
	m := NewJWTMiddleware(testSecret, rl)

	r := gin.New()
	handler := func(c *gin.Context) {
		account := GetAccount(c)
		if account == nil {
			c.String(http.StatusOK, "guest")
			return
		}
		c.String(http.StatusOK, account.ID)
	}
	r.GET("/optional", m.Optional(), handler)
	r.GET("/required", m.Required(), handler)

	call := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	token, err := utils.GenerateJWT(testSecret, &models.Account{ID: "a1", Status: models.AccountActive}, time.Hour)
	require.NoError(t, err)

	w := call("/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", w.Body.String())

	w = call("/optional", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", w.Body.String())

	w = call("/required", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_REQUIRED")

	w = call("/required", "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	w = call("/optional", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call("/optional", "Bearer "+token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "blocked after repeated invalid tokens")
}
