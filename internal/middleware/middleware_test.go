package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/VQCC/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"owner": OwnerID(c)})
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newRouter(Auth("secret"))

	w := do(r, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/x", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := security.GenerateAccessToken("secret", "user-1", time.Minute)
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/x", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"owner":"user-1"}`, w.Body.String())
}

func TestRequireBearer(t *testing.T) {
	r := newRouter(RequireBearer("worker-token"))

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "Bearer worker-token").Code)

	empty := newRouter(RequireBearer(""))
	assert.Equal(t, http.StatusUnauthorized, do(empty, http.MethodGet, "/x", "Bearer ").Code)
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := newRouter(RequestID(), Logger(zerolog.Nop()), Recovery(zerolog.Nop()))

	w := do(r, http.MethodGet, "/x", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = do(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS([]string{"https://app.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}
