package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCORSAllowAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("GET", "/api/v1/logs", nil)
	c.Request.Header.Set("Origin", "http://example.com")

	CORS(nil)(c)

	require.False(t, c.IsAborted())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Request-Id", rec.Header().Get("Access-Control-Expose-Headers"))
	require.Equal(t, corsMaxAge, rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodOptions, "/api/v1/logs", nil)
	c.Request.Header.Set("Origin", "http://example.com")

	CORS(nil)(c)

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, corsMethods, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSAllowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := CORS([]string{"http://allowed.example.com", " "})

	rec1 := httptest.NewRecorder()
	c1, _ := gin.CreateTestContext(rec1)
	c1.Request = httptest.NewRequest("GET", "/api/v1/logs", nil)
	c1.Request.Header.Set("Origin", "http://allowed.example.com")
	mw(c1)
	require.Equal(t, "http://allowed.example.com", rec1.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec1.Header().Get("Vary"))

	rec2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(rec2)
	c2.Request = httptest.NewRequest("GET", "/api/v1/logs", nil)
	c2.Request.Header.Set("Origin", "http://denied.example.com")
	mw(c2)
	require.Empty(t, rec2.Header().Get("Access-Control-Allow-Origin"))
}
