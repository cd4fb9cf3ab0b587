package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/licensegate/licensegate/internal/security"

	"github.com/gin-gonic/gin"
)

func newTestRouter(middleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", middleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return engine
}

func doGet(engine *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthMiddleware(t *testing.T) {
	t.Parallel()

	hash, errHash := security.HashAdminToken("correct-token")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	engine := newTestRouter(AdminAuthMiddleware(hash))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong-token", http.StatusUnauthorized},
		{"valid token", "Bearer correct-token", http.StatusOK},
	}
	for _, tc := range cases {
		if rec := doGet(engine, tc.header); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestAdminAuthMiddlewareUnconfigured(t *testing.T) {
	t.Parallel()

	engine := newTestRouter(AdminAuthMiddleware("  "))
	// Without a configured hash every request is refused, even with a token.
	if rec := doGet(engine, "Bearer anything"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

// stubLimiter denies after a fixed number of allowed calls.
type stubLimiter struct {
	allowed int
	calls   int
}

func (l *stubLimiter) Allow(_ context.Context, _ string) bool {
	l.calls++
	return l.calls <= l.allowed
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{allowed: 2}
	engine := newTestRouter(RateLimitMiddleware(limiter))

	for i := 0; i < 2; i++ {
		if rec := doGet(engine, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := doGet(engine, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareNilLimiter(t *testing.T) {
	t.Parallel()

	engine := newTestRouter(RateLimitMiddleware(nil))
	if rec := doGet(engine, ""); rec.Code != http.StatusOK {
		t.Fatalf("nil limiter must pass through, got %d", rec.Code)
	}
}
