package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		APIRate:         1,
		APIBurst:        2,
		SignInRate:      rate.Limit(10.0 / 60.0),
		SignInBurst:     3,
		CleanupInterval: time.Minute,
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(10, 120)

	if cfg.APIRate != rate.Limit(2) || cfg.APIBurst != 120 {
		t.Errorf("api = %v/%d, want 2/120", cfg.APIRate, cfg.APIBurst)
	}
	if cfg.SignInBurst != 10 {
		t.Errorf("SignInBurst = %d, want 10", cfg.SignInBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig should match 10/120 per minute")
	}
}

func TestRateLimiter_APIMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.APIMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/scenarios", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("user-1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}
	if code := send("user-1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
	// 別ユーザーは独立して制限される
	if code := send("user-2"); code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", code)
	}
	if n := rl.APILimiterCount(); n != 2 {
		t.Errorf("APILimiterCount = %d, want 2", n)
	}
}

func TestRateLimiter_SignInMiddleware_PerIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.SignInMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// ポートが違っても同じIPとして数える
	for i := 0; i < 3; i++ {
		if w := send("203.0.113.5:" + strconv.Itoa(40000+i)); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := send("203.0.113.5:50000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "6" {
		t.Errorf("Retry-After = %q, want 6", got)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"error":"Too many requests"}` {
		t.Errorf("body = %s", body)
	}

	if w := send("198.51.100.7:1234"); w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_APIMiddleware_FallsBackToIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	handler := rl.APIMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/scenarios", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if n := rl.APILimiterCount(); n != 1 {
		t.Errorf("APILimiterCount = %d, want 1", n)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	defer rl.Stop()

	rl.signIn.get("stale")
	rl.signIn.get("fresh")
	rl.signIn.mu.Lock()
	rl.signIn.limiters["stale"].lastAccess = time.Now().Add(-time.Hour)
	rl.signIn.mu.Unlock()

	rl.cleanup()

	if n := rl.SignInLimiterCount(); n != 1 {
		t.Errorf("SignInLimiterCount = %d, want 1", n)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := clientIP(req); got != "2001:db8::1" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "not-an-addr"
	if got := clientIP(req); got != "not-an-addr" {
		t.Errorf("clientIP = %q", got)
	}
}
