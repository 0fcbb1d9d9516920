package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	APIRate         rate.Limit    // 保護APIのレート（req/sec、ユーザー単位）
	APIBurst        int           // 保護APIのバーストサイズ
	SignInRate      rate.Limit    // サインインのレート（req/sec、クライアントIP単位）
	SignInBurst     int           // サインインのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は1分あたりの上限値からRateLimiterConfigを組み立てる。
func NewRateLimiterConfig(signInPerMinute, apiPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		APIRate:         rate.Limit(float64(apiPerMinute) / 60.0),
		APIBurst:        apiPerMinute,
		SignInRate:      rate.Limit(float64(signInPerMinute) / 60.0),
		SignInBurst:     signInPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 保護API 120 req/min/user、サインイン 10 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(10, 120)
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterGroup は同じレート設定を共有するリミッターの集合。
type limiterGroup struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	rate     rate.Limit
	burst    int
}

func newLimiterGroup(r rate.Limit, burst int) *limiterGroup {
	return &limiterGroup{limiters: make(map[string]*keyedLimiter), rate: r, burst: burst}
}

func (g *limiterGroup) get(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if kl, ok := g.limiters[key]; ok {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(g.rate, g.burst)
	g.limiters[key] = &keyedLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (g *limiterGroup) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}

func (g *limiterGroup) evict(olderThan time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, kl := range g.limiters {
		if kl.lastAccess.Before(olderThan) {
			delete(g.limiters, key)
		}
	}
}

// RateLimiter はサインインと保護APIのレート制限を管理する。
type RateLimiter struct {
	config RateLimiterConfig
	api    *limiterGroup
	signIn *limiterGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		api:    newLimiterGroup(config.APIRate, config.APIBurst),
		signIn: newLimiterGroup(config.SignInRate, config.SignInBurst),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// APIMiddleware は保護APIのレート制限ミドルウェアを返す。
// ゲートキーパーの後に置き、認証済みユーザーID単位で制限する。
// ユーザーIDが無い場合はクライアントIPで代用する。
func (rl *RateLimiter) APIMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.api, "api", func(r *http.Request) string {
		if userID, err := UserIDFromContext(r.Context()); err == nil {
			return "user:" + userID
		}
		return "ip:" + clientIP(r)
	})
}

// SignInMiddleware はセッション発行のレート制限ミドルウェアを返す。
// 未認証のリクエストが対象のため、クライアントIP単位で制限する。
func (rl *RateLimiter) SignInMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.signIn, "sign_in", clientIP)
}

func (rl *RateLimiter) middleware(group *limiterGroup, limitType string, keyFn func(*http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !group.get(key).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", limitType),
				)
				writeRateLimitResponse(w, group.rate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APILimiterCount は現在管理されている保護APIリミッターのエントリ数を返す。
func (rl *RateLimiter) APILimiterCount() int {
	return rl.api.len()
}

// SignInLimiterCount は現在管理されているサインインリミッターのエントリ数を返す。
func (rl *RateLimiter) SignInLimiterCount() int {
	return rl.signIn.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * rl.config.CleanupInterval)
	rl.api.evict(cutoff)
	rl.signIn.evict(cutoff)
}

// clientIP はRemoteAddrからポートを除いたIPを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteJSONError(w, http.StatusTooManyRequests, "Too many requests")
}
