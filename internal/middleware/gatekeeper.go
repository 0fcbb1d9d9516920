package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/protext/internal/auth"
	"github.com/hitoshi/protext/internal/metrics"
)

// SessionRefreshHeader は有効期限が近いセッションに付与するレスポンスヘッダー。
const SessionRefreshHeader = "X-Session-Refresh"

// SignInPath は未認証のページアクセスのリダイレクト先。
const SignInPath = "/sign-in"

// Gatekeeper は全リクエストをハンドラーより前に検査し、通過・拒否・リダイレクトを決める。
// 検証で何が起きても500は返さず、拒否として扱う。
type Gatekeeper struct {
	verifier       auth.SessionVerifier
	recorder       metrics.AuthRecorder
	logger         *slog.Logger
	protectedPages []string
}

// GatekeeperOption はGatekeeperの設定を変更する。
type GatekeeperOption func(*Gatekeeper)

// WithRecorder は検証結果の記録先を設定する。
func WithRecorder(recorder metrics.AuthRecorder) GatekeeperOption {
	return func(g *Gatekeeper) { g.recorder = recorder }
}

// WithLogger は拒否理由の出力先を設定する。
func WithLogger(logger *slog.Logger) GatekeeperOption {
	return func(g *Gatekeeper) { g.logger = logger }
}

// WithProtectedPages は保護対象ページのプレフィックスを置き換える。
func WithProtectedPages(prefixes ...string) GatekeeperOption {
	return func(g *Gatekeeper) { g.protectedPages = prefixes }
}

// NewGatekeeper はGatekeeperを生成する。
func NewGatekeeper(verifier auth.SessionVerifier, opts ...GatekeeperOption) *Gatekeeper {
	g := &Gatekeeper{
		verifier:       verifier,
		recorder:       metrics.Nop{},
		logger:         slog.Default(),
		protectedPages: DefaultProtectedPages,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware はゲートキーパーをミドルウェアとして返す。
func (g *Gatekeeper) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// どの分岐でも必ず付与する
		ApplySecurityHeaders(w.Header())

		class := classifyRoute(r.Method, r.URL.Path, g.protectedPages)
		if !class.Protected() {
			next.ServeHTTP(w, r)
			return
		}

		switch res := g.verify(r.Context(), auth.ReadSessionCookie(r)).(type) {
		case auth.Authenticated:
			g.recorder.RecordVerification("edge", "authenticated", "")
			if res.ShouldRefresh {
				w.Header().Set(SessionRefreshHeader, "1")
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), res.Subject)))
		case auth.Unauthenticated:
			g.recorder.RecordVerification("edge", "denied", string(res.Reason))
			g.logDenial(r, class, res)
			g.deny(w, r, class)
		}
	})
}

// verify はpanicも含めて検証の失敗を全てUnauthenticatedに畳み込む。
func (g *Gatekeeper) verify(ctx context.Context, cookie string) (result auth.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = auth.Unauthenticated{Reason: auth.ReasonInternal, Err: fmt.Errorf("panic during verification: %v", rec)}
		}
	}()

	result = g.verifier.Verify(ctx, cookie)
	if result == nil {
		return auth.Unauthenticated{Reason: auth.ReasonInternal, Err: fmt.Errorf("verifier returned no result")}
	}
	return result
}

func (g *Gatekeeper) deny(w http.ResponseWriter, r *http.Request, class RouteClass) {
	if class == RouteProtectedAPI {
		WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	target := SignInPath
	// GET以外は再送できないため戻り先を記録しない
	if r.Method == http.MethodGet {
		target += "?" + url.Values{"redirectTo": {r.URL.Path}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// logDenial は原因をサーバー側のログにだけ残す。
// 上流障害は正当な認証失敗と区別できるようERRORで出力する。
func (g *Gatekeeper) logDenial(r *http.Request, class RouteClass, res auth.Unauthenticated) {
	level := slog.LevelWarn
	switch {
	case res.Reason == auth.ReasonMissing:
		level = slog.LevelDebug
	case res.Upstream():
		level = slog.LevelError
	}

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", class.String()),
		slog.String("reason", string(res.Reason)),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	g.logger.Log(r.Context(), level, "session verification denied", attrs...)
}
