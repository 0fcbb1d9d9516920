package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/protext/internal/auth"
	"github.com/hitoshi/protext/internal/metrics"
	"github.com/hitoshi/protext/internal/middleware"
	"github.com/hitoshi/protext/internal/scenario"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Recorder          metrics.AuthRecorder
	Verifier          auth.SessionVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// セッション
	SessionService SessionServiceInterface
	Cookies        *auth.CookieManager

	// シナリオ
	Catalog   *scenario.Catalog
	Generator *scenario.Generator

	// 運用
	DB       DBPinger
	Gatherer prometheus.Gatherer // nilの場合 /metrics は公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Gatekeeper → CORS
//
// 保護対象の判定はGatekeeperがパスから行うため、ルート定義側では認証を意識しない。
// /api/auth/* と /api/* 以外はレート制限の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	cookies := deps.Cookies
	if cookies == nil {
		cookies = auth.NewCookieManager(false)
	}

	gatekeeper := middleware.NewGatekeeper(deps.Verifier,
		middleware.WithRecorder(recorder),
		middleware.WithLogger(logger),
	)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, recorder))
	r.Use(gatekeeper.Middleware)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.SessionService, cookies)
	scenarioHandler := NewScenarioHandler(deps.Catalog, deps.Generator)
	pageHandler := NewPageHandler()
	healthHandler := NewHealthHandler(deps.DB)

	// --- 運用 ---
	r.Get("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- ページ ---
	r.Get("/", pageHandler.Home)
	r.Get("/sign-in", pageHandler.SignIn)
	r.Get("/sign-up", pageHandler.SignUp)
	r.Get("/practice", pageHandler.Practice)
	r.Get("/practice/*", pageHandler.Practice)
	r.Get("/progress", pageHandler.Progress)
	r.Get("/progress/*", pageHandler.Progress)
	r.Get("/settings", pageHandler.Settings)
	r.Get("/settings/*", pageHandler.Settings)

	// --- セッション（認証不要） ---
	r.Route("/api/auth/session", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.SignInMiddleware()).Post("/", sessionHandler.SignIn)
		} else {
			r.Post("/", sessionHandler.SignIn)
		}
		r.Get("/", sessionHandler.Current)
		r.Delete("/", sessionHandler.SignOut)
	})

	// --- 認証が必要なAPI ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.APIMiddleware())
		}

		r.Get("/api/scenarios", scenarioHandler.List)
		r.Post("/api/evaluate", scenarioHandler.Evaluate)
		r.Post("/api/chat/generate", scenarioHandler.Generate)
	})

	// 未定義のAPIもJSONで返す
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSONError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
