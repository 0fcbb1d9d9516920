package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/protext/internal/auth"
	"github.com/hitoshi/protext/internal/config"
	"github.com/hitoshi/protext/internal/database"
	"github.com/hitoshi/protext/internal/handler"
	"github.com/hitoshi/protext/internal/logger"
	"github.com/hitoshi/protext/internal/metrics"
	"github.com/hitoshi/protext/internal/middleware"
	"github.com/hitoshi/protext/internal/repository"
	"github.com/hitoshi/protext/internal/scenario"
	"github.com/hitoshi/protext/internal/security"
	"github.com/hitoshi/protext/internal/user"
)

const (
	// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
	dbPingTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("env", cfg.AppEnv),
		slog.String("project_id", cfg.ProjectID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 資格情報とDB接続を確認してから全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. IdP管理クライアント。資格情報が無ければ起動しない
	admin, err := newAdminClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 4. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitSignIn, cfg.RateLimitAPI))
	defer limiter.Stop()

	router := handler.NewRouter(newRouterDeps(cfg, db, admin, collector, reg, limiter))

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// チャットのストリーミング応答を打ち切らない長さにする
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newAdminClient はサービスアカウントからIdP管理クライアントを生成する。
// 資格情報が未設定の場合はauth.ErrConfigurationを返す。
func newAdminClient(ctx context.Context, cfg *config.Config) (*auth.FirebaseAdmin, error) {
	if cfg.ServiceAccount == nil {
		return nil, fmt.Errorf("%w: service account credentials are not set", auth.ErrConfiguration)
	}
	credentials, err := cfg.ServiceAccount.CredentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrConfiguration, err)
	}
	return auth.NewFirebaseAdmin(ctx, cfg.ProjectID, credentials)
}

// newRouterDeps はサーバーの依存関係を組み立てる。
func newRouterDeps(
	cfg *config.Config,
	db *sql.DB,
	admin auth.AdminClient,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	limiter *middleware.RateLimiter,
) *handler.RouterDeps {
	guard := security.NewURLGuard()

	// エッジ層: 公開鍵はSSRF防止付きクライアントで取得し、取得結果を計測する
	keys := auth.NewKeyCache(cfg.PublicKeysURL,
		auth.WithHTTPClient(guard.NewSafeClient(cfg.KeyFetchTimeout)),
		auth.WithFetchTimeout(cfg.KeyFetchTimeout),
		auth.WithFetchObserver(collector.RecordKeyFetch),
	)
	edge := auth.NewEdgeVerifier(cfg.ProjectID, auth.WithKeyCache(keys))

	// サーバー層
	synchronizer := user.NewSynchronizer(
		repository.NewPostgresUserRepo(db),
		security.NewTextSanitizer(),
		guard,
	)
	server := auth.NewServerVerifier(admin, cfg.ProjectID, auth.WithAdminTimeout(cfg.AdminCallTimeout))
	service := auth.NewService(server, synchronizer, collector)

	return &handler.RouterDeps{
		Logger:            slog.Default(),
		Recorder:          collector,
		Verifier:          edge,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		SessionService: service,
		Cookies:        auth.NewCookieManager(cfg.Production()),

		Catalog:   scenario.DefaultCatalog(),
		Generator: scenario.NewGenerator(scenario.DefaultSentenceInterval),

		DB:       db,
		Gatherer: gatherer,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
