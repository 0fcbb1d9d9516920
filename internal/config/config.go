package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPublicKeysURL はセッションCookie署名用公開鍵（x509証明書）の配布エンドポイント。
const DefaultPublicKeysURL = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/publicKeys"

// projectIDSources はプロジェクトIDを探す環境変数の優先順位。
// 先に値が見つかったものを採用し、最後にサービスアカウントJSONのproject_idを見る。
var projectIDSources = []string{
	"FIREBASE_PROJECT_ID",
	"NEXT_PUBLIC_FIREBASE_PROJECT_ID",
	"GCP_PROJECT_ID",
}

// ServiceAccount はサーバー側検証器が使うサービスアカウント資格情報。
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// CredentialsJSON はGoogle APIクライアントに渡すサービスアカウントJSONを組み立てる。
func (sa *ServiceAccount) CredentialsJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   sa.ProjectID,
		"client_email": sa.ClientEmail,
		"private_key":  sa.PrivateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider
	ProjectID      string
	ServiceAccount *ServiceAccount // 未設定の場合はnil
	PublicKeysURL  string

	// Session
	KeyFetchTimeout  time.Duration
	AdminCallTimeout time.Duration

	// Rate Limit（req/min）
	RateLimitSignIn int
	RateLimitAPI    int

	// Server
	ServerPort string
	AppEnv     string
	LogLevel   string

	// CORS
	CORSAllowedOrigin string
}

// Production は本番環境で動作しているかを返す。セッションCookieのSecure属性に使う。
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ServiceAccount = resolveServiceAccount()

	cfg.ProjectID = resolveProjectID()
	if cfg.ProjectID == "" {
		missing = append(missing, strings.Join(projectIDSources, "|"))
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// サービスアカウントのproject_idが空ならプロジェクトIDで補う
	if cfg.ServiceAccount != nil && cfg.ServiceAccount.ProjectID == "" {
		cfg.ServiceAccount.ProjectID = cfg.ProjectID
	}

	cfg.PublicKeysURL = getEnvString("PUBLIC_KEYS_URL", DefaultPublicKeysURL)
	cfg.KeyFetchTimeout = getEnvDuration("SESSION_KEY_FETCH_TIMEOUT", 5*time.Second)
	cfg.AdminCallTimeout = getEnvDuration("IDENTITY_PROVIDER_TIMEOUT", 10*time.Second)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.RateLimitAPI = getEnvInt("RATE_LIMIT_API", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// resolveProjectID はprojectIDSourcesを順に参照し、最初に定義された値を返す。
// いずれも未設定の場合はFIREBASE_SERVICE_ACCOUNTのproject_idを使う。
func resolveProjectID() string {
	if v := firstDefined(projectIDSources...); v != "" {
		return v
	}
	return serviceAccountProjectID(os.Getenv("FIREBASE_SERVICE_ACCOUNT"))
}

// serviceAccountProjectID はサービスアカウントJSONからproject_idだけを取り出す。
// 資格情報の項目が欠けていてもプロジェクトIDは使える。
func serviceAccountProjectID(raw string) string {
	if raw == "" {
		return ""
	}
	var parsed struct {
		ProjectID      string `json:"projectId"`
		ProjectIDSnake string `json:"project_id"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ""
	}
	return firstNonEmpty(parsed.ProjectID, parsed.ProjectIDSnake)
}

// resolveServiceAccount はFIREBASE_SERVICE_ACCOUNT（JSON）を優先し、
// 解析できない場合は個別の環境変数から資格情報を組み立てる。
func resolveServiceAccount() *ServiceAccount {
	if sa := parseServiceAccountJSON(os.Getenv("FIREBASE_SERVICE_ACCOUNT")); sa != nil {
		return sa
	}

	clientEmail := os.Getenv("FIREBASE_CLIENT_EMAIL")
	privateKey := normalizePrivateKey(os.Getenv("FIREBASE_PRIVATE_KEY"))
	if clientEmail == "" || privateKey == "" {
		return nil
	}

	return &ServiceAccount{
		ProjectID:   firstDefined(projectIDSources...),
		ClientEmail: clientEmail,
		PrivateKey:  privateKey,
	}
}

// parseServiceAccountJSON はcamelCase・snake_caseどちらのキーも受け付ける。
// 必須項目が欠けている、またはJSONとして不正な場合はnilを返す。
func parseServiceAccountJSON(raw string) *ServiceAccount {
	if raw == "" {
		return nil
	}

	var parsed struct {
		ProjectID        string `json:"projectId"`
		ProjectIDSnake   string `json:"project_id"`
		ClientEmail      string `json:"clientEmail"`
		ClientEmailSnake string `json:"client_email"`
		PrivateKey       string `json:"privateKey"`
		PrivateKeySnake  string `json:"private_key"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	sa := &ServiceAccount{
		ProjectID:   firstNonEmpty(parsed.ProjectID, parsed.ProjectIDSnake),
		ClientEmail: firstNonEmpty(parsed.ClientEmail, parsed.ClientEmailSnake),
		PrivateKey:  normalizePrivateKey(firstNonEmpty(parsed.PrivateKey, parsed.PrivateKeySnake)),
	}
	if sa.ProjectID == "" || sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil
	}
	return sa
}

// normalizePrivateKey は環境変数内のリテラル "\n" を改行に戻す。
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

func firstDefined(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
