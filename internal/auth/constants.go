package auth

import "time"

// セッションCookieとその有効期間に関する定数。
const (
	// SessionCookieName はセッションCookieの名前。
	SessionCookieName = "ctotextpro_session"

	// DefaultSessionDuration は通常サインイン時のセッション有効期間。
	DefaultSessionDuration = 5 * 24 * time.Hour
	// RememberSessionDuration は「ログイン状態を保持」選択時のセッション有効期間。
	RememberSessionDuration = 14 * 24 * time.Hour
	// RefreshThreshold は有効期限までの残り時間がこれ以下になったら再発行を促す閾値。
	RefreshThreshold = 12 * time.Hour

	// MinSessionDuration と MaxSessionDuration はIdPが受け付けるセッション有効期間の範囲。
	MinSessionDuration = 5 * time.Minute
	MaxSessionDuration = 14 * 24 * time.Hour
)

// 公開鍵キャッシュに関する定数。
const (
	// DefaultPublicKeysURL はセッションCookie署名用のx509証明書の配布エンドポイント。
	DefaultPublicKeysURL = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/publicKeys"
	// DefaultKeyCacheTTL はCache-Controlにmax-ageが無い場合のキャッシュ期間。
	DefaultKeyCacheTTL = time.Hour
	// DefaultKeyFetchTimeout は公開鍵セット取得のタイムアウト。
	DefaultKeyFetchTimeout = 5 * time.Second
	// DefaultAdminCallTimeout はIdP管理APIへの1回の呼び出しのタイムアウト。
	DefaultAdminCallTimeout = 10 * time.Second
)

// SessionIssuer はセッションCookieの発行者（iss）を返す。
func SessionIssuer(projectID string) string {
	return "https://session.firebase.google.com/" + projectID
}

// IDTokenIssuer はIDトークンの発行者（iss）を返す。
func IDTokenIssuer(projectID string) string {
	return "https://securetoken.google.com/" + projectID
}
