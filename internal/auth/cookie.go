package auth

import (
	"net/http"
	"time"
)

// CookieManager はセッションCookieの読み書きを行う。
// SetとClearは同じ属性を使う。属性が一致しないとブラウザによっては削除されない。
type CookieManager struct {
	Secure bool
}

// NewCookieManager はCookieManagerを生成する。本番環境ではsecureをtrueにする。
func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{Secure: secure}
}

// Set はセッションCookieをレスポンスに設定する。max-ageは秒に切り捨てる。
func (m *CookieManager) Set(w http.ResponseWriter, value string, maxAge time.Duration) {
	c := m.base()
	c.Value = value
	c.MaxAge = int(maxAge / time.Second)
	http.SetCookie(w, c)
}

// Clear はセッションCookieを削除する。Max-Age=0 と空の値を送る。
func (m *CookieManager) Clear(w http.ResponseWriter) {
	c := m.base()
	c.Value = ""
	// net/httpではMaxAge<0が "Max-Age=0" として出力される
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// Read はリクエストからセッションCookieの値を取り出す。無い場合は空文字を返す。
func (m *CookieManager) Read(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *CookieManager) base() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ReadSessionCookie はCookieManagerを介さずにセッションCookieの値を取り出す。
func ReadSessionCookie(r *http.Request) string {
	return (&CookieManager{}).Read(r)
}
