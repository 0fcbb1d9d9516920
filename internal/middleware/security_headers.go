package middleware

import "net/http"

// securityHeaders は全レスポンスに付与するヘッダー。値は固定で設定では変更できない。
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:; font-src 'self' data:; connect-src 'self'; frame-ancestors 'self'"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// ApplySecurityHeaders はセキュリティ関連のレスポンスヘッダーを設定する。
// WriteHeaderより前に呼ぶ必要がある。何度呼んでも結果は同じ。
func ApplySecurityHeaders(h http.Header) {
	for _, kv := range securityHeaders {
		h.Set(kv[0], kv[1])
	}
}
