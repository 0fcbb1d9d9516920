package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthenticationError は「利用者が未認証である」ことを表すエラー。
// 設定不備や上流障害とは区別され、HTTPステータスを保持する。
type AuthenticationError struct {
	Status  int
	Message string
	Err     error
}

// NewAuthenticationError は401のAuthenticationErrorを生成する。
func NewAuthenticationError(message string, cause error) *AuthenticationError {
	return &AuthenticationError{Status: http.StatusUnauthorized, Message: message, Err: cause}
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthenticationError はerrがAuthenticationErrorを含むかを返す。
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

var (
	// ErrConfiguration はプロジェクトIDやサービスアカウントが未設定であることを示す。
	ErrConfiguration = errors.New("identity provider is not configured")
	// ErrUpstream は公開鍵エンドポイントやIdP管理APIへの通信に失敗したことを示す。
	ErrUpstream = errors.New("identity provider unavailable")
)

// クレーム検証で返すエラー。
var (
	ErrClaimsIssuer      = errors.New("unexpected issuer")
	ErrClaimsAudience    = errors.New("unexpected audience")
	ErrClaimsExpiry      = errors.New("missing or invalid exp claim")
	ErrClaimsExpired     = errors.New("credential has expired")
	ErrClaimsSubject     = errors.New("missing subject claim")
	ErrUnknownSigningKey = errors.New("unknown signing key")
)
