package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IdentityToken はIdP管理APIで検証済みのトークン（IDトークンまたはセッションCookie）の内容。
type IdentityToken struct {
	UID       string
	Email     string
	Name      string
	Picture   string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any
}

// AdminClient はIdPの管理APIのうち、セッション発行・検証・失効に使う操作。
// 資格情報の検証失敗はAuthenticationError、通信障害はErrUpstreamでラップして返すこと。
type AdminClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*IdentityToken, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// ServerVerifier はサーバー層だけが行う権威的な操作を提供する。
// 管理APIの結果に対しても、エッジ層と同じクレーム検証を通す。
type ServerVerifier struct {
	admin     AdminClient
	projectID string
	timeout   time.Duration
	now       func() time.Time
}

// ServerOption はServerVerifierのオプション。
type ServerOption func(*ServerVerifier)

// WithAdminTimeout は管理API呼び出し1回あたりのタイムアウトを設定する。0以下なら上限を設けない。
func WithAdminTimeout(d time.Duration) ServerOption {
	return func(s *ServerVerifier) {
		s.timeout = d
	}
}

// NewServerVerifier はServerVerifierを生成する。
// adminがnilの場合、各操作はErrConfigurationを返す。
func NewServerVerifier(admin AdminClient, projectID string, opts ...ServerOption) *ServerVerifier {
	s := &ServerVerifier{
		admin:     admin,
		projectID: projectID,
		timeout:   DefaultAdminCallTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampSessionDuration はセッション有効期間を [MinSessionDuration, MaxSessionDuration] に丸める。
func ClampSessionDuration(d time.Duration) time.Duration {
	if d < MinSessionDuration {
		return MinSessionDuration
	}
	if d > MaxSessionDuration {
		return MaxSessionDuration
	}
	return d
}

// VerifyIDToken はクライアントから受け取ったIDトークンを検証する。
func (s *ServerVerifier) VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if idToken == "" {
		return nil, NewAuthenticationError("missing id token", nil)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	token, err := s.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, timedOut(ctx, err)
	}
	if err := s.checkClaims(token, IDTokenIssuer(s.projectID)); err != nil {
		return nil, err
	}
	return token, nil
}

// CreateSessionCookie はIDトークンをセッションCookieに交換する。
// 戻り値は丸め後の有効期間で、Cookieのmax-ageにそのまま使う。
func (s *ServerVerifier) CreateSessionCookie(ctx context.Context, idToken string, requested time.Duration) (string, time.Duration, error) {
	if err := s.ready(); err != nil {
		return "", 0, err
	}
	if idToken == "" {
		return "", 0, NewAuthenticationError("missing id token", nil)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	expiresIn := ClampSessionDuration(requested)
	cookie, err := s.admin.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		return "", 0, timedOut(ctx, err)
	}
	return cookie, expiresIn, nil
}

// VerifySessionCookie はセッションCookieを管理APIで検証する。
// checkRevokedがtrueの場合は失効済みかどうかも確認する（ホットパスでは使わない）。
func (s *ServerVerifier) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*IdentityToken, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if cookie == "" {
		return nil, NewAuthenticationError("missing session cookie", nil)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	token, err := s.admin.VerifySessionCookie(ctx, cookie, checkRevoked)
	if err != nil {
		return nil, timedOut(ctx, err)
	}
	if err := s.checkClaims(token, SessionIssuer(s.projectID)); err != nil {
		return nil, err
	}
	return token, nil
}

// RevokeSessions は対象ユーザーのリフレッシュトークンをすべて失効させる。
func (s *ServerVerifier) RevokeSessions(ctx context.Context, uid string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if uid == "" {
		return errors.New("uid is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.admin.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", timedOut(ctx, err))
	}
	return nil
}

// bound は管理API呼び出し用にタイムアウト付きのcontextを返す。
func (s *ServerVerifier) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// timedOut はタイムアウトで打ち切られた呼び出しのエラーをErrUpstreamとして返す。
// SDKが返したエラーの種類によらず、期限切れならErrUpstreamに分類する。
func timedOut(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%w: identity provider call timed out: %v", ErrUpstream, err)
	}
	return err
}

func (s *ServerVerifier) ready() error {
	if s == nil || s.admin == nil || s.projectID == "" {
		return ErrConfiguration
	}
	return nil
}

// checkClaims は管理APIの検証結果をValidateClaimsに通す。
// 失敗はすべて未認証として扱う。
func (s *ServerVerifier) checkClaims(token *IdentityToken, issuer string) error {
	claims := map[string]any{
		"iss": token.Issuer,
		"aud": token.Audience,
		"sub": token.UID,
		"exp": float64(token.ExpiresAt.Unix()),
	}
	if !token.IssuedAt.IsZero() {
		claims["iat"] = float64(token.IssuedAt.Unix())
	}

	_, err := ValidateClaims(claims, ClaimsExpectation{
		Issuer:           issuer,
		Audience:         s.projectID,
		RefreshThreshold: RefreshThreshold,
	}, s.now())
	if err != nil {
		return NewAuthenticationError("token claims rejected", err)
	}
	return nil
}
