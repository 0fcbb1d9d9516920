package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionVerifier はリクエスト経路でセッションCookieを検証するインターフェース。
// ゲートキーパーはこのインターフェースだけに依存する。
type SessionVerifier interface {
	Verify(ctx context.Context, cookie string) Result
}

// EdgeVerifier はDBにもIdP管理APIにも触れずにセッションCookieを検証する。
// 署名はキャッシュした公開鍵で確認し、クレームはValidateClaimsで確認する。
type EdgeVerifier struct {
	projectID string
	keys      *KeyCache
	threshold time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

// EdgeOption はEdgeVerifierの設定を変更する。
type EdgeOption func(*EdgeVerifier)

// WithKeyCache は公開鍵キャッシュを差し替える。
func WithKeyCache(keys *KeyCache) EdgeOption {
	return func(v *EdgeVerifier) { v.keys = keys }
}

// WithRefreshThreshold はリフレッシュ閾値を変更する。
func WithRefreshThreshold(d time.Duration) EdgeOption {
	return func(v *EdgeVerifier) { v.threshold = d }
}

// WithClock は有効期限判定に使う時計を差し替える。
func WithClock(now func() time.Time) EdgeOption {
	return func(v *EdgeVerifier) { v.now = now }
}

// NewEdgeVerifier はEdgeVerifierを生成する。
func NewEdgeVerifier(projectID string, opts ...EdgeOption) *EdgeVerifier {
	v := &EdgeVerifier{
		projectID: projectID,
		threshold: RefreshThreshold,
		now:       time.Now,
		// exp/iss/audの検証はValidateClaimsに任せ、ここでは署名とアルゴリズムだけを見る
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.keys == nil {
		v.keys = NewKeyCache(DefaultPublicKeysURL)
	}
	return v
}

// Verify はセッションCookieを検証し、結果をResultで返す。
// エラーは返さず、すべての失敗はUnauthenticatedに理由を付けて表す。
func (v *EdgeVerifier) Verify(ctx context.Context, cookie string) Result {
	if v.projectID == "" {
		return Unauthenticated{Reason: ReasonConfiguration, Err: ErrConfiguration}
	}
	if cookie == "" {
		return Unauthenticated{Reason: ReasonMissing}
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(cookie, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrUnknownSigningKey)
		}
		return v.lookupKey(ctx, kid)
	})
	if err != nil {
		return Unauthenticated{Reason: classifyParseError(err), Err: err}
	}

	session, err := ValidateClaims(claims, ClaimsExpectation{
		Issuer:           SessionIssuer(v.projectID),
		Audience:         v.projectID,
		RefreshThreshold: v.threshold,
	}, v.now())
	if err != nil {
		reason := ReasonInvalid
		if errors.Is(err, ErrClaimsExpired) {
			reason = ReasonExpired
		}
		return Unauthenticated{Reason: reason, Err: err}
	}

	return Authenticated{
		Subject:       session.Subject,
		ExpiresAt:     session.ExpiresAt,
		IssuedAt:      session.IssuedAt,
		ShouldRefresh: session.ShouldRefresh,
	}
}

func (v *EdgeVerifier) lookupKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	return v.keys.Key(ctx, kid)
}

// classifyParseError は署名検証段階のエラーを理由に分類する。
func classifyParseError(err error) Reason {
	switch {
	case errors.Is(err, ErrUpstream):
		return ReasonUpstream
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonInvalid
	}
}
