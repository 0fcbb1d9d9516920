package auth

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"google.golang.org/api/option"
)

// FirebaseAdmin はFirebase Admin SDKをAdminClientとして使うアダプター。
type FirebaseAdmin struct {
	client *fbauth.Client
}

// NewFirebaseAdmin はサービスアカウントJSONからFirebaseAdminを生成する。
// プロジェクトIDまたは資格情報が無い場合はErrConfigurationを返す。
func NewFirebaseAdmin(ctx context.Context, projectID string, credentialsJSON []byte) (*FirebaseAdmin, error) {
	if projectID == "" || len(credentialsJSON) == 0 {
		return nil, ErrConfiguration
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &FirebaseAdmin{client: client}, nil
}

// VerifyIDToken はIDトークンを検証する。
func (f *FirebaseAdmin) VerifyIDToken(ctx context.Context, idToken string) (*IdentityToken, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, mapFirebaseError("verify id token", err)
	}
	return toIdentityToken(token), nil
}

// SessionCookie はIDトークンからセッションCookieを発行する。
func (f *FirebaseAdmin) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	cookie, err := f.client.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		return "", mapFirebaseError("create session cookie", err)
	}
	return cookie, nil
}

// VerifySessionCookie はセッションCookieを検証する。
func (f *FirebaseAdmin) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*IdentityToken, error) {
	var (
		token *fbauth.Token
		err   error
	)
	if checkRevoked {
		token, err = f.client.VerifySessionCookieAndCheckRevoked(ctx, cookie)
	} else {
		token, err = f.client.VerifySessionCookie(ctx, cookie)
	}
	if err != nil {
		return nil, mapFirebaseError("verify session cookie", err)
	}
	return toIdentityToken(token), nil
}

// RevokeRefreshTokens はユーザーのリフレッシュトークンを失効させる。
func (f *FirebaseAdmin) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if err := f.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return mapFirebaseError("revoke refresh tokens", err)
	}
	return nil
}

func toIdentityToken(token *fbauth.Token) *IdentityToken {
	it := &IdentityToken{
		UID:       token.UID,
		Issuer:    token.Issuer,
		Audience:  token.Audience,
		IssuedAt:  time.Unix(token.IssuedAt, 0),
		ExpiresAt: time.Unix(token.Expires, 0),
		Claims:    token.Claims,
	}
	if it.UID == "" {
		it.UID = token.Subject
	}
	it.Email, _ = token.Claims["email"].(string)
	it.Name, _ = token.Claims["name"].(string)
	it.Picture, _ = token.Claims["picture"].(string)
	return it
}

// mapFirebaseError はSDKのエラーを未認証・上流障害のどちらかに分類する。
func mapFirebaseError(op string, err error) error {
	if fbauth.IsCertificateFetchFailed(err) {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	if isCredentialRejected(err) {
		return NewAuthenticationError(op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

func isCredentialRejected(err error) bool {
	return fbauth.IsIDTokenInvalid(err) ||
		fbauth.IsIDTokenExpired(err) ||
		fbauth.IsIDTokenRevoked(err) ||
		fbauth.IsSessionCookieInvalid(err) ||
		fbauth.IsSessionCookieExpired(err) ||
		fbauth.IsSessionCookieRevoked(err) ||
		fbauth.IsUserDisabled(err) ||
		fbauth.IsUserNotFound(err) ||
		errorutils.IsInvalidArgument(err) ||
		errorutils.IsUnauthenticated(err)
}
