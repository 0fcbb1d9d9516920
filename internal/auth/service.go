// Package auth はセッションCookieの発行・検証・失効と、その前提となる公開鍵キャッシュを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/protext/internal/metrics"
	"github.com/hitoshi/protext/internal/model"
)

// fallbackEmailDomain はIDトークンにemailが無い場合に使うドメイン。
const fallbackEmailDomain = "users.firebaseapp.local"

// UserStore はサインイン時のローカルユーザー同期と参照を行う。
type UserStore interface {
	Sync(ctx context.Context, identity model.Identity) (*model.UserWithProfile, error)
	Find(ctx context.Context, userID string) (*model.UserWithProfile, error)
}

// SignInResult はサインイン成功時の結果。
type SignInResult struct {
	User   *model.UserWithProfile
	Cookie string
	MaxAge time.Duration
}

// Service はセッションAPIのビジネスロジックを提供する。
type Service struct {
	verifier *ServerVerifier
	users    UserStore
	recorder metrics.AuthRecorder
}

// NewService はServiceを生成する。recorderがnilの場合は計測しない。
func NewService(verifier *ServerVerifier, users UserStore, recorder metrics.AuthRecorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{verifier: verifier, users: users, recorder: recorder}
}

// SignIn はIDトークンを検証してローカルユーザーを同期し、セッションCookieを発行する。
// rememberがtrueの場合は長期セッションにする。
func (s *Service) SignIn(ctx context.Context, idToken string, remember bool) (*SignInResult, error) {
	token, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.recordSignIn(err)
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	user, err := s.users.Sync(ctx, IdentityFromToken(token))
	if err != nil {
		s.recordSignIn(err)
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}

	requested := DefaultSessionDuration
	if remember {
		requested = RememberSessionDuration
	}

	cookie, maxAge, err := s.verifier.CreateSessionCookie(ctx, idToken, requested)
	if err != nil {
		s.recordSignIn(err)
		return nil, fmt.Errorf("failed to create session cookie: %w", err)
	}

	s.recorder.RecordSignIn("success")
	slog.Info("session established",
		slog.String("user_id", user.ID),
		slog.Bool("remember", remember),
	)

	return &SignInResult{User: user, Cookie: cookie, MaxAge: maxAge}, nil
}

// CurrentUser はセッションCookieから現在のユーザーを返す。
// ローカルユーザーが存在しない場合は (nil, nil) を返す。
// 失効確認は行わない（ページ表示ごとに呼ばれるため）。
func (s *Service) CurrentUser(ctx context.Context, cookie string) (*model.UserWithProfile, error) {
	token, err := s.verifier.VerifySessionCookie(ctx, cookie, false)
	if err != nil {
		s.recorder.RecordVerification("server", "denied", string(reasonFor(err)))
		return nil, fmt.Errorf("failed to verify session cookie: %w", err)
	}
	s.recorder.RecordVerification("server", "authenticated", "")

	user, err := s.users.Find(ctx, token.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// SignOut はセッションCookieの持ち主のリフレッシュトークンを失効させる。
// 失敗してもCookieの削除は呼び出し側で必ず行う。戻り値はログ用。
func (s *Service) SignOut(ctx context.Context, cookie string) error {
	if cookie == "" {
		return nil
	}

	token, err := s.verifier.VerifySessionCookie(ctx, cookie, false)
	if err != nil {
		s.recorder.RecordRevocationFailure()
		return fmt.Errorf("failed to verify session cookie: %w", err)
	}

	if err := s.verifier.RevokeSessions(ctx, token.UID); err != nil {
		s.recorder.RecordRevocationFailure()
		return err
	}

	slog.Info("sessions revoked", slog.String("user_id", token.UID))
	return nil
}

func (s *Service) recordSignIn(err error) {
	s.recorder.RecordSignIn(string(reasonFor(err)))
}

// IdentityFromToken は検証済みIDトークンからローカル同期用のIdentityを組み立てる。
// emailが無い場合は <uid>@users.firebaseapp.local、
// 表示名が無い場合はemailのローカル部、それも無ければuidを使う。
func IdentityFromToken(token *IdentityToken) model.Identity {
	email := token.Email
	placeholder := email == ""
	if placeholder {
		email = token.UID + "@" + fallbackEmailDomain
	}

	displayName := token.Name
	if displayName == "" {
		if local, _, found := strings.Cut(token.Email, "@"); found && local != "" {
			displayName = local
		} else {
			displayName = token.UID
		}
	}

	return model.Identity{
		UID:         token.UID,
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   token.Picture,

		EmailIsPlaceholder: placeholder,
	}
}

// reasonFor はサーバー層のエラーをReasonに分類する。
func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return ReasonConfiguration
	case errors.Is(err, ErrUpstream):
		return ReasonUpstream
	case IsAuthenticationError(err):
		return ReasonInvalid
	default:
		return ReasonInternal
	}
}
