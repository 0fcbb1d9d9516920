// Package user はIdPの本人情報とローカルのユーザー・プロフィール・利用統計を同期する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/protext/internal/model"
	"github.com/hitoshi/protext/internal/repository"
	"github.com/hitoshi/protext/internal/security"
)

// ErrEmptySubject はuidが空のIdentityを同期しようとした場合のエラー。
var ErrEmptySubject = errors.New("identity subject is empty")

// Synchronizer はサインイン時にローカルレコードを冪等に作成・更新する。
//
// 既存の値は上書きしない。emailだけはIdPが返した実際の値で更新するが、
// uidから組み立てた代替emailで保存済みの値を置き換えることはない。
// ユーザー・プロフィール・利用統計の3つは1トランザクションで書き込まれ、
// 同一ユーザーの同時サインインはユーザー行のロックで直列化される。
type Synchronizer struct {
	repo      repository.UserRepository
	sanitizer security.TextSanitizer
	guard     security.URLGuard
	now       func() time.Time
}

// NewSynchronizer はSynchronizerを生成する。
func NewSynchronizer(repo repository.UserRepository, sanitizer security.TextSanitizer, guard security.URLGuard) *Synchronizer {
	return &Synchronizer{
		repo:      repo,
		sanitizer: sanitizer,
		guard:     guard,
		now:       time.Now,
	}
}

// Sync はIdentityをローカルレコードに反映し、同期後のユーザーを返す。
func (s *Synchronizer) Sync(ctx context.Context, identity model.Identity) (*model.UserWithProfile, error) {
	if identity.UID == "" {
		return nil, ErrEmptySubject
	}

	displayName := optional(s.sanitizer.SanitizeText(identity.DisplayName))
	avatarURL := s.acceptAvatar(identity)
	now := s.now().UTC()

	var synced *model.UserWithProfile
	err := s.repo.InTx(ctx, func(tx repository.UserTx) error {
		created, err := tx.InsertUserIfAbsent(ctx, &model.User{
			ID:          identity.UID,
			Email:       identity.Email,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}

		user, err := tx.LockUser(ctx, identity.UID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s disappeared during sync", identity.UID)
		}

		if !created {
			changed := false
			if !identity.EmailIsPlaceholder && user.Email != identity.Email {
				user.Email = identity.Email
				changed = true
			}
			if user.DisplayName == nil && displayName != nil {
				user.DisplayName = displayName
				changed = true
			}
			if changed {
				user.UpdatedAt = now
				if err := tx.UpdateUser(ctx, user); err != nil {
					return err
				}
			}
		}

		if err := syncProfile(ctx, tx, user.ID, displayName, avatarURL, now); err != nil {
			return err
		}

		if err := tx.EnsureAnalytics(ctx, &model.Analytics{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		synced, err = tx.FindWithProfile(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync user %s: %w", identity.UID, err)
	}
	return synced, nil
}

// Find はローカルユーザーを取得する。存在しない場合は (nil, nil) を返す。
func (s *Synchronizer) Find(ctx context.Context, userID string) (*model.UserWithProfile, error) {
	u, err := s.repo.FindWithProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", userID, err)
	}
	return u, nil
}

// syncProfile はプロフィールが無ければ作成し、あればnullの項目だけを埋める。
func syncProfile(ctx context.Context, tx repository.UserTx, userID string, displayName, avatarURL *string, now time.Time) error {
	profile, err := tx.FindProfile(ctx, userID)
	if err != nil {
		return err
	}

	if profile == nil {
		return tx.InsertProfile(ctx, &model.Profile{
			ID:          uuid.NewString(),
			UserID:      userID,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
			Preferences: DefaultPreferences(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	changed := false
	if profile.DisplayName == nil && displayName != nil {
		profile.DisplayName = displayName
		changed = true
	}
	if profile.AvatarURL == nil && avatarURL != nil {
		profile.AvatarURL = avatarURL
		changed = true
	}
	if profile.Preferences == nil {
		profile.Preferences = DefaultPreferences()
		changed = true
	}
	if !changed {
		return nil
	}

	profile.UpdatedAt = now
	return tx.UpdateProfile(ctx, profile)
}

// acceptAvatar は安全と判断できたプロフィール画像URLだけを返す。
func (s *Synchronizer) acceptAvatar(identity model.Identity) *string {
	if identity.AvatarURL == "" {
		return nil
	}
	if err := s.guard.ValidateURL(identity.AvatarURL); err != nil {
		slog.Warn("discarding avatar url from identity provider",
			slog.String("user_id", identity.UID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &identity.AvatarURL
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
