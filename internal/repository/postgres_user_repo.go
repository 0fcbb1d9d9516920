package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/protext/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db TxBeginner
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db TxBeginner) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindWithProfile は指定IDのユーザーをプロフィール・利用統計付きで取得する。
func (r *PostgresUserRepo) FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error) {
	return findWithProfile(ctx, r.db, id)
}

// InTx はfnを1つのトランザクション内で実行する。
func (r *PostgresUserRepo) InTx(ctx context.Context, fn func(tx UserTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgUserTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgUserTx はUserTxの*sql.Tx実装。
type pgUserTx struct {
	tx *sql.Tx
}

func (t *pgUserTx) InsertUserIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Email, user.DisplayName, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *pgUserTx) LockUser(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var displayName sql.NullString
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, updated_at
		 FROM users WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&user.ID, &user.Email, &displayName, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	user.DisplayName = stringPtr(displayName)
	return user, nil
}

func (t *pgUserTx) UpdateUser(ctx context.Context, user *model.User) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET email = $2, display_name = $3, updated_at = $4 WHERE id = $1`,
		user.ID, user.Email, user.DisplayName, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (t *pgUserTx) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	var displayName, headline, avatarURL sql.NullString
	var prefs []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, display_name, headline, avatar_url, preferences, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.ID, &p.UserID, &displayName, &headline, &avatarURL, &prefs, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	p.DisplayName = stringPtr(displayName)
	p.Headline = stringPtr(headline)
	p.AvatarURL = stringPtr(avatarURL)
	if p.Preferences, err = decodePreferences(prefs); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *pgUserTx) InsertProfile(ctx context.Context, p *model.Profile) error {
	prefs, err := encodePreferences(p.Preferences)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, display_name, headline, avatar_url, preferences, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.DisplayName, p.Headline, p.AvatarURL, prefs, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (t *pgUserTx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	prefs, err := encodePreferences(p.Preferences)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`UPDATE profiles SET display_name = $2, avatar_url = $3, preferences = $4, updated_at = $5
		 WHERE user_id = $1`,
		p.UserID, p.DisplayName, p.AvatarURL, prefs, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (t *pgUserTx) EnsureAnalytics(ctx context.Context, a *model.Analytics) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO user_analytics (id, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		a.ID, a.UserID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure analytics: %w", err)
	}
	return nil
}

func (t *pgUserTx) FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error) {
	return findWithProfile(ctx, t.tx, id)
}

// findWithProfile はusersにprofilesとuser_analyticsをLEFT JOINして1件取得する。
func findWithProfile(ctx context.Context, q queryer, id string) (*model.UserWithProfile, error) {
	var (
		u                                      model.UserWithProfile
		userDisplayName                        sql.NullString
		profileID, profileUserID               sql.NullString
		profileDisplayName, headline, avatar   sql.NullString
		prefs                                  []byte
		profileCreatedAt, profileUpdatedAt     sql.NullTime
		analyticsID                            sql.NullString
		conversations, completed, badges       sql.NullInt64
		streak                                 sql.NullInt64
		lastActivity                           sql.NullTime
		analyticsCreatedAt, analyticsUpdatedAt sql.NullTime
	)

	err := q.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.display_name, u.created_at, u.updated_at,
		        p.id, p.user_id, p.display_name, p.headline, p.avatar_url, p.preferences, p.created_at, p.updated_at,
		        a.id, a.total_conversations, a.total_scenarios_completed, a.total_badges_earned,
		        a.streak_days, a.last_activity_at, a.created_at, a.updated_at
		 FROM users u
		 LEFT JOIN profiles p ON p.user_id = u.id
		 LEFT JOIN user_analytics a ON a.user_id = u.id
		 WHERE u.id = $1`,
		id,
	).Scan(
		&u.ID, &u.Email, &userDisplayName, &u.CreatedAt, &u.UpdatedAt,
		&profileID, &profileUserID, &profileDisplayName, &headline, &avatar, &prefs, &profileCreatedAt, &profileUpdatedAt,
		&analyticsID, &conversations, &completed, &badges,
		&streak, &lastActivity, &analyticsCreatedAt, &analyticsUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user with profile: %w", err)
	}

	u.DisplayName = stringPtr(userDisplayName)

	if profileID.Valid {
		preferences, err := decodePreferences(prefs)
		if err != nil {
			return nil, err
		}
		u.Profile = &model.Profile{
			ID:          profileID.String,
			UserID:      profileUserID.String,
			DisplayName: stringPtr(profileDisplayName),
			Headline:    stringPtr(headline),
			AvatarURL:   stringPtr(avatar),
			Preferences: preferences,
			CreatedAt:   profileCreatedAt.Time,
			UpdatedAt:   profileUpdatedAt.Time,
		}
	}

	if analyticsID.Valid {
		a := &model.Analytics{
			ID:                      analyticsID.String,
			UserID:                  u.ID,
			TotalConversations:      int(conversations.Int64),
			TotalScenariosCompleted: int(completed.Int64),
			TotalBadgesEarned:       int(badges.Int64),
			StreakDays:              int(streak.Int64),
			CreatedAt:               analyticsCreatedAt.Time,
			UpdatedAt:               analyticsUpdatedAt.Time,
		}
		if lastActivity.Valid {
			t := lastActivity.Time
			a.LastActivityAt = &t
		}
		u.Analytics = a
	}

	return &u, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// encodePreferences はnilをSQLのNULLとして扱う。
// lib/pqは[]byteをbyteaとして送るため、JSONBには文字列で渡す。
func encodePreferences(prefs map[string]any) (any, error) {
	if prefs == nil {
		return nil, nil
	}
	b, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return string(b), nil
}

func decodePreferences(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var prefs map[string]any
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// compile-time interface check
var (
	_ UserRepository = (*PostgresUserRepo)(nil)
	_ UserTx         = (*pgUserTx)(nil)
)
