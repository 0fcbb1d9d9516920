package user

import (
	"maps"
	"time"

	"github.com/hitoshi/protext/internal/model"
)

// DefaultPreferences はプロフィール設定のデフォルト値を返す。
// 呼び出しごとに新しいmapを返すので、呼び出し側で変更してよい。
func DefaultPreferences() map[string]any {
	return map[string]any{
		"theme":                "system",
		"practiceTips":         true,
		"rememberLastScenario": true,
	}
}

// MergePreferences はデフォルト値に保存済みの上書きを重ねた設定を返す。storedは変更しない。
func MergePreferences(stored map[string]any) map[string]any {
	merged := DefaultPreferences()
	maps.Copy(merged, stored)
	return merged
}

// SerializedUser はAPIレスポンス用のユーザー表現。
type SerializedUser struct {
	ID          string               `json:"id"`
	Email       string               `json:"email"`
	DisplayName *string              `json:"displayName"`
	Profile     *SerializedProfile   `json:"profile"`
	Analytics   *SerializedAnalytics `json:"analytics"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// SerializedProfile はAPIレスポンス用のプロフィール表現。
type SerializedProfile struct {
	DisplayName *string        `json:"displayName"`
	Headline    *string        `json:"headline"`
	AvatarURL   *string        `json:"avatarUrl"`
	Preferences map[string]any `json:"preferences"`
}

// SerializedAnalytics はAPIレスポンス用の利用統計表現。
type SerializedAnalytics struct {
	TotalConversations      int        `json:"totalConversations"`
	TotalScenariosCompleted int        `json:"totalScenariosCompleted"`
	TotalBadgesEarned       int        `json:"totalBadgesEarned"`
	StreakDays              int        `json:"streakDays"`
	LastActivityAt          *time.Time `json:"lastActivityAt"`
}

// Serialize はUserWithProfileをレスポンス用に変換する。uがnilならnilを返す。
// プロフィールが無いユーザーでもpreferencesはデフォルト値で埋める。
func Serialize(u *model.UserWithProfile) *SerializedUser {
	if u == nil {
		return nil
	}

	out := &SerializedUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Profile:     &SerializedProfile{Preferences: DefaultPreferences()},
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}

	if p := u.Profile; p != nil {
		out.Profile = &SerializedProfile{
			DisplayName: p.DisplayName,
			Headline:    p.Headline,
			AvatarURL:   p.AvatarURL,
			Preferences: MergePreferences(p.Preferences),
		}
	}

	if a := u.Analytics; a != nil {
		out.Analytics = &SerializedAnalytics{
			TotalConversations:      a.TotalConversations,
			TotalScenariosCompleted: a.TotalScenariosCompleted,
			TotalBadgesEarned:       a.TotalBadgesEarned,
			StreakDays:              a.StreakDays,
			LastActivityAt:          a.LastActivityAt,
		}
	}
	return out
}
