// Package model はドメインモデルを定義する。
package model

import "time"

// User はローカルに永続化されたユーザーを表す。
// IDはIdPのsubject（uid）をそのまま使う。
type User struct {
	ID          string
	Email       string
	DisplayName *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile はUserと1:1のプロフィールを表す。
// Preferencesはデフォルト値に対する疎な上書きで、nilはDB上のNULLを意味する。
type Profile struct {
	ID          string
	UserID      string
	DisplayName *string
	Headline    *string
	AvatarURL   *string
	Preferences map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Analytics はUserと1:1の利用統計を表す。
// 初回ログイン時にゼロ値で作成され、以降のログインでは上書きされない。
type Analytics struct {
	ID                      string
	UserID                  string
	TotalConversations      int
	TotalScenariosCompleted int
	TotalBadgesEarned       int
	StreakDays              int
	LastActivityAt          *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// UserWithProfile はUserにProfileとAnalyticsを結合したもの。
type UserWithProfile struct {
	User
	Profile   *Profile
	Analytics *Analytics
}

// Identity は検証済みIDトークンから得た外部IdPのユーザー情報を表す。
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	AvatarURL   string
	// EmailIsPlaceholder はIdPがemailを返さず、uidから組み立てた代替値であることを示す。
	EmailIsPlaceholder bool
}
