// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/protext/internal/model"
)

// UserRepository はユーザー・プロフィール・利用統計の永続化インターフェース。
type UserRepository interface {
	// FindWithProfile は指定IDのユーザーをプロフィール・利用統計付きで取得する。
	// 見つからない場合はnilを返す。
	FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error)

	// InTx はfnを1つのトランザクション内で実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーを返す。
	InTx(ctx context.Context, fn func(tx UserTx) error) error
}

// UserTx はトランザクション内で行うユーザー関連の操作。
// 同一ユーザーに対する同時サインインはLockUserの行ロックで直列化される。
type UserTx interface {
	// InsertUserIfAbsent はユーザーが存在しなければ作成する。作成した場合はtrueを返す。
	InsertUserIfAbsent(ctx context.Context, user *model.User) (bool, error)
	// LockUser はユーザー行をFOR UPDATEで取得する。見つからない場合はnilを返す。
	LockUser(ctx context.Context, id string) (*model.User, error)
	// UpdateUser はemailとdisplay_nameを更新する。
	UpdateUser(ctx context.Context, user *model.User) error

	// FindProfile はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.Profile, error)
	// InsertProfile はプロフィールを作成する。
	InsertProfile(ctx context.Context, profile *model.Profile) error
	// UpdateProfile はdisplay_name・avatar_url・preferencesを更新する。
	UpdateProfile(ctx context.Context, profile *model.Profile) error

	// EnsureAnalytics は利用統計が無ければゼロ値で作成する。既存の行は変更しない。
	EnsureAnalytics(ctx context.Context, analytics *model.Analytics) error

	// FindWithProfile はトランザクション内で結合済みのユーザーを取得する。
	FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error)
}

// queryer は*sql.DBと*sql.Txに共通する読み取り操作。
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
