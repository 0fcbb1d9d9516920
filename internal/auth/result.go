package auth

import "time"

// Reason は検証に失敗した理由の分類。ログとメトリクスのラベルに使い、クライアントには返さない。
type Reason string

const (
	ReasonMissing       Reason = "missing"
	ReasonMalformed     Reason = "malformed"
	ReasonExpired       Reason = "expired"
	ReasonInvalid       Reason = "invalid"
	ReasonRevoked       Reason = "revoked"
	ReasonUpstream      Reason = "upstream"
	ReasonConfiguration Reason = "configuration"
	ReasonInternal      Reason = "internal"
)

// Result はセッション検証の結果。Authenticated か Unauthenticated のどちらか。
type Result interface {
	isResult()
}

// Authenticated は検証に成功したセッションを表す。
type Authenticated struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	// ShouldRefresh は有効期限がリフレッシュ閾値以内に迫っていることを示す。
	ShouldRefresh bool
}

// Unauthenticated は検証に失敗したことを表す。Errはサーバー側のログ専用。
type Unauthenticated struct {
	Reason Reason
	Err    error
}

func (Authenticated) isResult()   {}
func (Unauthenticated) isResult() {}

// Upstream は失敗が資格情報ではなく上流障害・設定不備に起因するかを返す。
func (u Unauthenticated) Upstream() bool {
	return u.Reason == ReasonUpstream || u.Reason == ReasonConfiguration || u.Reason == ReasonInternal
}
