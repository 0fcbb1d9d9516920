package model

import "fmt"

// APIError はサービス層からハンドラーへ返す分類済みエラーを表す。
// Messageはそのままレスポンスの error フィールドに出力される。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアント向けメッセージ
	Category string // カテゴリ: auth, validation, scenario, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidBody       = "INVALID_BODY"
	ErrCodeMissingParameters = "MISSING_PARAMETERS"
	ErrCodeScenarioNotFound  = "SCENARIO_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewInvalidBodyError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  "Invalid request body",
		Category: "validation",
	}
}

// NewMissingParametersError は必須パラメータが欠けている場合のエラーを生成する。
func NewMissingParametersError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameters,
		Message:  message,
		Category: "validation",
	}
}

// NewScenarioNotFoundError はシナリオが見つからない場合のエラーを生成する。
func NewScenarioNotFoundError(scenarioID string) *APIError {
	return &APIError{
		Code:     ErrCodeScenarioNotFound,
		Message:  "Scenario not found",
		Category: "scenario",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}
