// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userIDSinkKey はロギングミドルウェアがユーザーIDを受け取るための書き戻し先のキー。
// ロギングはゲートキーパーより外側で動くため、内側で注入された値をコンテキストから読めない。
var userIDSinkKey = contextKey("user_id_sink")

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ゲートキーパーで認証されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// 外側のロギングミドルウェアが書き戻し先を用意していれば、そこにも値を渡す。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if sink, ok := ctx.Value(userIDSinkKey).(*string); ok {
		*sink = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

func withUserIDSink(ctx context.Context, dst *string) context.Context {
	return context.WithValue(ctx, userIDSinkKey, dst)
}
