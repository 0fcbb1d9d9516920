// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はIdPから受け取ったプロフィール文字列（表示名など）から
// HTMLを取り除き、プレーンテキストとして保存できる形に整える。
// bluemondayのStrictPolicyを使い、タグは全て除去される。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameLength は表示名として保存する最大文字数（rune単位）。
const MaxDisplayNameLength = 120

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// SanitizeText はHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 結果が空になった場合は空文字列を返す。同一入力に対して常に同一出力を返す。
	SanitizeText(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
	maxLen int
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
		maxLen: MaxDisplayNameLength,
	}
}

// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyの出力はHTMLエスケープ済みのため、保存前にアンエスケープする。
// JSONとして返す値であり、HTMLへの出力時はテンプレート側でエスケープされる。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) > s.maxLen {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:s.maxLen]))
	}
	return cleaned
}
