package auth

import "strings"

// authPages はサインイン後の遷移先にしてはいけないページ。
var authPages = []string{"/sign-in", "/sign-up"}

// SafeRedirectPath はサインイン後の遷移先として安全なパスを返す。
// サイト内の絶対パス以外（空、相対パス、//host 形式、バックスラッシュを含むもの）や
// 認証ページ自身が指定された場合は "/" を返す。
func SafeRedirectPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	for _, page := range authPages {
		if p == page || strings.HasPrefix(p, page+"/") || strings.HasPrefix(p, page+"?") {
			return "/"
		}
	}
	return p
}
