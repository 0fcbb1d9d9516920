package middleware

import (
	"net/http"
	"path"
	"strings"
)

// RouteClass はリクエストパスの分類。
type RouteClass int

const (
	RoutePublic RouteClass = iota
	RoutePreflight
	RoutePublicAsset
	RouteAuth
	RouteProtectedAPI
	RouteProtectedPage
)

func (c RouteClass) String() string {
	switch c {
	case RoutePreflight:
		return "preflight"
	case RoutePublicAsset:
		return "public-asset"
	case RouteAuth:
		return "auth-route"
	case RouteProtectedAPI:
		return "protected-api"
	case RouteProtectedPage:
		return "protected-app-page"
	default:
		return "unclassified-public"
	}
}

// Protected は認証が必要な分類かを返す。
func (c RouteClass) Protected() bool {
	return c == RouteProtectedAPI || c == RouteProtectedPage
}

// DefaultProtectedPages はログインが必要なアプリケーションページのプレフィックス。
var DefaultProtectedPages = []string{"/practice", "/progress", "/settings"}

// assetPrefixes は認証なしで配信する静的ファイルのパス。
var assetPrefixes = []string{"/_next/", "/static/", "/assets/"}

// ClassifyRoute はmethodとpathだけからリクエストを分類する。Cookieには依存しない。
func ClassifyRoute(method, p string) RouteClass {
	return classifyRoute(method, p, DefaultProtectedPages)
}

// classifyRoute は先に一致した規則を採用する。
func classifyRoute(method, p string, protectedPages []string) RouteClass {
	if method == http.MethodOptions {
		return RoutePreflight
	}
	if isPublicAsset(p) {
		return RoutePublicAsset
	}
	if p == "/api/auth" || strings.HasPrefix(p, "/api/auth/") {
		return RouteAuth
	}
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		return RouteProtectedAPI
	}
	for _, prefix := range protectedPages {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return RouteProtectedPage
		}
	}
	return RoutePublic
}

func isPublicAsset(p string) bool {
	if p == "/favicon.ico" {
		return true
	}
	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	// 拡張子付きのパスは静的ファイルとして扱う
	return path.Ext(path.Base(p)) != ""
}
