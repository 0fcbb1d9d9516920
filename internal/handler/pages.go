package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"path"

	"github.com/hitoshi/protext/internal/auth"
	"github.com/hitoshi/protext/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// page はHTMLシェルに埋め込む値。画面の描画自体はクライアント側が行う。
type page struct {
	Title      string
	Heading    string
	Protected  bool
	RedirectTo string
}

// PageHandler はアプリケーションページのHTMLシェルを返すハンドラー。
type PageHandler struct{}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Home はトップページ。
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{Title: "ProText Coach", Heading: "Practice professional conversations"})
}

// SignIn はサインインページ。redirectToは安全なサイト内パスに丸めて埋め込む。
func (h *PageHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{
		Title:      "Sign in | ProText Coach",
		Heading:    "Sign in",
		RedirectTo: auth.SafeRedirectPath(r.URL.Query().Get("redirectTo")),
	})
}

// SignUp はアカウント作成ページ。
func (h *PageHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{
		Title:      "Sign up | ProText Coach",
		Heading:    "Create your account",
		RedirectTo: auth.SafeRedirectPath(r.URL.Query().Get("redirectTo")),
	})
}

// Practice は練習ページ。ゲートキーパーで保護される。
func (h *PageHandler) Practice(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{Title: "Practice | ProText Coach", Heading: "Practice", Protected: true})
}

// Progress は進捗ページ。ゲートキーパーで保護される。
func (h *PageHandler) Progress(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{Title: "Progress | ProText Coach", Heading: "Your progress", Protected: true})
}

// Settings は設定ページ。ゲートキーパーで保護される。
func (h *PageHandler) Settings(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, page{Title: "Settings | ProText Coach", Heading: "Settings", Protected: true})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, p page) {
	// 拡張子付きのパスは静的ファイル扱いで認証を通らないため、保護ページのシェルは返さない
	if p.Protected && path.Ext(path.Base(r.URL.Path)) != "" {
		middleware.WriteJSONError(w, http.StatusNotFound, "Not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if p.Protected {
		w.Header().Set("Cache-Control", "no-store")
	}
	if err := pageTemplate.Execute(w, p); err != nil {
		slog.Error("failed to render page", slog.String("title", p.Title), slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
