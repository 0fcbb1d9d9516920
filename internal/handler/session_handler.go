// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/protext/internal/auth"
	"github.com/hitoshi/protext/internal/middleware"
	"github.com/hitoshi/protext/internal/model"
	"github.com/hitoshi/protext/internal/user"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	SignIn(ctx context.Context, idToken string, remember bool) (*auth.SignInResult, error)
	CurrentUser(ctx context.Context, cookie string) (*model.UserWithProfile, error)
	SignOut(ctx context.Context, cookie string) error
}

// SessionHandler はセッションCookieの発行・参照・破棄を行うHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
	cookies *auth.CookieManager
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface, cookies *auth.CookieManager) *SessionHandler {
	return &SessionHandler{
		service: service,
		cookies: cookies,
	}
}

type signInRequest struct {
	IDToken  string `json:"idToken"`
	Remember bool   `json:"remember"`
}

type userResponse struct {
	User *user.SerializedUser `json:"user"`
}

// SignIn はIDトークンをセッションCookieに交換する。
// POST /api/auth/session
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("failed to parse sign-in payload", slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.IDToken == "" {
		middleware.WriteJSONError(w, http.StatusBadRequest, "Firebase ID token is required")
		return
	}

	result, err := h.service.SignIn(r.Context(), req.IDToken, req.Remember)
	if err != nil {
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) {
			slog.Warn("sign-in rejected", slog.String("error", err.Error()))
			middleware.WriteJSONError(w, authErr.Status, authErr.Message)
			return
		}

		slog.Error("failed to establish session", slog.String("error", err.Error()))
		middleware.WriteJSONError(w, http.StatusInternalServerError, "Unable to establish session")
		return
	}

	h.cookies.Set(w, result.Cookie, result.MaxAge)
	writeJSON(w, http.StatusOK, userResponse{User: user.Serialize(result.User)})
}

// Current は現在のセッションのユーザーを返す。未ログインの場合は {"user": null}。
// GET /api/auth/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	cookie := h.cookies.Read(r)
	if cookie == "" {
		writeJSON(w, http.StatusOK, userResponse{})
		return
	}

	u, err := h.service.CurrentUser(r.Context(), cookie)
	if err != nil {
		// Cookieを消すのは資格情報そのものが拒否された場合だけ。
		// IdPやDBの障害では未認証として応答するが、Cookieは残す。
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) {
			slog.Warn("failed to verify existing session cookie", slog.String("error", err.Error()))
			h.cookies.Clear(w)
		} else {
			slog.Error("session lookup failed",
				slog.Bool("upstream", errors.Is(err, auth.ErrUpstream)),
				slog.String("error", err.Error()),
			)
		}
		writeJSON(w, http.StatusUnauthorized, userResponse{})
		return
	}

	// 検証は通ったがローカルユーザーが存在しない
	if u == nil {
		h.cookies.Clear(w)
		writeJSON(w, http.StatusOK, userResponse{})
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user.Serialize(u)})
}

// SignOut はリフレッシュトークンを失効させ、セッションCookieを削除する。
// 失効に失敗してもCookieは必ず削除し、200を返す。
// DELETE /api/auth/session
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), h.cookies.Read(r)); err != nil {
		slog.Warn("failed to revoke refresh tokens during sign-out", slog.String("error", err.Error()))
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
