// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// DashboardPath はログイン成功時のリダイレクト先。
const DashboardPath = "/admin/"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error)
	Logout(ctx context.Context, token, userID string, meta model.RequestMeta) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie auth.CookieConfig
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}

// sessionUserResponse はログイン中ユーザーのAPIレスポンス。
type sessionUserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	RoleID      string    `json:"role_id"`
	RoleName    string    `json:"role_name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toSessionUserResponse(view *model.SessionView) sessionUserResponse {
	return sessionUserResponse{
		ID:          view.User.ID,
		Email:       view.User.Email,
		Name:        view.User.Name,
		AvatarURL:   view.User.AvatarURL,
		RoleID:      view.User.RoleID,
		RoleName:    view.User.RoleName,
		Permissions: permission.Strings(view.User.Permissions),
		ExpiresAt:   view.ExpiresAt,
	}
}

// LoginPage はログインフォームの入力項目を返す。
// ログイン済みの場合はダッシュボードへリダイレクトする。
// GET /admin/login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action": middleware.LoginPath,
		"method": http.MethodPost,
		"fields": []string{"email", "password"},
		"error":  r.URL.Query().Get("error"),
	})
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// JSONとHTMLフォームの両方を受け付ける。フォームの場合は結果に応じてリダイレクトする。
// POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := isFormRequest(r)

	var req loginRequest
	if form {
		if err := r.ParseForm(); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("フォームの解析に失敗しました"))
			return
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
	} else if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Authenticate(r.Context(), req.Email, req.Password, middleware.RequestMeta(r))
	if err != nil {
		apiErr, status := loginError(err)
		if form {
			http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape(apiErr.Code), http.StatusSeeOther)
			return
		}
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	auth.SetSessionCookie(w, h.config.Cookie, session)

	if form {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{ExpiresAt: session.ExpiresAt, Redirect: DashboardPath})
}

// loginError は認証エラーをAPIエラーとステータスコードに変換する。
// 未登録メールと誤パスワードは同一のエラーになる。
func loginError(err error) (*model.APIError, int) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return model.NewInvalidCredentialsError(), http.StatusUnauthorized
	case errors.Is(err, model.ErrAccountDeactivated):
		return model.NewAccountDeactivatedError(), http.StatusForbidden
	default:
		slog.Error("login failed", slog.String("error", err.Error()))
		return model.NewInternalError(), http.StatusInternalServerError
	}
}

// Logout はセッションを破棄し、ログイン画面へリダイレクトする。
// 破棄に失敗してもCookieはクリアする。
// POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		userID, _ := middleware.UserIDFromContext(r.Context())
		if err := h.service.Logout(r.Context(), token, userID, middleware.RequestMeta(r)); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	auth.ClearSessionCookie(w, h.config.Cookie)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報と権限を返す。
// GET /admin/api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	view := middleware.SessionFromContext(r.Context())
	if view == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, toSessionUserResponse(view))
}

// Unauthorized は権限不足画面を返す。
// GET /admin/unauthorized
func (h *AuthHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}
