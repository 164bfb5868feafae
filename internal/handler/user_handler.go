package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	InitialSetup(ctx context.Context, in user.SetupInput, meta model.RequestMeta) (*model.User, error)
	CreateUser(ctx context.Context, actorID string, in user.CreateUserInput, meta model.RequestMeta) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	SetActive(ctx context.Context, actorID, userID string, active bool, meta model.RequestMeta) (*model.User, error)
	ChangeRole(ctx context.Context, actorID, userID, roleID string, meta model.RequestMeta) (*model.User, error)
	// ChangePassword は成功時に本人の全セッションを破棄する。
	ChangePassword(ctx context.Context, userID, current, next string, meta model.RequestMeta) error
	UpdateProfile(ctx context.Context, userID, name, avatarURL string, meta model.RequestMeta) (*model.User, error)
	RevokeSessions(ctx context.Context, actorID, userID string, meta model.RequestMeta) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookie  auth.CookieConfig
}

// NewUserHandler はUserHandlerを生成する。
// cookieはパスワード変更後のセッションCookie削除に使う。
func NewUserHandler(service UserServiceInterface, cookie auth.CookieConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookie:  cookie,
	}
}

type setupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	RoleID   string `json:"role_id"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type changeRoleRequest struct {
	RoleID string `json:"role_id"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type updateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Setup はユーザーが存在しない場合に最初のsuper_adminを作成する。
// POST /admin/setup
func (h *UserHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.InitialSetup(r.Context(), user.SetupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, middleware.RequestMeta(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// ListUsers はユーザー一覧を返す。
// GET /admin/api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}

// CreateUser はユーザーを作成する。
// POST /admin/api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.CreateUser(r.Context(), actorID, user.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		RoleID:   req.RoleID,
	}, middleware.RequestMeta(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// GetUser はユーザー詳細を返す。
// GET /admin/api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// SetActive はユーザーの有効・無効を切り替える。
// PUT /admin/api/users/{id}/active
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req setActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("activeは必須です"))
		return
	}

	u, err := h.service.SetActive(r.Context(), actorID, userID, *req.Active, middleware.RequestMeta(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ChangeRole はユーザーのロールを変更する。
// PUT /admin/api/users/{id}/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.ChangeRole(r.Context(), actorID, userID, req.RoleID, middleware.RequestMeta(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// RevokeSessions はユーザーの全セッションを破棄する。
// DELETE /admin/api/users/{id}/sessions
func (h *UserHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeSessions(r.Context(), actorID, userID, middleware.RequestMeta(r)); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword はログインユーザー自身のパスワードを変更する。
// 全セッションが破棄されるため、Cookieもクリアして再ログインを促す。
// PUT /admin/api/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, middleware.RequestMeta(r)); err != nil {
		handleServiceError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProfile はログインユーザー自身の表示名とアバターを更新する。
// PATCH /admin/api/me/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.AvatarURL, middleware.RequestMeta(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// actorFromRequest はセッションのユーザーIDを取得する。無い場合は401を書き込む。
// userIDParam はパスの{id}をUUIDとして解釈する。
// UUIDでない値は存在しないユーザーとして404を書き込み、falseを返す。
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return "", false
	}
	return id.String(), true
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}
