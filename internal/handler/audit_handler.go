package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
	"github.com/hitoshi/siteadmin/internal/repository"
)

// AuditLogLister は監査ログ一覧の取得インターフェース。
type AuditLogLister interface {
	List(ctx context.Context, filter repository.AuditLogFilter) ([]*model.AuditLog, error)
}

// RoleLister はロール一覧の取得インターフェース。
type RoleLister interface {
	List(ctx context.Context) ([]*model.Role, error)
}

// AuditHandler は監査ログとロール参照のHTTPハンドラー。
type AuditHandler struct {
	audit AuditLogLister
	roles RoleLister
}

// NewAuditHandler はAuditHandlerを生成する。
func NewAuditHandler(audit AuditLogLister, roles RoleLister) *AuditHandler {
	return &AuditHandler{audit: audit, roles: roles}
}

type auditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ListAuditLogs は監査ログを新しい順に返す。
// クエリパラメータ: limit（1〜repository.MaxAuditListLimit、省略時はリポジトリの既定値）、user_id
// GET /admin/api/audit-logs
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter := repository.AuditLogFilter{
		UserID: r.URL.Query().Get("user_id"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > repository.MaxAuditListLimit {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(
				fmt.Sprintf("limitは1から%dの整数で指定してください", repository.MaxAuditListLimit)))
			return
		}
		filter.Limit = limit
	}

	logs, err := h.audit.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]auditLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, auditLogResponse{
			ID:         l.ID,
			UserID:     l.UserID,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Before:     l.Before,
			After:      l.After,
			IPAddress:  l.IPAddress,
			UserAgent:  l.UserAgent,
			CreatedAt:  l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": resp})
}

// ListRoles はロールと権限の一覧を返す。
// GET /admin/api/roles
func (h *AuditHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: permission.Strings(role.Permissions),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"roles": resp})
}
