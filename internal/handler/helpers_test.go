package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// 管理APIのパスで使うユーザーID
const (
	targetUserID  = "5f0c7f3e-2b7a-4a8e-9d1b-1f6a2c3d4e5f"
	missingUserID = "00000000-0000-4000-8000-000000000000"
)

// withSession はリクエストコンテキストにセッションを注入する。
func withSession(r *http.Request, view *model.SessionView) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), view))
}

// sessionFor は指定ロールの権限を持つセッションを生成する。
func sessionFor(userID, roleID string) *model.SessionView {
	var perms []permission.Permission
	for _, def := range permission.DefaultRoles() {
		if def.ID == roleID {
			perms = def.Permissions
		}
	}
	return &model.SessionView{
		SessionID: "session-" + userID,
		User: model.SessionUser{
			ID:          userID,
			Email:       userID + "@example.com",
			Name:        userID,
			RoleID:      roleID,
			RoleName:    roleID,
			Permissions: perms,
			IsActive:    true,
		},
	}
}

type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	if body := decodeError(t, w); body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
