package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// --- モック定義 ---

type mockAuthService struct {
	authenticateFn func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error)
	logoutFn       func(ctx context.Context, token, userID string, meta model.RequestMeta) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password, meta)
	}
	return nil, model.ErrInvalidCredentials
}

func (m *mockAuthService) Logout(ctx context.Context, token, userID string, meta model.RequestMeta) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token, userID, meta)
	}
	return nil
}

func successfulAuth(expiresAt time.Time) *mockAuthService {
	return &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
			return &model.Session{ID: "s-1", UserID: "user-1", Token: "token-abc", ExpiresAt: expiresAt}, nil
		},
	}
}

func jsonLoginRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:4321"
	req.Header.Set("User-Agent", "test-agent")
	return req
}

func formLoginRequest(email, password string) *http.Request {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	return req
}

// --- Login ---

func TestAuthHandler_Login_JSON_Success_SetsSessionCookie(t *testing.T) {
	expiresAt := time.Now().Add(auth.SessionLifetime).UTC().Truncate(time.Second)
	var gotEmail, gotPassword string
	var gotMeta model.RequestMeta
	svc := successfulAuth(expiresAt)
	inner := svc.authenticateFn
	svc.authenticateFn = func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
		gotEmail, gotPassword, gotMeta = email, password, meta
		return inner(ctx, email, password, meta)
	}

	h := NewAuthHandler(svc, AuthHandlerConfig{Cookie: auth.CookieConfig{Secure: true}})
	w := httptest.NewRecorder()

	h.Login(w, jsonLoginRequest(`{"email":"Admin@Example.com","password":"correct horse"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if gotEmail != "Admin@Example.com" || gotPassword != "correct horse" {
		t.Errorf("credentials passed = %q/%q", gotEmail, gotPassword)
	}
	if gotMeta.IPAddress != "203.0.113.9" || gotMeta.UserAgent != "test-agent" {
		t.Errorf("meta = %+v", gotMeta)
	}

	cookie := findCookie(w.Result(), auth.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if cookie.Value != "token-abc" || !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", cookie)
	}
	if !cookie.Expires.Equal(expiresAt) {
		t.Errorf("cookie Expires = %v, want %v", cookie.Expires, expiresAt)
	}

	var body loginResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Redirect != DashboardPath {
		t.Errorf("redirect = %q, want %q", body.Redirect, DashboardPath)
	}
}

func TestAuthHandler_Login_JSON_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"認証情報の誤り", model.ErrInvalidCredentials, http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"無効化アカウント", model.ErrAccountDeactivated, http.StatusForbidden, model.ErrCodeAccountDeactivated},
		{"内部エラー", fmt.Errorf("session create: %w", model.ErrInternal), http.StatusInternalServerError, model.ErrCodeInternal},
		{"想定外のエラー", errors.New("unexpected"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				authenticateFn: func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})
			w := httptest.NewRecorder()

			h.Login(w, jsonLoginRequest(`{"email":"a@example.com","password":"whatever1"}`))

			assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
			if findCookie(w.Result(), auth.SessionCookieName) != nil {
				t.Error("session cookie must not be set on failure")
			}
		})
	}
}

// TestAuthHandler_Login_SameMessageForUnknownAndWrongPassword は
// 原因に関わらず同一の本文が返ることを検証する。
func TestAuthHandler_Login_SameMessageForUnknownAndWrongPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	w1 := httptest.NewRecorder()
	h.Login(w1, jsonLoginRequest(`{"email":"nobody@example.com","password":"x"}`))
	w2 := httptest.NewRecorder()
	h.Login(w2, jsonLoginRequest(`{"email":"admin@example.com","password":"wrong"}`))

	if w1.Body.String() != w2.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", w1.Body.String(), w2.Body.String())
	}
}

func TestAuthHandler_Login_InvalidJSON_Returns400(t *testing.T) {
	called := false
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})
	w := httptest.NewRecorder()

	h.Login(w, jsonLoginRequest(`{"email":`))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
	if called {
		t.Error("Authenticate should not be called for malformed body")
	}
}

func TestAuthHandler_Login_Form_Success_RedirectsToDashboard(t *testing.T) {
	h := NewAuthHandler(successfulAuth(time.Now().Add(time.Hour)), AuthHandlerConfig{})
	w := httptest.NewRecorder()

	h.Login(w, formLoginRequest("admin@example.com", "password123"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != DashboardPath {
		t.Errorf("Location = %q, want %q", loc, DashboardPath)
	}
	if findCookie(w.Result(), auth.SessionCookieName) == nil {
		t.Error("expected session cookie")
	}
}

func TestAuthHandler_Login_Form_Failure_RedirectsWithErrorCode(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
			return nil, model.ErrAccountDeactivated
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})
	w := httptest.NewRecorder()

	h.Login(w, formLoginRequest("disabled@example.com", "password123"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login?error=ACCOUNT_DEACTIVATED" {
		t.Errorf("Location = %q", loc)
	}
}

// --- LoginPage ---

func TestAuthHandler_LoginPage(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	t.Run("匿名はフォーム情報", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.LoginPage(w, httptest.NewRequest(http.MethodGet, "/admin/login?error=INVALID_CREDENTIALS", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["action"] != "/admin/login" || body["error"] != "INVALID_CREDENTIALS" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("ログイン済みはダッシュボードへ", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodGet, "/admin/login", nil), sessionFor("u1", permission.RoleViewer))
		h.LoginPage(w, req)

		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != DashboardPath {
			t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
		}
	})
}

// --- Logout ---

func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var gotToken, gotUserID string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token, userID string, meta model.RequestMeta) error {
			gotToken, gotUserID = token, userID
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "token-xyz"})
	req = withSession(req, sessionFor("user-9", permission.RoleEditor))
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if gotToken != "token-xyz" || gotUserID != "user-9" {
		t.Errorf("Logout(token=%q, userID=%q)", gotToken, gotUserID)
	}
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin/login" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
	cookie := findCookie(w.Result(), auth.SessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("cookie should be cleared, got %+v", cookie)
	}
}

func TestAuthHandler_Logout_NoCookie_SkipsService(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token, userID string, meta model.RequestMeta) error {
			called = true
			return nil
		},
	}
	w := httptest.NewRecorder()

	NewAuthHandler(svc, AuthHandlerConfig{}).Logout(w, httptest.NewRequest(http.MethodPost, "/admin/logout", nil))

	if called {
		t.Error("Logout should not be called without a session cookie")
	}
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
}

func TestAuthHandler_Logout_ServiceError_StillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token, userID string, meta model.RequestMeta) error {
			return fmt.Errorf("delete: %w", model.ErrInternal)
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "token-xyz"})
	w := httptest.NewRecorder()

	NewAuthHandler(svc, AuthHandlerConfig{}).Logout(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if cookie := findCookie(w.Result(), auth.SessionCookieName); cookie == nil || cookie.MaxAge >= 0 {
		t.Error("cookie should be cleared even when logout fails")
	}
}

// --- Me / Unauthorized ---

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Me(w, withSession(httptest.NewRequest(http.MethodGet, "/admin/api/me", nil), sessionFor("user-1", permission.RoleViewer)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body sessionUserResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "user-1" || body.RoleID != permission.RoleViewer {
		t.Errorf("body = %+v", body)
	}
	if len(body.Permissions) != 6 {
		t.Errorf("viewer permissions = %v, want 6", body.Permissions)
	}

	w = httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/admin/api/me", nil))
	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
}

func TestAuthHandler_Unauthorized_Returns403(t *testing.T) {
	w := httptest.NewRecorder()
	NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{}).Unauthorized(w, httptest.NewRequest(http.MethodGet, "/admin/unauthorized", nil))

	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeForbidden)
}
