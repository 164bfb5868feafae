package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
	"github.com/hitoshi/siteadmin/internal/user"
)

// tokenSessions はトークンとセッションの対応表でSessionGetterを満たす。
type tokenSessions map[string]*model.SessionView

func (s tokenSessions) GetSession(ctx context.Context, token string) *model.SessionView {
	return s[token]
}

const testCSRFToken = "router-csrf-token"

func newTestRouter(t *testing.T) (http.Handler, *mockUserService) {
	t.Helper()
	return newTestRouterWithProxies(t, nil)
}

func newTestRouterWithProxies(t *testing.T, proxies []netip.Prefix) (http.Handler, *mockUserService) {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		LoginRate:       1,
		LoginBurst:      3,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	users := &mockUserService{
		createUserFn: func(ctx context.Context, actorID string, in user.CreateUserInput, meta model.RequestMeta) (*model.User, error) {
			return sampleUser("created", in.RoleID), nil
		},
		getUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			return sampleUser(userID, permission.RoleViewer), nil
		},
	}

	router := NewRouter(&RouterDeps{
		Sessions: tokenSessions{
			"viewer-token": sessionFor("viewer-1", permission.RoleViewer),
			"admin-token":  sessionFor("admin-1", permission.RoleAdmin),
			"editor-token": sessionFor("editor-1", permission.RoleEditor),
		},
		TrustedProxies:    proxies,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HealthChecker:     fakePinger{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "siteadmin_up 1\n")
		}),
		AuthService: successfulAuth(time.Now().Add(auth.SessionLifetime)),
		UserService: users,
		AuditLogs:   &mockAuditLister{},
		Roles:       &mockRoleLister{},
	})
	return router, users
}

type routeRequest struct {
	method string
	path   string
	token  string
	csrf   bool
	body   string
}

func (rr routeRequest) build() *http.Request {
	var body io.Reader
	if rr.body != "" {
		body = strings.NewReader(rr.body)
	}
	req := httptest.NewRequest(rr.method, rr.path, body)
	if rr.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if rr.token != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: rr.token})
	}
	if rr.csrf {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
		req.Header.Set("X-CSRF-Token", testCSRFToken)
	}
	return req
}

func TestRouter_AccessMatrix(t *testing.T) {
	tests := []struct {
		name         string
		req          routeRequest
		wantStatus   int
		wantLocation string
	}{
		// 公開
		{"health", routeRequest{method: http.MethodGet, path: "/health"}, http.StatusOK, ""},
		{"metrics", routeRequest{method: http.MethodGet, path: "/metrics"}, http.StatusOK, ""},
		{"csrf-token", routeRequest{method: http.MethodGet, path: "/api/csrf-token"}, http.StatusOK, ""},
		{"login画面", routeRequest{method: http.MethodGet, path: "/admin/login"}, http.StatusOK, ""},
		{"権限不足画面", routeRequest{method: http.MethodGet, path: "/admin/unauthorized"}, http.StatusForbidden, ""},

		// 画面
		{"匿名のダッシュボード", routeRequest{method: http.MethodGet, path: "/admin/"}, http.StatusSeeOther, "/admin/login"},
		{"偽造トークンのダッシュボード", routeRequest{method: http.MethodGet, path: "/admin/", token: "forged"}, http.StatusSeeOther, "/admin/login"},
		{"viewerのダッシュボード", routeRequest{method: http.MethodGet, path: "/admin/", token: "viewer-token"}, http.StatusOK, ""},
		{"スラッシュ無し", routeRequest{method: http.MethodGet, path: "/admin"}, http.StatusMovedPermanently, "/admin/"},

		// API
		{"匿名のme", routeRequest{method: http.MethodGet, path: "/admin/api/me"}, http.StatusUnauthorized, ""},
		{"viewerのme", routeRequest{method: http.MethodGet, path: "/admin/api/me", token: "viewer-token"}, http.StatusOK, ""},
		{"viewerのユーザー一覧", routeRequest{method: http.MethodGet, path: "/admin/api/users", token: "viewer-token"}, http.StatusForbidden, ""},
		{"adminのユーザー一覧", routeRequest{method: http.MethodGet, path: "/admin/api/users", token: "admin-token"}, http.StatusOK, ""},
		{"adminのユーザー詳細", routeRequest{method: http.MethodGet, path: "/admin/api/users/" + targetUserID, token: "admin-token"}, http.StatusOK, ""},
		{"adminの不正なユーザーID", routeRequest{method: http.MethodGet, path: "/admin/api/users/u9", token: "admin-token"}, http.StatusNotFound, ""},
		{"editorの監査ログ", routeRequest{method: http.MethodGet, path: "/admin/api/audit-logs", token: "editor-token"}, http.StatusForbidden, ""},
		{"adminの監査ログ", routeRequest{method: http.MethodGet, path: "/admin/api/audit-logs", token: "admin-token"}, http.StatusOK, ""},
		{"adminのロール一覧", routeRequest{method: http.MethodGet, path: "/admin/api/roles", token: "admin-token"}, http.StatusOK, ""},

		// CSRF
		{"CSRF無しのユーザー作成", routeRequest{method: http.MethodPost, path: "/admin/api/users", token: "admin-token",
			body: `{"email":"n@example.com","password":"longenough","name":"N","role_id":"viewer"}`}, http.StatusForbidden, ""},
		{"CSRF有りのユーザー作成", routeRequest{method: http.MethodPost, path: "/admin/api/users", token: "admin-token", csrf: true,
			body: `{"email":"n@example.com","password":"longenough","name":"N","role_id":"viewer"}`}, http.StatusCreated, ""},
		{"viewerのユーザー作成", routeRequest{method: http.MethodPost, path: "/admin/api/users", token: "viewer-token", csrf: true,
			body: `{}`}, http.StatusForbidden, ""},
		{"editorのセッション破棄", routeRequest{method: http.MethodDelete, path: "/admin/api/users/" + targetUserID + "/sessions", token: "editor-token", csrf: true},
			http.StatusForbidden, ""},
		{"adminのセッション破棄", routeRequest{method: http.MethodDelete, path: "/admin/api/users/" + targetUserID + "/sessions", token: "admin-token", csrf: true},
			http.StatusNoContent, ""},
		{"CSRF無しのログアウト", routeRequest{method: http.MethodPost, path: "/admin/logout", token: "viewer-token"}, http.StatusForbidden, ""},
		{"CSRF有りのログアウト", routeRequest{method: http.MethodPost, path: "/admin/logout", token: "viewer-token", csrf: true},
			http.StatusSeeOther, "/admin/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, tt.req.build())

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d (body: %s)", tt.req.method, tt.req.path, w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", w.Header().Get("Location"), tt.wantLocation)
			}
		})
	}
}

// TestRouter_ViewerForbiddenIsNotLoginRedirect は権限不足がログイン画面への誘導にならないことを検証する。
func TestRouter_ViewerForbiddenIsNotLoginRedirect(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, routeRequest{method: http.MethodPost, path: "/admin/api/users", token: "viewer-token", csrf: true, body: `{}`}.build())

	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeForbidden)
}

func TestRouter_LoginIsRateLimitedPerIP(t *testing.T) {
	router, _ := newTestRouter(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := jsonLoginRequest(`{"email":"a@example.com","password":"password123"}`)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
		if i < 3 && last.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, last.Code)
		}
	}

	assertErrorCode(t, last, http.StatusTooManyRequests, model.ErrCodeRateLimitExceeded)
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

// 信頼済みでない接続元がX-Forwarded-Forを変えてもログイン制限は回避できない
func TestRouter_LoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	router, _ := newTestRouter(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := jsonLoginRequest(`{"email":"a@example.com","password":"password123"}`)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i+1))
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
		if i < 3 && last.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, last.Code)
		}
	}

	assertErrorCode(t, last, http.StatusTooManyRequests, model.ErrCodeRateLimitExceeded)
}

// 信頼済みプロキシ経由ではX-Forwarded-Forのクライアント単位で制限する
func TestRouter_LoginRateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	router, _ := newTestRouterWithProxies(t, []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")})

	send := func(client string) *httptest.ResponseRecorder {
		req := jsonLoginRequest(`{"email":"a@example.com","password":"password123"}`)
		req.RemoteAddr = "192.0.2.10:40000"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		if w := send("198.51.100.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	assertErrorCode(t, send("198.51.100.1"), http.StatusTooManyRequests, model.ErrCodeRateLimitExceeded)

	// 別クライアントはプロキシを共有していても独立したバケット
	if w := send("198.51.100.2"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRouter_LoginSetsCookieUsableByGuard(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rl.Stop()

	sessions := tokenSessions{}
	authSvc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
			s := &model.Session{ID: "s1", UserID: "u1", Token: "fresh-token", ExpiresAt: time.Now().Add(auth.SessionLifetime)}
			sessions[s.Token] = sessionFor("u1", permission.RoleViewer)
			return s, nil
		},
	}
	router := NewRouter(&RouterDeps{
		Sessions:    sessions,
		RateLimiter: rl,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService: authSvc,
		UserService: &mockUserService{},
		AuditLogs:   &mockAuditLister{},
		Roles:       &mockRoleLister{},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonLoginRequest(`{"email":"u1@example.com","password":"password123"}`))
	cookie := findCookie(w.Result(), auth.SessionCookieName)
	if cookie == nil {
		t.Fatal("login should set session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("dashboard with fresh cookie status = %d, want 200", w.Code)
	}
}

func TestRouter_SecurityHeadersAndRequestLog(t *testing.T) {
	var logBuf bytes.Buffer
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rl.Stop()

	router := NewRouter(&RouterDeps{
		Sessions:    tokenSessions{"viewer-token": sessionFor("viewer-1", permission.RoleViewer)},
		RateLimiter: rl,
		Logger:      slog.New(slog.NewJSONHandler(&logBuf, nil)),
		AuthService: &mockAuthService{},
		UserService: &mockUserService{},
		AuditLogs:   &mockAuditLister{},
		Roles:       &mockRoleLister{},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, routeRequest{method: http.MethodGet, path: "/admin/api/me", token: "viewer-token"}.build())

	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("security headers missing: %v", w.Header())
	}
	if !strings.Contains(logBuf.String(), `"user_id":"viewer-1"`) {
		t.Errorf("request log should include user_id, got: %s", logBuf.String())
	}
}
