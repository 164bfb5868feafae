package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/hitoshi/siteadmin/internal/permission"
)

func TestDashboard_VisibleAreasByRole(t *testing.T) {
	tests := []struct {
		role string
		want []string
	}{
		{permission.RoleViewer, []string{"content", "blog", "leads", "applications", "media"}},
		{permission.RoleSuperAdmin, []string{"content", "blog", "leads", "applications", "media", "users", "settings", "audit"}},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			w := httptest.NewRecorder()
			Dashboard(w, withSession(httptest.NewRequest(http.MethodGet, "/admin/", nil), sessionFor("u1", tt.role)))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var body dashboardResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(body.Areas, tt.want) {
				t.Errorf("areas = %v, want %v", body.Areas, tt.want)
			}
		})
	}
}

func TestDashboard_NoSession_RedirectsToLogin(t *testing.T) {
	w := httptest.NewRecorder()
	Dashboard(w, httptest.NewRequest(http.MethodGet, "/admin/", nil))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin/login" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{"DB正常", fakePinger{}, http.StatusOK},
		{"DB異常", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
		{"チェッカー無し", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checker)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
