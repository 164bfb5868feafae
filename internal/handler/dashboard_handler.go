package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

type dashboardResponse struct {
	User  sessionUserResponse `json:"user"`
	Areas []string            `json:"areas"`
}

// Dashboard はログインユーザーと閲覧可能な管理領域の一覧を返す。
// GET /admin/
func Dashboard(w http.ResponseWriter, r *http.Request) {
	view := middleware.SessionFromContext(r.Context())
	if view == nil {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		User:  toSessionUserResponse(view),
		Areas: visibleAreas(view),
	})
}

// visibleAreas は":view"権限を持つ管理領域名を権限定義順で返す。
func visibleAreas(view *model.SessionView) []string {
	areas := []string{}
	for _, p := range permission.All() {
		area, action, ok := strings.Cut(string(p), ":")
		if !ok || action != "view" || p == permission.DashboardView {
			continue
		}
		if view.HasPermission(p) {
			areas = append(areas, area)
		}
	}
	return areas
}
