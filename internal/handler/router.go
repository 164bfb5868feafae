package handler

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/middleware"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionGetter
	TrustedProxies    []netip.Prefix // X-Forwarded-Forを信頼する接続元。空なら参照しない
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver // nilの場合は記録しない

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない

	// 認証
	AuthService AuthServiceInterface
	Cookie      auth.CookieConfig

	// ユーザー・監査
	UserService UserServiceInterface
	AuditLogs   AuditLogLister
	Roles       RoleLister
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → TrustedProxy → SecurityHeaders → CORS → LoadSession → Logging
//
// LoadSessionはCookieが無いリクエストではDBにアクセスしない。
// 認可はルートごとにRequirePermission / RequireAPIPermissionで行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewTrustedProxyMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.LoadSession(deps.Sessions))

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))

	csrf := middleware.NewCSRFMiddleware(deps.CSRF)
	loginLimit := deps.RateLimiter.LoginMiddleware()

	authHandler := NewAuthHandler(deps.AuthService, AuthHandlerConfig{Cookie: deps.Cookie})
	userHandler := NewUserHandler(deps.UserService, deps.Cookie)
	auditHandler := NewAuditHandler(deps.AuditLogs, deps.Roles)

	// --- 公開ルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

	r.Get("/admin/login", authHandler.LoginPage)
	r.With(loginLimit).Post("/admin/login", authHandler.Login)
	r.Get("/admin/unauthorized", authHandler.Unauthorized)
	r.With(loginLimit, csrf).Post("/admin/setup", userHandler.Setup)
	r.With(csrf).Post("/admin/logout", authHandler.Logout)

	// --- 管理画面 ---
	r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, DashboardPath, http.StatusMovedPermanently)
	})
	r.With(middleware.RequireAuth, middleware.RequirePermission(permission.DashboardView)).Get(DashboardPath, Dashboard)

	// --- 管理API ---
	// ミドルウェアスタック: RequireAPIAuth → CSRF → RateLimit(General)
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(middleware.RequireAPIAuth)
		r.Use(csrf)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/me", authHandler.Me)
		r.Put("/me/password", userHandler.ChangePassword)
		r.Patch("/me/profile", userHandler.UpdateProfile)

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireAPIPermission(permission.UsersView)).Get("/", userHandler.ListUsers)
			r.With(middleware.RequireAPIPermission(permission.UsersCreate)).Post("/", userHandler.CreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequireAPIPermission(permission.UsersView)).Get("/", userHandler.GetUser)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAPIPermission(permission.UsersEdit))
					r.Put("/active", userHandler.SetActive)
					r.Put("/role", userHandler.ChangeRole)
					r.Delete("/sessions", userHandler.RevokeSessions)
				})
			})
		})

		r.With(middleware.RequireAPIPermission(permission.AuditView)).Get("/audit-logs", auditHandler.ListAuditLogs)
		r.With(middleware.RequireAPIPermission(permission.UsersView)).Get("/roles", auditHandler.ListRoles)
	})

	return r
}
