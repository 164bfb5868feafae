// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

const (
	// LoginPath は未認証時のリダイレクト先。
	LoginPath = "/admin/login"
	// UnauthorizedPath は権限不足時のリダイレクト先。
	UnauthorizedPath = "/admin/unauthorized"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionGetter はセッションの検証に必要なインターフェース。
// auth.Serviceが実装する。
type SessionGetter interface {
	GetSession(ctx context.Context, token string) *model.SessionView
}

// LoadSession はCookieのセッショントークンを検証し、有効な場合のみ
// セッションをリクエストコンテキストに注入するミドルウェアを返す。
// 無効なセッションでもリクエストは拒否せず、匿名として次に渡す。
func LoadSession(getter SessionGetter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			view := getter.GetSession(r.Context(), token)
			if view == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), view)))
		})
	}
}

// RequireAuth はセッションの無いリクエストをログイン画面へ303でリダイレクトする。
// LoadSessionの後に配置する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission は権限pを持たないリクエストを権限不足画面へ303でリダイレクトする。
// セッションが無い場合はログイン画面へリダイレクトする。
func RequirePermission(p permission.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view := SessionFromContext(r.Context())
			if view == nil {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if !view.HasPermission(p) {
				http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIAuth はセッションの無いAPIリクエストに401を返す。
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIPermission は権限pを持たないAPIリクエストに403を返す。
// セッションが無い場合は401を返す。
func RequireAPIPermission(p permission.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view := SessionFromContext(r.Context())
			if view == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if !view.HasPermission(p) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// LoadSessionで有効と判定されなかった場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.SessionView {
	view, _ := ctx.Value(sessionContextKey).(*model.SessionView)
	return view
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, view *model.SessionView) context.Context {
	return context.WithValue(ctx, sessionContextKey, view)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	view := SessionFromContext(ctx)
	if view == nil || view.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return view.User.ID, nil
}

// ClientIP はリクエスト元のIPアドレスを返す。
// 転送ヘッダーの解釈はNewTrustedProxyMiddlewareに任せ、RemoteAddrのみを参照する。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestMeta は監査ログ用のリクエスト情報を返す。
func RequestMeta(r *http.Request) model.RequestMeta {
	return model.RequestMeta{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
