package auth

import (
	"net/http"
	"time"

	"github.com/hitoshi/siteadmin/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "admin_session"

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Secure bool   // 本番環境（TLS）でのみtrue
	Domain string // 空の場合はホスト限定
}

// SetSessionCookie はセッショントークンをHTTP Only Cookieとして設定する。
// 有効期限はセッションのExpiresAtに一致させる。
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest はリクエストのCookieからセッショントークンを取得する。
// Cookieが無い場合は空文字列を返す。
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
