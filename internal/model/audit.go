package model

import (
	"encoding/json"
	"time"
)

// 監査ログのアクション。
const (
	AuditActionLogin          = "login"
	AuditActionLogout         = "logout"
	AuditActionSetup          = "setup"
	AuditActionCreate         = "create"
	AuditActionUpdate         = "update"
	AuditActionDeactivate     = "deactivate"
	AuditActionActivate       = "activate"
	AuditActionPasswordChange = "password_change"
	AuditActionRevokeSessions = "revoke_sessions"
)

// AuditEntityUser は監査ログの対象種別（ユーザー）。
const AuditEntityUser = "user"

// AuditLog は追記専用の監査ログレコードを表す。
// Before/Afterは変更前後のスナップショット（JSON）で、無い場合はnil。
type AuditLog struct {
	ID         string
	UserID     string // 操作者。匿名操作の場合は空文字列
	Action     string
	EntityType string
	EntityID   string
	Before     json.RawMessage
	After      json.RawMessage
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// RequestMeta は監査ログに記録するリクエスト情報。
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
