// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/hitoshi/siteadmin/internal/permission"
)

// User は管理画面のユーザーを表す。
// Emailは常に小文字で保持する。物理削除はせず、IsActive=falseで無効化する。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	AvatarURL    string // 未設定の場合は空文字列
	RoleID       string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role は権限の束を表す。シード後は読み取り専用の参照データとして扱う。
type Role struct {
	ID          string
	Name        string
	Permissions []permission.Permission
	CreatedAt   time.Time
}

// Session はユーザーのログインセッションを表す。
// Tokenはcookieで提示されるベアラー値で、ExpiresAtは絶対期限（延長しない）。
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionUser はセッション検証時にロールと結合して読み出したユーザー情報。
type SessionUser struct {
	ID          string
	Email       string
	Name        string
	AvatarURL   string
	RoleID      string
	RoleName    string
	Permissions []permission.Permission
	IsActive    bool
}

// SessionView は有効なセッションとその所有ユーザーを表す。
type SessionView struct {
	SessionID string
	ExpiresAt time.Time
	User      SessionUser
}

// HasPermission はセッションユーザーが権限pを持つかを判定する。
func (v *SessionView) HasPermission(p permission.Permission) bool {
	if v == nil {
		return false
	}
	return permission.Has(v.User.Permissions, p)
}
