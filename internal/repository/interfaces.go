// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/siteadmin/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail は小文字化済みのメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Count は登録ユーザー数を返す。
	Count(ctx context.Context) (int, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateActive は有効フラグを更新する。
	UpdateActive(ctx context.Context, id string, active bool, updatedAt time.Time) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error

	// UpdateProfile は表示名とアバターURLを更新する。
	UpdateProfile(ctx context.Context, id, name, avatarURL string, updatedAt time.Time) error

	// UpdateRole はユーザーのロールを変更する。
	UpdateRole(ctx context.Context, id, roleID string, updatedAt time.Time) error
}

// RoleRepository はロールデータの永続化インターフェース。
// ロールはシード後に変更しない参照データとして扱う。
type RoleRepository interface {
	// FindByID は指定IDのロールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Role, error)

	// List は全ロールを返す。
	List(ctx context.Context) ([]*model.Role, error)

	// CreateIfNotExists はロールが存在しない場合のみ作成する。
	// 作成した場合はtrue、既に存在した場合はfalseを返す。
	CreateIfNotExists(ctx context.Context, role *model.Role) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindValidByToken はトークンが一致し、expires_at > now のセッションを
	// ユーザーとロールを結合して取得する。見つからない場合はnilを返す。
	// ユーザーの有効フラグによる絞り込みは呼び出し側で行う。
	FindValidByToken(ctx context.Context, token string, now time.Time) (*model.SessionView, error)

	// DeleteByToken はトークンが一致するセッションを削除する。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// AuditLogFilter は監査ログ一覧の絞り込み条件。
type AuditLogFilter struct {
	UserID string // 空文字列の場合は全ユーザー
	Limit  int    // 0以下の場合はDefaultAuditListLimit
}

const (
	// DefaultAuditListLimit はLimit未指定時の取得件数。
	DefaultAuditListLimit = 50
	// MaxAuditListLimit は1回の一覧取得で返す最大件数。
	MaxAuditListLimit = 200
)

// EffectiveLimit は既定値と上限を適用した取得件数を返す。
func (f AuditLogFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultAuditListLimit
	case f.Limit > MaxAuditListLimit:
		return MaxAuditListLimit
	default:
		return f.Limit
	}
}

// AuditLogRepository は監査ログの永続化インターフェース。追記専用。
type AuditLogRepository interface {
	// Create は監査ログを追記する。
	Create(ctx context.Context, log *model.AuditLog) error

	// List は監査ログを新しい順に返す。
	List(ctx context.Context, filter AuditLogFilter) ([]*model.AuditLog, error)
}
