package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/siteadmin/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.Token, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindValidByToken はトークンが一致し期限内のセッションを、ユーザーとロールを結合して取得する。
// 期限切れまたは存在しない場合はnilを返す。
func (r *PostgresSessionRepo) FindValidByToken(ctx context.Context, token string, now time.Time) (*model.SessionView, error) {
	view := &model.SessionView{}
	var avatar sql.NullString
	var rawPerms []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.expires_at,
		        u.id, u.email, u.name, u.avatar_url, u.is_active,
		        ro.id, ro.name, ro.permissions
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 JOIN roles ro ON ro.id = u.role_id
		 WHERE s.token = $1 AND s.expires_at > $2`,
		token, now,
	).Scan(
		&view.SessionID, &view.ExpiresAt,
		&view.User.ID, &view.User.Email, &view.User.Name, &avatar, &view.User.IsActive,
		&view.User.RoleID, &view.User.RoleName, &rawPerms,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	view.User.AvatarURL = avatar.String
	perms, err := decodePermissions(rawPerms)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", view.SessionID, err)
	}
	view.User.Permissions = perms

	return view, nil
}

// DeleteByToken はトークンが一致するセッションを削除する。
func (r *PostgresSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
