package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
)

// PostgresRoleRepo はPostgreSQLを使用したロールリポジトリ。
// permissionsカラムはJSON配列で保持し、読み出し時に1度だけデコードする。
type PostgresRoleRepo struct {
	db *sql.DB
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db *sql.DB) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// FindByID は指定IDのロールを取得する。見つからない場合はnilを返す。
func (r *PostgresRoleRepo) FindByID(ctx context.Context, id string) (*model.Role, error) {
	role := &model.Role{}
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, permissions, created_at FROM roles WHERE id = $1`,
		id,
	).Scan(&role.ID, &role.Name, &raw, &role.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}

	perms, err := decodePermissions(raw)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", id, err)
	}
	role.Permissions = perms
	return role, nil
}

// List は全ロールをID順に返す。
func (r *PostgresRoleRepo) List(ctx context.Context) ([]*model.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, permissions, created_at FROM roles ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*model.Role
	for rows.Next() {
		role := &model.Role{}
		var raw []byte
		if err := rows.Scan(&role.ID, &role.Name, &raw, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if role.Permissions, err = decodePermissions(raw); err != nil {
			return nil, fmt.Errorf("role %s: %w", role.ID, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// CreateIfNotExists はロールが存在しない場合のみ作成する。
// 作成した場合はtrue、既に存在した場合はfalseを返す。
func (r *PostgresRoleRepo) CreateIfNotExists(ctx context.Context, role *model.Role) (bool, error) {
	raw, err := json.Marshal(permission.Strings(role.Permissions))
	if err != nil {
		return false, fmt.Errorf("failed to encode permissions: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, permissions, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		role.ID, role.Name, string(raw), role.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// decodePermissions はpermissionsカラムのJSON配列をデコードする。
func decodePermissions(raw []byte) ([]permission.Permission, error) {
	var perms []permission.Permission
	if len(raw) == 0 {
		return perms, nil
	}
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return perms, nil
}

// compile-time interface check
var _ RoleRepository = (*PostgresRoleRepo)(nil)
