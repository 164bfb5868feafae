package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/siteadmin/internal/model"
)

// PostgresAuditLogRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresAuditLogRepo struct {
	db *sql.DB
}

// NewPostgresAuditLogRepo はPostgresAuditLogRepoを生成する。
func NewPostgresAuditLogRepo(db *sql.DB) *PostgresAuditLogRepo {
	return &PostgresAuditLogRepo{db: db}
}

// Create は監査ログを追記する。
func (r *PostgresAuditLogRepo) Create(ctx context.Context, log *model.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs
		 (id, user_id, action, entity_type, entity_id, before, after, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, nullString(log.UserID), log.Action, log.EntityType, log.EntityID,
		nullJSON(log.Before), nullJSON(log.After),
		nullString(log.IPAddress), nullString(log.UserAgent), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List は監査ログを新しい順に返す。
func (r *PostgresAuditLogRepo) List(ctx context.Context, filter AuditLogFilter) ([]*model.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, entity_type, entity_id, before, after, ip_address, user_agent, created_at
		 FROM audit_logs
		 WHERE ($1 = '' OR user_id::text = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`,
		filter.UserID, filter.EffectiveLimit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.AuditLog
	for rows.Next() {
		l := &model.AuditLog{}
		var userID, ip, ua sql.NullString
		var before, after []byte
		if err := rows.Scan(
			&l.ID, &userID, &l.Action, &l.EntityType, &l.EntityID,
			&before, &after, &ip, &ua, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		l.UserID = userID.String
		l.IPAddress = ip.String
		l.UserAgent = ua.String
		l.Before = before
		l.After = after
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return logs, nil
}

// nullJSON はjsonbカラムへの書き込み値を返す。空の場合はNULLとする。
// lib/pqは[]byteをbyteaとして送るため文字列に変換する。
func nullJSON(raw []byte) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}

// compile-time interface check
var _ AuditLogRepository = (*PostgresAuditLogRepo)(nil)
