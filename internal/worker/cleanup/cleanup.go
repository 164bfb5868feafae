// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れセッションは検証時に無効扱いとなるため、削除は容量管理のためだけに行う。
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultAuditRetentionDays は監査ログのデフォルト保持日数。
const DefaultAuditRetentionDays = 365

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder は削除件数のメトリクス記録インターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordExpiredSessionsPurged(count int64)
	RecordAuditLogsPurged(count int64)
}

type noopRecorder struct{}

func (noopRecorder) RecordExpiredSessionsPurged(int64) {}
func (noopRecorder) RecordAuditLogsPurged(int64) {}

// Job は定期実行される削除ジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// SessionCleanupJob は有効期限を過ぎたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
type SessionCleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics Recorder
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewSessionCleanupJob(db Executor, logger *slog.Logger, recorder Recorder) *SessionCleanupJob {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &SessionCleanupJob{db: db, logger: logger, metrics: recorder}
}

func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Run はexpires_atが現在時刻以前のセッションを削除する。
// 検証側の「expires_at > now」と境界を揃える。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := execDelete(ctx, j.db, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	j.metrics.RecordExpiredSessionsPurged(deleted)
	j.logger.Info("期限切れセッションの削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// AuditRetentionJob は保持期間を超過した監査ログを削除する。
type AuditRetentionJob struct {
	db            Executor
	logger        *slog.Logger
	metrics       Recorder
	RetentionDays int // 監査ログの保持日数（デフォルト: 365）
}

// NewAuditRetentionJob は新しいAuditRetentionJobを生成する。
// retentionDaysが0以下の場合はDefaultAuditRetentionDaysを使う。
func NewAuditRetentionJob(db Executor, logger *slog.Logger, recorder Recorder, retentionDays int) *AuditRetentionJob {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if retentionDays <= 0 {
		retentionDays = DefaultAuditRetentionDays
	}
	return &AuditRetentionJob{
		db:            db,
		logger:        logger,
		metrics:       recorder,
		RetentionDays: retentionDays,
	}
}

func (j *AuditRetentionJob) Name() string { return "audit_retention" }

// Run はcreated_atがRetentionDays日前より古い監査ログを削除する。
func (j *AuditRetentionJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)
	deleted, err := execDelete(ctx, j.db, `DELETE FROM audit_logs WHERE created_at < now() - $1::interval`, interval)
	if err != nil {
		j.logger.Error("監査ログの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("監査ログの削除に失敗: %w", err)
	}

	j.metrics.RecordAuditLogsPurged(deleted)
	j.logger.Info("監査ログの削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func execDelete(ctx context.Context, db Executor, query string, args ...interface{}) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// RunAll は全ジョブを順に実行する。
// 1つが失敗しても残りは実行し、失敗をまとめて返す。
func RunAll(ctx context.Context, jobs ...Job) error {
	var errs []error
	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Schedule は起動直後に全ジョブを実行し、以後intervalごとに繰り返す。
// ctxがキャンセルされるまでブロックする。
func Schedule(ctx context.Context, logger *slog.Logger, interval time.Duration, jobs ...Job) {
	run := func() {
		if err := RunAll(ctx, jobs...); err != nil {
			logger.Error("クリーンアップジョブの一部が失敗しました", slog.String("error", err.Error()))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			run()
		}
	}
}
