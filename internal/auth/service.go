// Package auth はパスワード認証、セッション発行・検証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/repository"
)

// SessionLifetime はセッションの有効期間。発行時に固定し、延長しない。
const SessionLifetime = 7 * 24 * time.Hour

// sessionTokenBytes はセッショントークンの乱数バイト数（hexで64文字）。
const sessionTokenBytes = 32

// ログイン試行の結果ラベル。
const (
	LoginOutcomeSuccess            = "success"
	LoginOutcomeInvalidCredentials = "invalid_credentials"
	LoginOutcomeDeactivated        = "deactivated"
	LoginOutcomeError              = "error"
)

// AuditWriter は監査ログの書き込みインターフェース。
type AuditWriter interface {
	Create(ctx context.Context, log *model.AuditLog) error
}

// Recorder は認証処理のメトリクス記録インターフェース。
type Recorder interface {
	RecordLoginAttempt(outcome string)
	RecordSessionCreated()
	RecordSessionsRevoked()
	RecordSessionLookupFailure()
}

type noopRecorder struct{}

func (noopRecorder) RecordLoginAttempt(string) {}
func (noopRecorder) RecordSessionCreated() {}
func (noopRecorder) RecordSessionsRevoked() {}
func (noopRecorder) RecordSessionLookupFailure() {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Metrics Recorder // nilの場合は記録しない
}

// Service は認証に関するビジネスロジックを提供する。
// 呼び出し間で状態を持たないため、並行に利用できる。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	audit       AuditWriter
	hasher      PasswordHasher
	metrics     Recorder
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	audit AuditWriter,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	metrics := config.Metrics
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		audit:       audit,
		hasher:      hasher,
		metrics:     metrics,
		now:         time.Now,
	}
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザー不在とパスワード不一致はどちらもErrInvalidCredentialsを返し、区別しない。
// 無効化されたユーザーはパスワード検証の前にErrAccountDeactivatedを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string, meta model.RequestMeta) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		s.metrics.RecordLoginAttempt(LoginOutcomeError)
		slog.Error("failed to find user for login", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: failed to find user: %w", model.ErrInternal, err)
	}

	if user == nil {
		// 存在しないユーザーでも照合時間を揃える
		s.hasher.CompareDummy(password)
		s.metrics.RecordLoginAttempt(LoginOutcomeInvalidCredentials)
		return nil, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.metrics.RecordLoginAttempt(LoginOutcomeDeactivated)
		slog.Info("login rejected for deactivated user", slog.String("user_id", user.ID))
		return nil, model.ErrAccountDeactivated
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		s.metrics.RecordLoginAttempt(LoginOutcomeInvalidCredentials)
		return nil, model.ErrInvalidCredentials
	}

	session, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		s.metrics.RecordLoginAttempt(LoginOutcomeError)
		return nil, err
	}

	if err := s.writeAudit(ctx, user.ID, model.AuditActionLogin, meta); err != nil {
		// 監査ログの無いログインは成立させない
		if delErr := s.sessionRepo.DeleteByToken(ctx, session.Token); delErr != nil {
			slog.Error("failed to roll back session after audit failure",
				slog.String("session_id", session.ID),
				slog.String("error", delErr.Error()),
			)
		}
		s.metrics.RecordLoginAttempt(LoginOutcomeError)
		return nil, err
	}

	s.metrics.RecordLoginAttempt(LoginOutcomeSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID),
	)
	return session, nil
}

// CreateSession は新しいセッションを発行し永続化する。
func (s *Service) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate session token: %w", model.ErrInternal, err)
	}

	now := s.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(SessionLifetime),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		slog.Error("failed to save session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: failed to save session: %w", model.ErrInternal, err)
	}

	s.metrics.RecordSessionCreated()
	return session, nil
}

// GetSession はトークンに対応する有効なセッションを返す。
// トークンが空・不明・期限切れ、ユーザーが無効、または検索に失敗した場合はnilを返す。
// 読み取り専用で、セッションの状態は変更しない。
func (s *Service) GetSession(ctx context.Context, token string) *model.SessionView {
	if token == "" {
		return nil
	}

	view, err := s.sessionRepo.FindValidByToken(ctx, token, s.now())
	if err != nil {
		s.metrics.RecordSessionLookupFailure()
		slog.Error("failed to look up session", slog.String("error", err.Error()))
		return nil
	}
	if view == nil || !view.User.IsActive {
		return nil
	}

	return view
}

// Logout はトークンに対応するセッションのみを破棄する。
// userIDが指定された場合は削除前に監査ログを記録する。
// 監査ログの失敗があってもセッション削除は実行する。
func (s *Service) Logout(ctx context.Context, token, userID string, meta model.RequestMeta) error {
	var errs []error

	if userID != "" {
		if err := s.writeAudit(ctx, userID, model.AuditActionLogout, meta); err != nil {
			errs = append(errs, err)
		}
	}

	if token != "" {
		if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
			slog.Error("failed to delete session", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%w: failed to delete session: %w", model.ErrInternal, err))
		} else {
			s.metrics.RecordSessionsRevoked()
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// DeleteAllUserSessions は指定ユーザーの全セッションを破棄する。
// 無効化やパスワード変更時に即時失効させるために使う。
func (s *Service) DeleteAllUserSessions(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		slog.Error("failed to delete user sessions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to delete user sessions: %w", model.ErrInternal, err)
	}

	s.metrics.RecordSessionsRevoked()
	slog.Info("all sessions revoked", slog.String("user_id", userID))
	return nil
}

func (s *Service) writeAudit(ctx context.Context, userID, action string, meta model.RequestMeta) error {
	entry := &model.AuditLog{
		ID:         uuid.New().String(),
		UserID:     userID,
		Action:     action,
		EntityType: model.AuditEntityUser,
		EntityID:   userID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  s.now(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		slog.Error("failed to write audit log",
			slog.String("action", action),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to write audit log: %w", model.ErrInternal, err)
	}
	return nil
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
