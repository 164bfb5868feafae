// Package user は管理画面ユーザーの管理ロジックを提供する。
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/siteadmin/internal/auth"
	"github.com/hitoshi/siteadmin/internal/model"
	"github.com/hitoshi/siteadmin/internal/permission"
	"github.com/hitoshi/siteadmin/internal/repository"
	"github.com/hitoshi/siteadmin/internal/security"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
	// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordBytes = 72
	// maxNameLength は表示名の最大文字数。
	maxNameLength = 100
)

// SessionRevoker はユーザーの全セッション破棄インターフェース。
type SessionRevoker interface {
	DeleteAllUserSessions(ctx context.Context, userID string) error
}

// SetupInput は初期セットアップの入力。
type SetupInput struct {
	Email    string
	Password string
	Name     string
}

// CreateUserInput はユーザー作成の入力。
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	RoleID   string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	sessions  SessionRevoker
	audit     auth.AuditWriter
	hasher    auth.PasswordHasher
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	sessions SessionRevoker,
	audit auth.AuditWriter,
	hasher auth.PasswordHasher,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		sessions:  sessions,
		audit:     audit,
		hasher:    hasher,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// InitialSetup はユーザーが1人もいない場合に限り、最初のsuper_adminを作成する。
func (s *Service) InitialSetup(ctx context.Context, in SetupInput, meta model.RequestMeta) (*model.User, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return nil, model.NewSetupAlreadyDoneError()
	}

	user, err := s.newUser(ctx, in.Email, in.Password, in.Name, permission.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}

	if err := s.recordAudit(ctx, user.ID, model.AuditActionSetup, user.ID, nil, user, meta); err != nil {
		return nil, err
	}

	slog.Info("初期セットアップが完了しました", slog.String("user_id", user.ID))
	return user, nil
}

// CreateUser は新しいユーザーを作成する。
func (s *Service) CreateUser(ctx context.Context, actorID string, in CreateUserInput, meta model.RequestMeta) (*model.User, error) {
	user, err := s.newUser(ctx, in.Email, in.Password, in.Name, in.RoleID)
	if err != nil {
		return nil, err
	}

	if err := s.recordAudit(ctx, actorID, model.AuditActionCreate, user.ID, nil, user, meta); err != nil {
		return nil, err
	}

	slog.Info("ユーザーを作成しました",
		slog.String("actor_id", actorID),
		slog.String("user_id", user.ID),
		slog.String("role_id", user.RoleID),
	)
	return user, nil
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// GetUser は指定IDのユーザーを返す。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.findUser(ctx, userID)
}

// SetActive はユーザーの有効・無効を切り替える。
// 無効化した場合はそのユーザーの全セッションを即時に破棄する。
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool, meta model.RequestMeta) (*model.User, error) {
	if actorID == userID {
		return nil, model.NewCannotModifySelfError()
	}

	before, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if before.IsActive == active {
		return before, nil
	}

	after := *before
	after.IsActive = active
	after.UpdatedAt = s.now()
	if err := s.userRepo.UpdateActive(ctx, userID, active, after.UpdatedAt); err != nil {
		return nil, fmt.Errorf("有効フラグの更新に失敗しました: %w", err)
	}

	action := model.AuditActionActivate
	if !active {
		action = model.AuditActionDeactivate
		if err := s.sessions.DeleteAllUserSessions(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := s.recordAudit(ctx, actorID, action, userID, before, &after, meta); err != nil {
		return nil, err
	}

	slog.Info("ユーザーの有効状態を変更しました",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.Bool("active", active),
	)
	return &after, nil
}

// ChangeRole はユーザーのロールを変更する。
// 権限はリクエストごとに再計算されるため、既存セッションにも即時に反映される。
func (s *Service) ChangeRole(ctx context.Context, actorID, userID, roleID string, meta model.RequestMeta) (*model.User, error) {
	if actorID == userID {
		return nil, model.NewCannotModifySelfError()
	}

	if err := s.ensureRole(ctx, roleID); err != nil {
		return nil, err
	}

	before, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if before.RoleID == roleID {
		return before, nil
	}

	after := *before
	after.RoleID = roleID
	after.UpdatedAt = s.now()
	if err := s.userRepo.UpdateRole(ctx, userID, roleID, after.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	if err := s.recordAudit(ctx, actorID, model.AuditActionUpdate, userID, before, &after, meta); err != nil {
		return nil, err
	}

	slog.Info("ユーザーのロールを変更しました",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.String("role_id", roleID),
	)
	return &after, nil
}

// ChangePassword は現在のパスワードを確認した上でパスワードを変更する。
// 変更後は全セッションを破棄し、再ログインを要求する。
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string, meta model.RequestMeta) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Compare(user.PasswordHash, current) {
		return model.NewWrongPasswordError()
	}

	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	if err := s.sessions.DeleteAllUserSessions(ctx, userID); err != nil {
		return err
	}

	if err := s.recordAudit(ctx, userID, model.AuditActionPasswordChange, userID, nil, nil, meta); err != nil {
		return err
	}

	slog.Info("パスワードを変更しました", slog.String("user_id", userID))
	return nil
}

// UpdateProfile は表示名とアバターURLを更新する。
// avatarURLが空の場合はアバターを解除する。
func (s *Service) UpdateProfile(ctx context.Context, userID, name, avatarURL string, meta model.RequestMeta) (*model.User, error) {
	cleanName, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := validateAvatarURL(avatarURL); err != nil {
		return nil, err
	}

	before, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	after := *before
	after.Name = cleanName
	after.AvatarURL = avatarURL
	after.UpdatedAt = s.now()
	if err := s.userRepo.UpdateProfile(ctx, userID, cleanName, avatarURL, after.UpdatedAt); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	if err := s.recordAudit(ctx, userID, model.AuditActionUpdate, userID, before, &after, meta); err != nil {
		return nil, err
	}

	return &after, nil
}

// RevokeSessions は指定ユーザーの全セッションを破棄する。
func (s *Service) RevokeSessions(ctx context.Context, actorID, userID string, meta model.RequestMeta) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}

	if err := s.sessions.DeleteAllUserSessions(ctx, userID); err != nil {
		return err
	}

	if err := s.recordAudit(ctx, actorID, model.AuditActionRevokeSessions, userID, nil, nil, meta); err != nil {
		return err
	}

	slog.Info("ユーザーのセッションを破棄しました",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
	)
	return nil
}

// newUser は入力を検証してユーザーを作成する。
func (s *Service) newUser(ctx context.Context, email, password, name, roleID string) (*model.User, error) {
	normalized, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	cleanName, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRole(ctx, roleID); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        normalized,
		PasswordHash: hash,
		Name:         cleanName,
		RoleID:       roleID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return user, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) ensureRole(ctx context.Context, roleID string) error {
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("ロールの取得に失敗しました: %w", err)
	}
	if role == nil {
		return model.NewRoleNotFoundError(roleID)
	}
	return nil
}

func (s *Service) cleanName(name string) (string, error) {
	clean := s.sanitizer.Sanitize(name)
	if clean == "" {
		return "", model.NewInvalidRequestError("名前を入力してください。")
	}
	if utf8.RuneCountInString(clean) > maxNameLength {
		return "", model.NewInvalidRequestError(fmt.Sprintf("名前は%d文字以内で入力してください。", maxNameLength))
	}
	return clean, nil
}

// userSnapshot は監査ログに記録するユーザーの状態。パスワードハッシュは含めない。
type userSnapshot struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	RoleID    string `json:"role_id"`
	IsActive  bool   `json:"is_active"`
}

func snapshot(u *model.User) (json.RawMessage, error) {
	if u == nil {
		return nil, nil
	}
	return json.Marshal(userSnapshot{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		RoleID:    u.RoleID,
		IsActive:  u.IsActive,
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, before, after *model.User, meta model.RequestMeta) error {
	beforeJSON, err := snapshot(before)
	if err != nil {
		return fmt.Errorf("監査ログの変換に失敗しました: %w", err)
	}
	afterJSON, err := snapshot(after)
	if err != nil {
		return fmt.Errorf("監査ログの変換に失敗しました: %w", err)
	}

	entry := &model.AuditLog{
		ID:         uuid.New().String(),
		UserID:     actorID,
		Action:     action,
		EntityType: model.AuditEntityUser,
		EntityID:   entityID,
		Before:     beforeJSON,
		After:      afterJSON,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  s.now(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		return fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}
	return nil
}

// validateEmail はメールアドレスの形式を検証し、正規化した値を返す。
// 表示名付きの形式（"Name <a@b>"）は受け付けない。
func validateEmail(email string) (string, error) {
	normalized := auth.NormalizeEmail(email)
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", model.NewInvalidEmailError(email)
	}
	return normalized, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewWeakPasswordError(MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError(fmt.Sprintf("パスワードは%dバイト以内で入力してください。", maxPasswordBytes))
	}
	return nil
}

// validateAvatarURL はアバターURLがhttpまたはhttpsの絶対URLであることを検証する。
func validateAvatarURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return model.NewInvalidAvatarURLError()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidAvatarURLError()
	}
	return nil
}
