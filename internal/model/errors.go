// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 認証処理のエラー種別。errors.Isで判定する。
var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの誤り。
	// どちらが誤っているかは呼び出し元に区別させない。
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDeactivated は認証情報は正しいが無効化されたアカウント。
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrInternal は書き込み系処理でのデータストア障害などの予期しないエラー。
	ErrInternal = errors.New("internal error")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailTaken         = "USER_EMAIL_TAKEN"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeWrongPassword      = "WRONG_PASSWORD"
	ErrCodeRoleNotFound       = "ROLE_NOT_FOUND"
	ErrCodeSetupAlreadyDone   = "SETUP_ALREADY_DONE"
	ErrCodeInvalidAvatarURL   = "INVALID_AVATAR_URL"
	ErrCodeCannotModifySelf   = "CANNOT_MODIFY_SELF"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレス不一致とパスワード不一致で同一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountDeactivatedError は無効化アカウントでのログインエラーを生成する。
func NewAccountDeactivatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDeactivated,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者に連絡してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "必要な権限について管理者に問い合わせてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式の誤りを表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "user",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", email),
		Category: "validation",
		Action:   "正しい形式のメールアドレスを入力してください。",
	}
}

// NewWeakPasswordError はパスワード要件を満たさない場合のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上である必要があります。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewWrongPasswordError は現在のパスワードが一致しない場合のエラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  "現在のパスワードが正しくありません。",
		Category: "validation",
		Action:   "現在のパスワードを確認してください。",
	}
}

// NewRoleNotFoundError はロールが存在しない場合のエラーを生成する。
func NewRoleNotFoundError(roleID string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotFound,
		Message:  fmt.Sprintf("指定されたロールが存在しません: %s", roleID),
		Category: "validation",
		Action:   "super_admin、admin、editor、viewer のいずれかを指定してください。",
	}
}

// NewSetupAlreadyDoneError は初期セットアップ済みの場合のエラーを生成する。
func NewSetupAlreadyDoneError() *APIError {
	return &APIError{
		Code:     ErrCodeSetupAlreadyDone,
		Message:  "初期セットアップは既に完了しています。",
		Category: "user",
		Action:   "既存の管理者アカウントでログインしてください。",
	}
}

// NewInvalidAvatarURLError はアバターURLが不正な場合のエラーを生成する。
func NewInvalidAvatarURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  "アバターURLが不正です。",
		Category: "validation",
		Action:   "http:// または https:// で始まるURLを指定してください。",
	}
}

// NewCannotModifySelfError は自分自身を無効化・降格しようとした場合のエラーを生成する。
func NewCannotModifySelfError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotModifySelf,
		Message:  "自分自身のアカウントに対してこの操作は行えません。",
		Category: "user",
		Action:   "別の管理者に操作を依頼してください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
