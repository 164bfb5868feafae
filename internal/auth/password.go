package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのコスト係数。
const DefaultBcryptCost = 12

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	// Hash は平文パスワードをソルト付きでハッシュ化する。
	Hash(password string) (string, error)
	// Compare はハッシュと平文パスワードが一致するかを判定する。
	Compare(hash, password string) bool
	// CompareDummy は存在しないユーザーに対してもCompareと同等の計算時間を消費する。
	CompareDummy(password string)
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが範囲外の場合はDefaultBcryptCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash は平文パスワードをハッシュ化する。
// 72バイトを超えるパスワードはbcrypt.ErrPasswordTooLongを返す。
func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare はハッシュと平文パスワードが一致するかを判定する。
func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CompareDummy は固定のダミーハッシュと照合し、結果を捨てる。
// ダミーハッシュは初回呼び出し時に同じコストで生成する。
func (h *BcryptHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("siteadmin-dummy-password"), h.cost)
		if err == nil {
			h.dummyHash = b
		}
	})
	if h.dummyHash == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
