// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は管理画面で表示されるユーザー入力（表示名など）から
// HTMLタグを除去し、プレーンテキストとして保存できる形に正規化する。
// bluemondayのStrictPolicyを使用し、全てのタグと属性を取り除く。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize は入力からHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 連続する空白文字は1つの半角スペースにまとめる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// maxSanitizePasses はエスケープが入れ子になった入力を展開する最大回数。
// これを超えても収束しない入力は空文字列として扱う。
const maxSanitizePasses = 8

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーは並行利用しても安全。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはテキストをHTMLエスケープして返すため、保存用に元の文字へ戻す。
// 戻した結果に新たなタグが現れる場合があるので、出力が変わらなくなるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	current := raw
	for i := 0; ; i++ {
		if i == maxSanitizePasses {
			return ""
		}
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			break
		}
		current = next
	}
	return strings.Join(strings.Fields(current), " ")
}
