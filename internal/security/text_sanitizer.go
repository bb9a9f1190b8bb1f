// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザー入力のテキスト（タスク本文、プロフィール名）を
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyを使用し、HTMLタグをすべて除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// ユーザー入力の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからHTMLタグをすべて除去し、前後の空白を削る。
	// タスク本文はプレーンテキストとして扱うため、タグは一切許可しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのHTMLタグと属性を除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからHTMLタグをすべて除去し、前後の空白を削る。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
