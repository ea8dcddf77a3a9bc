// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer は外部IdPが報告するユーザー表示名をサニタイズし、
// 保存した名前を画面に出す際のXSSリスクを取り除く。
// bluemondayの全タグ除去ポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameLength は保存する表示名の最大文字数（rune単位）。
const maxNameLength = 200

// NameSanitizer はプロバイダー由来の表示名をプレーンテキストに正規化する。
// 複数goroutineから同時に使用できる。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerを生成する。
// StrictPolicyは全てのHTMLタグを除去する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は表示名からHTMLタグを除去し、実体参照を復元し、
// 連続する空白を1つに畳んだ上で最大長に切り詰める。
// 同一入力に対して常に同一出力を返す（冪等）。
func (s *NameSanitizer) Sanitize(name string) string {
	cleaned := s.policy.Sanitize(name)
	// StrictPolicyはタグ除去後のテキストをエスケープして返すため、
	// 保存用のプレーンテキストに戻す。
	cleaned = html.UnescapeString(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > maxNameLength {
		cleaned = string(runes[:maxNameLength])
	}
	return cleaned
}
