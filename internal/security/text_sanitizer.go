package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザーが入力したテキストからマークアップを取り除く。
type TextSanitizer interface {
	Sanitize(s string) string
}

// StrictTextSanitizer はbluemondayのStrictPolicyで全てのタグを除去する。
// 結果はHTMLエスケープを戻したプレーンテキストで、出力時のエスケープはテンプレートに任せる。
type StrictTextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictTextSanitizerを生成する。
func NewTextSanitizer() *StrictTextSanitizer {
	return &StrictTextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を落としたテキストを返す。
func (s *StrictTextSanitizer) Sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// compile-time interface check
var _ TextSanitizer = (*StrictTextSanitizer)(nil)
