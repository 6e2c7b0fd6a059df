// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer はバックエンドから受け取ったプロジェクト・経歴・学習記録の
// 説明文HTMLをサニタイズし、表示前にXSSのリスクを取り除く。
// bluemondayの許可リストポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizer は説明文HTMLのサニタイズ機能のインターフェース。
type DescriptionSanitizer interface {
	// Sanitize は説明文HTMLをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
	// Excerpt は説明文からタグを除いたプレーンテキストの抜粋を返す。
	Excerpt(rawHTML string, maxRunes int) string
}

// descriptionSanitizer はDescriptionSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので、1インスタンスを共有する。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h3, h4, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - script, iframe, style およびon*イベント属性は除去
//   - URLはhttpsスキームのみ（imgのsrc、aのhref）
//   - aタグ: 絶対URLのみ、target="_blank" と rel="noopener noreferrer" を付与
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// 説明文は別オリジンのバックエンドから来るため相対URLは解決できない
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &descriptionSanitizer{policy: p}
}

// Sanitize は説明文HTMLをサニタイズして安全なHTMLを返す。
func (s *descriptionSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// Excerpt はサニタイズ後の説明文からプレーンテキストの抜粋を返す。
func (s *descriptionSanitizer) Excerpt(rawHTML string, maxRunes int) string {
	return PlainTextExcerpt(s.policy.Sanitize(rawHTML), maxRunes)
}

// compile-time interface check
var _ DescriptionSanitizer = (*descriptionSanitizer)(nil)
