// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は記事本文のリッチテキストHTMLを保存前にサニタイズする。
// bluemondayの許可リストポリシーで、エディタが出力するタグと属性のみを通過させる。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizer interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// alignClass はエディタが付与する文字揃え用のclass属性。
var alignClass = regexp.MustCompile(`^(ql-align-(center|right|justify)|ql-indent-[1-8])$`)

// httpsSource は画像srcに許可するURL。
var httpsSource = regexp.MustCompile(`^https://[^/]+`)

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文用のContentSanitizerを生成する。
// ポリシーの内容:
//   - 見出し・段落・リスト・引用・コード・文字装飾タグを許可
//   - aタグ: http/https/mailtoのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - imgタグ: httpsのsrcのみ許可
//   - script, iframe, style および全てのon*イベント属性は除去
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "b", "em", "i", "u", "s", "sub", "sup",
	)
	p.AllowAttrs("class").Matching(alignClass).OnElements("p", "h1", "h2", "h3", "h4", "h5", "h6", "li")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").Matching(httpsSource).OnElements("img")
	p.AllowAttrs("alt").OnElements("img")

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
