package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は記事の説明文・本文のHTMLをサニタイズする。
// 外部ソース（NewsAPI・RSSフィード）由来のHTMLは保存前に必ずここを通す。
// bluemondayの許可リストベースのポリシーで安全なタグと属性のみを通過させる。
// ポリシーはイミュータブルでスレッドセーフ、同一入力に対して常に同一出力を返す。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - script, iframe, style および on* イベント属性は許可リスト外のため除去される
//   - imgのsrc属性はhttpsスキームのみ許可
//   - aタグには target="_blank" と rel="noopener noreferrer" を強制付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// 記事本文に相対URLは不適切なので不許可
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &ContentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。空文字列には空文字列を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
