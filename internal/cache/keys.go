package cache

import (
	"fmt"
	"strings"

	"github.com/hitoshi/newsdesk/internal/model"
)

// キャッシュビューの5つの名前空間。
// ビューごとにTTLクラスが異なる（短命: リスト・カテゴリ、長命: 承認済みセット、極短命: 統計）。
const (
	keyApproved = "articles:approved"
	keyStats    = "articles:stats"

	patternArticles   = "article:*"
	patternLists      = "articles:list:*"
	patternCategories = "articles:category:*"
)

// articleKey は単一記事ビューのキーを生成する。
func articleKey(articleID string) string {
	return "article:" + articleID
}

// listKey はフィルタ付きリストビューのキーを生成する。
// キーはstatus × category × ページネーションの組み合わせごとに一意。
func listKey(filter model.ArticleFilter) string {
	var parts []string
	if filter.Status != nil {
		parts = append(parts, "status:"+string(*filter.Status))
	}
	if filter.Category != nil {
		parts = append(parts, "category:"+string(*filter.Category))
	}
	parts = append(parts, fmt.Sprintf("skip:%d", filter.Skip))
	parts = append(parts, fmt.Sprintf("limit:%d", filter.Limit))
	return "articles:list:" + strings.Join(parts, "_")
}

// categoryKey はカテゴリビューのキーを生成する。
func categoryKey(category model.ArticleCategory) string {
	return "articles:category:" + string(category)
}
