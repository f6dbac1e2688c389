// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// ErrDuplicateURL は同一URLの記事が既に存在する場合に返されるエラー。
// URL一意性はストレージ層の一意制約で保証され、並行取り込みの競合も
// このエラーとして観測される。取り込み側はスキップとして扱う。
var ErrDuplicateURL = errors.New("article with the same url already exists")

// ArticleRepository は記事データの永続化インターフェース。
// 正規ストレージへの唯一の窓口であり、キャッシュビューの再計算は
// すべてこのインターフェース経由の新鮮なクエリで行われる。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindByURL はURLで記事を検索する。重複判定に使用する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Article, error)

	// Create は記事を作成する。同一URLの記事が既に存在する場合はErrDuplicateURLを返す。
	Create(ctx context.Context, article *model.Article) error

	// Update は記事編集用の更新。status、category、approval_reason、
	// updated_at、processed_atを一括で書き込む。
	// titleやurlなどの取り込み時フィールドは変更しない。
	Update(ctx context.Context, article *model.Article) error

	// UpdateScoring はスコアリング結果のフィールドのみを更新する。
	// categoryには触れないため、並行するカテゴリ分類の書き込みと競合しない。
	UpdateScoring(ctx context.Context, id string, status model.ArticleStatus, reason string, processedAt time.Time) error

	// UpdateCategory はcategoryのみを更新する。
	// statusやapproval_reasonには触れないため、並行するスコアリングの書き込みと競合しない。
	UpdateCategory(ctx context.Context, id string, category model.ArticleCategory) error

	// List は記事一覧をフィルタ付きで取得する。created_at降順。
	List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error)

	// ListApproved は承認済み記事をcreated_at降順で最大limit件取得する。
	ListApproved(ctx context.Context, limit int) ([]*model.Article, error)

	// ListApprovedByCategory は指定カテゴリの承認済み記事をcreated_at降順で最大limit件取得する。
	ListApprovedByCategory(ctx context.Context, category model.ArticleCategory, limit int) ([]*model.Article, error)

	// CountAll は全記事数を返す。
	CountAll(ctx context.Context) (int, error)

	// CountByStatus は指定ステータスの記事数を返す。
	CountByStatus(ctx context.Context, status model.ArticleStatus) (int, error)

	// CountApprovedByCategory は指定カテゴリの承認済み記事数を返す。
	CountApprovedByCategory(ctx context.Context, category model.ArticleCategory) (int, error)
}
