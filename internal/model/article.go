// Package model はドメインモデルを定義する。
package model

import "time"

// ArticleStatus は記事の承認状態を表す。
type ArticleStatus string

const (
	// ArticleStatusPending は承認処理待ちの状態。保存直後の初期値。
	ArticleStatusPending ArticleStatus = "pending"
	// ArticleStatusApproved は承認済みの状態。
	ArticleStatusApproved ArticleStatus = "approved"
	// ArticleStatusRejected は承認却下の状態。
	ArticleStatusRejected ArticleStatus = "rejected"
)

// IsValid はステータス値がドメイン内の値かどうかを返す。
func (s ArticleStatus) IsValid() bool {
	switch s {
	case ArticleStatusPending, ArticleStatusApproved, ArticleStatusRejected:
		return true
	}
	return false
}

// ArticleCategory は記事のカテゴリを表す。
// 空文字列は未分類（カテゴライザ実行前）を意味する。
type ArticleCategory string

const (
	// CategoryUnset は未分類を表すゼロ値。
	CategoryUnset ArticleCategory = ""
	// CategoryTechnology はテクノロジーカテゴリ。
	CategoryTechnology ArticleCategory = "technology"
	// CategoryBusiness はビジネスカテゴリ。
	CategoryBusiness ArticleCategory = "business"
	// CategorySports はスポーツカテゴリ。
	CategorySports ArticleCategory = "sports"
	// CategoryEntertainment はエンターテインメントカテゴリ。
	CategoryEntertainment ArticleCategory = "entertainment"
	// CategoryHealth はヘルスカテゴリ。
	CategoryHealth ArticleCategory = "health"
	// CategoryScience はサイエンスカテゴリ。
	CategoryScience ArticleCategory = "science"
	// CategoryPolitics は政治カテゴリ。
	CategoryPolitics ArticleCategory = "politics"
	// CategoryGeneral はどのカテゴリにも該当しない場合のフォールバック。
	CategoryGeneral ArticleCategory = "general"
)

// AllCategories は全カテゴリの順序付きリスト。
// カテゴライザの優先順位および統計の表示順はこの順序に従う。
var AllCategories = []ArticleCategory{
	CategoryTechnology,
	CategoryBusiness,
	CategorySports,
	CategoryEntertainment,
	CategoryHealth,
	CategoryScience,
	CategoryPolitics,
	CategoryGeneral,
}

// IsValid はカテゴリ値がドメイン内の値かどうかを返す。未分類（空文字列）は含まない。
func (c ArticleCategory) IsValid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Article は取り込んだ記事を表す。正規ストレージ（PostgreSQL）が信頼できる唯一の情報源で、
// キャッシュビューはすべてこのモデルから再計算される派生物として扱う。
type Article struct {
	ID             string
	Title          string
	Description    string // サニタイズ済み
	Content        string // サニタイズ済み
	URL            string // 一意制約あり。作成後は変更不可
	ImageURL       string
	PublishedAt    *time.Time
	SourceName     string
	Author         string
	Status         ArticleStatus
	Category       ArticleCategory
	ApprovalReason string // スコアラーまたは直接編集のみが設定する
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcessedAt    *time.Time // スコアラーのみが設定する
}

// RawArticle は外部ソースから取得した正規化済みの未保存レコードを表す。
// パースに失敗したレコードはこの型に変換される前に破棄される。
type RawArticle struct {
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt *time.Time
	SourceName  string
	Author      string
}

// ArticleFilter は記事一覧クエリのフィルタ条件を表す。
// nilのフィールドは条件なしを意味する。
type ArticleFilter struct {
	Status   *ArticleStatus
	Category *ArticleCategory
	Skip     int
	Limit    int
}

// ArticleStats は記事の集計統計を表す。
type ArticleStats struct {
	TotalArticles        int                     `json:"total_articles"`
	StatusDistribution   map[string]int          `json:"status_distribution"`
	CategoryDistribution map[ArticleCategory]int `json:"category_distribution"`
}

// CacheInfo はキャッシュストアの診断情報を表す。
type CacheInfo struct {
	UsedMemory              string `json:"used_memory"`
	ConnectedClients        int    `json:"connected_clients"`
	UptimeSeconds           int64  `json:"uptime_seconds"`
	CachedArticlesCount     int    `json:"cached_articles_count"`
	CachedListsCount        int    `json:"cached_lists_count"`
	CachedCategoriesCount   int    `json:"cached_categories_count"`
	HasApprovedArticleCache bool   `json:"has_approved_articles_cache"`
	HasStatsCache           bool   `json:"has_stats_cache"`
}
