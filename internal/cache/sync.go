package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
)

// ViewListLimit はカテゴリ・承認済みセットビューに保持する記事数の上限。
// 読み取り経路のクエリ上限と一致させること。
const ViewListLimit = 50

// Synchronizer はミューテーションイベントを最小限のビュー更新にマッピングする。
//
// すべての更新は正規ストレージへの新鮮なクエリからビューを再計算する。
// 前回のキャッシュ内容への差分適用は行わない。これにより、同一記事に対する
// 承認タスクとカテゴリ分類タスクがどの順序で完了しても各再計算は安全であり、
// ビューは常に「ある時点の正しい状態」を反映し、全タスク完了後に真の状態へ収束する。
// 意図的な結果整合性であり、ロックによる直列化は行わない。
type Synchronizer struct {
	repo   repository.ArticleRepository
	views  *ViewCache
	logger *slog.Logger
}

// NewSynchronizer はSynchronizerを生成する。
func NewSynchronizer(repo repository.ArticleRepository, views *ViewCache, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		repo:   repo,
		views:  views,
		logger: logger,
	}
}

// ArticleCreated は取り込みバッチで記事が新規保存された後に呼ばれる。
// リスト系ビューのメンバーシップのみが変わるため、フィルタ付きリストビューだけを
// 無効化する。カテゴリ・承認済み・統計ビューには触れない。
func (s *Synchronizer) ArticleCreated(ctx context.Context) {
	deleted := s.views.InvalidateFilteredLists(ctx)
	s.logger.Info("取り込み後にリストビューを無効化しました",
		slog.Int("deleted_keys", deleted),
	)
}

// ArticleScored はスコアラーが記事のステータスを更新した後に呼ばれる。
func (s *Synchronizer) ArticleScored(ctx context.Context, articleID string) error {
	return s.refreshAfterMutation(ctx, articleID)
}

// ArticleCategorized はカテゴライザが記事のカテゴリを更新した後に呼ばれる。
func (s *Synchronizer) ArticleCategorized(ctx context.Context, articleID string) error {
	return s.refreshAfterMutation(ctx, articleID)
}

// ArticleEdited は境界経由で記事が直接編集された後に呼ばれる。
func (s *Synchronizer) ArticleEdited(ctx context.Context, articleID string) error {
	return s.refreshAfterMutation(ctx, articleID)
}

// refreshAfterMutation はstatus/categoryの変化に対するビュー更新を行う。
//  1. 単一記事ビューを正規ストレージからの再読み込みで再発行する
//  2. フィルタ付きリストビューを無効化する
//  3. 記事が承認済みかつカテゴリ設定済みであれば、そのカテゴリのビューを
//     新鮮な{category, approved}クエリから再計算する
func (s *Synchronizer) refreshAfterMutation(ctx context.Context, articleID string) error {
	article, err := s.repo.FindByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("failed to reload article for view refresh: %w", err)
	}

	if article == nil {
		// 並行して削除された場合は古いビューを残さない
		s.views.InvalidateArticle(ctx, articleID)
		s.views.InvalidateFilteredLists(ctx)
		return nil
	}

	s.views.PutArticle(ctx, article)
	s.views.InvalidateFilteredLists(ctx)

	if article.Status == model.ArticleStatusApproved && article.Category != model.CategoryUnset {
		if err := s.RecomputeCategory(ctx, article.Category); err != nil {
			return err
		}
	}

	return nil
}

// RecomputeCategory は指定カテゴリのビューを正規ストレージへの新鮮なクエリから再計算する。
// キャッシュ済み内容への差分適用は決して行わない。
func (s *Synchronizer) RecomputeCategory(ctx context.Context, category model.ArticleCategory) error {
	articles, err := s.repo.ListApprovedByCategory(ctx, category, ViewListLimit)
	if err != nil {
		return fmt.Errorf("failed to query category %s for view recompute: %w", category, err)
	}
	s.views.PutCategory(ctx, category, articles)
	return nil
}

// ComputeStats は正規ストレージから統計を集計する。
// カテゴリ分布は承認済み記事のみを数える。
func (s *Synchronizer) ComputeStats(ctx context.Context) (*model.ArticleStats, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	stats := &model.ArticleStats{
		TotalArticles:        total,
		StatusDistribution:   make(map[string]int, 3),
		CategoryDistribution: make(map[model.ArticleCategory]int, len(model.AllCategories)),
	}

	for _, status := range []model.ArticleStatus{
		model.ArticleStatusPending,
		model.ArticleStatusApproved,
		model.ArticleStatusRejected,
	} {
		count, err := s.repo.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count articles by status: %w", err)
		}
		stats.StatusDistribution[string(status)] = count
	}

	for _, category := range model.AllCategories {
		count, err := s.repo.CountApprovedByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to count articles by category: %w", err)
		}
		stats.CategoryDistribution[category] = count
	}

	return stats, nil
}

// WarmResult はキャッシュウォームアップの結果。
type WarmResult struct {
	CachedArticles int `json:"cached_articles"`
	TotalArticles  int `json:"total_articles"`
}

// Warm は承認済み記事の上位topN件で各ビューを再発行する。
//  1. 上位topN件の単一記事ビュー
//  2. 承認済みセットビュー
//  3. 空でない全カテゴリビュー
//  4. 統計ビュー
//
// progressはnil可。呼び出しごとのおおよその進捗（0-100）を通知する。
func (s *Synchronizer) Warm(ctx context.Context, topN int, progress func(int)) (*WarmResult, error) {
	report := func(p int) {
		if progress != nil {
			progress(p)
		}
	}

	report(10)
	approved, err := s.repo.ListApproved(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved articles for warm: %w", err)
	}

	report(30)
	for _, article := range approved {
		s.views.PutArticle(ctx, article)
	}

	// 承認済みセットビューは読み取り経路と同じ上限で発行する
	set := approved
	if len(set) > ViewListLimit {
		set = set[:ViewListLimit]
	}
	s.views.PutApproved(ctx, set)

	report(50)
	for _, category := range model.AllCategories {
		articles, err := s.repo.ListApprovedByCategory(ctx, category, ViewListLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to query category %s for warm: %w", category, err)
		}
		if len(articles) > 0 {
			s.views.PutCategory(ctx, category, articles)
		}
	}

	report(70)
	stats, err := s.ComputeStats(ctx)
	if err != nil {
		return nil, err
	}
	s.views.PutStats(ctx, stats)

	report(100)
	s.logger.Info("キャッシュウォームアップが完了しました",
		slog.Int("cached_articles", len(approved)),
		slog.Int("total_articles", stats.TotalArticles),
	)

	return &WarmResult{
		CachedArticles: len(approved),
		TotalArticles:  stats.TotalArticles,
	}, nil
}

// InvalidateAll は5つの名前空間すべてのキーを削除し、削除した数を返す。
func (s *Synchronizer) InvalidateAll(ctx context.Context) int {
	deleted := s.views.InvalidateAll(ctx)
	s.logger.Info("全キャッシュビューを無効化しました",
		slog.Int("deleted_keys", deleted),
	)
	return deleted
}

// InvalidateCategory は指定カテゴリのビューのみを削除する。
func (s *Synchronizer) InvalidateCategory(ctx context.Context, category model.ArticleCategory) {
	s.views.InvalidateCategory(ctx, category)
	s.logger.Info("カテゴリビューを無効化しました",
		slog.String("category", string(category)),
	)
}
