// Package article は記事の読み取りと直接編集の境界サービスを提供する。
// クエリ可能な読み取り経路はすべてリードスルーキャッシュを経由する:
// ビューにヒットすればそれを返し、ミスなら正規ストレージへ問い合わせて
// ビューをTTL付きで発行してから返す。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
)

// UpdateRequest は記事の直接編集の入力。nilのフィールドは変更なしを意味する。
type UpdateRequest struct {
	Status         *string
	Category       *string
	ApprovalReason *string
}

// Service は記事の読み取り・編集サービス。
type Service struct {
	repo   repository.ArticleRepository
	views  *cache.ViewCache
	sync   *cache.Synchronizer
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	repo repository.ArticleRepository,
	views *cache.ViewCache,
	sync *cache.Synchronizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		views:  views,
		sync:   sync,
		logger: logger,
	}
}

// List は記事一覧をフィルタ付きで取得する。
// useCacheがfalseの場合はキャッシュを迂回して正規ストレージを直接読む。
func (s *Service) List(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error) {
	if useCache {
		if articles, found := s.views.GetList(ctx, filter); found {
			return articles, nil
		}
	}

	articles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	if useCache && len(articles) > 0 {
		s.views.PutList(ctx, filter, articles)
	}
	return articles, nil
}

// Get は指定IDの記事を取得する。
func (s *Service) Get(ctx context.Context, articleID string, useCache bool) (*model.Article, error) {
	if useCache {
		if article, found := s.views.GetArticle(ctx, articleID); found {
			return article, nil
		}
	}

	article, err := s.repo.FindByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(articleID)
	}

	if useCache {
		s.views.PutArticle(ctx, article)
	}
	return article, nil
}

// GetApproved は承認済み記事を最大50件取得する。公開向けの最適化された読み取り経路。
func (s *Service) GetApproved(ctx context.Context, useCache bool) ([]*model.Article, error) {
	if useCache {
		if articles, found := s.views.GetApproved(ctx); found {
			return articles, nil
		}
	}

	articles, err := s.repo.ListApproved(ctx, cache.ViewListLimit)
	if err != nil {
		return nil, fmt.Errorf("承認済み記事の取得に失敗しました: %w", err)
	}

	if useCache {
		s.views.PutApproved(ctx, articles)
	}
	return articles, nil
}

// GetByCategory は指定カテゴリの承認済み記事を最大50件取得する。
// ドメイン外のカテゴリ値は境界で弾く。
func (s *Service) GetByCategory(ctx context.Context, category string, useCache bool) ([]*model.Article, error) {
	cat := model.ArticleCategory(category)
	if !cat.IsValid() {
		return nil, model.NewInvalidCategoryError(category)
	}

	if useCache {
		if articles, found := s.views.GetCategory(ctx, cat); found {
			return articles, nil
		}
	}

	articles, err := s.repo.ListApprovedByCategory(ctx, cat, cache.ViewListLimit)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ別記事の取得に失敗しました: %w", err)
	}

	if useCache {
		s.views.PutCategory(ctx, cat, articles)
	}
	return articles, nil
}

// GetStats は記事の集計統計を取得する。
func (s *Service) GetStats(ctx context.Context, useCache bool) (*model.ArticleStats, error) {
	if useCache {
		if stats, found := s.views.GetStats(ctx); found {
			return stats, nil
		}
	}

	stats, err := s.sync.ComputeStats(ctx)
	if err != nil {
		return nil, err
	}

	if useCache {
		s.views.PutStats(ctx, stats)
	}
	return stats, nil
}

// Update は記事のステータス・カテゴリ・承認理由を直接編集する。
// ドメイン外の値は境界で弾き、コアにはドメイン内の値のみを渡す。
// 編集後は正規ストレージの新鮮な状態からビューを更新する。
func (s *Service) Update(ctx context.Context, articleID string, req UpdateRequest) (*model.Article, error) {
	article, err := s.repo.FindByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(articleID)
	}

	if req.Status != nil {
		status := model.ArticleStatus(*req.Status)
		if !status.IsValid() {
			return nil, model.NewInvalidStatusError(*req.Status)
		}
		article.Status = status
	}
	if req.Category != nil {
		category := model.ArticleCategory(*req.Category)
		if !category.IsValid() {
			return nil, model.NewInvalidCategoryError(*req.Category)
		}
		article.Category = category
	}
	if req.ApprovalReason != nil {
		article.ApprovalReason = *req.ApprovalReason
	}

	article.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, article); err != nil {
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}

	if err := s.sync.ArticleEdited(ctx, article.ID); err != nil {
		return nil, err
	}

	s.logger.Info("記事を直接編集しました",
		slog.String("article_id", article.ID),
		slog.String("status", string(article.Status)),
		slog.String("category", string(article.Category)),
	)
	return article, nil
}
