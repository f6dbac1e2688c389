package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/newsapi"
	"github.com/hitoshi/newsdesk/internal/repository"
	"github.com/hitoshi/newsdesk/internal/task"
)

// NewsSource はNewsAPIからの記事取得を抽象化するインターフェース。
type NewsSource interface {
	Fetch(ctx context.Context, params newsapi.FetchParams) ([]model.RawArticle, error)
}

// FeedSource はRSS/Atomフィードからの記事取得を抽象化するインターフェース。
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]model.RawArticle, error)
}

// ArticleProcessor は記事単位のバックグラウンド処理を抽象化するインターフェース。
// 承認スコアリングとカテゴリ分類の両方がこの形に従う。
type ArticleProcessor interface {
	Process(ctx context.Context, articleID string, progress func(int)) (any, error)
}

// Service は記事取り込みの境界サービス。
// 外部ソースからの取得、取り込みタスクのディスパッチ、再処理を提供する。
type Service struct {
	runner     *task.Runner
	dedup      *Deduplicator
	news       NewsSource
	feed       FeedSource
	repo       repository.ArticleRepository
	approval   ArticleProcessor
	categorize ArticleProcessor
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	runner *task.Runner,
	dedup *Deduplicator,
	news NewsSource,
	feed FeedSource,
	repo repository.ArticleRepository,
	approval ArticleProcessor,
	categorize ArticleProcessor,
	logger *slog.Logger,
) *Service {
	return &Service{
		runner:     runner,
		dedup:      dedup,
		news:       news,
		feed:       feed,
		repo:       repo,
		approval:   approval,
		categorize: categorize,
		logger:     logger,
	}
}

// SubmitFetch はNewsAPIから記事を取得し、取り込みタスクをディスパッチする。
// 取得は同期的に行い、0件の場合はエラーを返す。
// 戻り値は取り込みタスクのIDと取得レコード数。
func (s *Service) SubmitFetch(ctx context.Context, params newsapi.FetchParams) (string, int, error) {
	records, err := s.news.Fetch(ctx, params)
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, model.NewNoArticlesFoundError(params.Query)
	}

	taskID := s.submitIngest(ctx, records)
	s.logger.Info("NewsAPI取り込みタスクをディスパッチしました",
		slog.String("task_id", taskID),
		slog.String("query", params.Query),
		slog.Int("record_count", len(records)),
	)
	return taskID, len(records), nil
}

// SubmitFeed はRSS/Atomフィードから記事を取得し、取り込みタスクをディスパッチする。
// 入力URLがHTMLページの場合はフィードの自動検出を試みる。
func (s *Service) SubmitFeed(ctx context.Context, feedURL string) (string, int, error) {
	records, err := s.feed.Fetch(ctx, feedURL)
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, model.NewNoArticlesFoundError(feedURL)
	}

	taskID := s.submitIngest(ctx, records)
	s.logger.Info("フィード取り込みタスクをディスパッチしました",
		slog.String("task_id", taskID),
		slog.String("feed_url", feedURL),
		slog.Int("record_count", len(records)),
	)
	return taskID, len(records), nil
}

// Reprocess は既存記事の承認タスクとカテゴリ分類タスクを再ディスパッチする。
// 戻り値は承認タスクのID。
func (s *Service) Reprocess(ctx context.Context, articleID string) (string, error) {
	article, err := s.repo.FindByID(ctx, articleID)
	if err != nil {
		return "", fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return "", model.NewArticleNotFoundError(articleID)
	}

	approvalTaskID := s.DispatchArticleTasks(ctx, articleID)
	s.logger.Info("記事の再処理タスクをディスパッチしました",
		slog.String("article_id", articleID),
		slog.String("task_id", approvalTaskID),
	)
	return approvalTaskID, nil
}

// DispatchArticleTasks は記事の承認タスクとカテゴリ分類タスクをファンアウトする。
// 2つのタスクは独立に実行され、完了順序は保証されない。
// 戻り値は承認タスクのID。
func (s *Service) DispatchArticleTasks(ctx context.Context, articleID string) string {
	approvalTaskID := s.runner.Submit(ctx, model.TaskKindApproval, func(taskCtx context.Context, progress func(int)) (any, error) {
		return s.approval.Process(taskCtx, articleID, progress)
	})
	s.runner.Submit(ctx, model.TaskKindCategorize, func(taskCtx context.Context, progress func(int)) (any, error) {
		return s.categorize.Process(taskCtx, articleID, progress)
	})
	return approvalTaskID
}

// submitIngest は取り込みタスクをディスパッチする。
func (s *Service) submitIngest(ctx context.Context, records []model.RawArticle) string {
	return s.runner.Submit(ctx, model.TaskKindIngest, func(taskCtx context.Context, progress func(int)) (any, error) {
		result, err := s.dedup.ProcessBatch(taskCtx, records, func(articleID string) {
			s.DispatchArticleTasks(taskCtx, articleID)
		}, progress)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}
