// Package ingest は記事取り込みパイプラインを提供する。
// URL重複排除、サニタイズ、永続化、後続タスクのファンアウトを含む。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
)

// Sanitizer はHTMLコンテンツのサニタイズを抽象化するインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// MetricsRecorder は取り込みメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordArticleIngested()
	RecordDuplicateSkipped()
}

// noopMetrics はメトリクス未設定時のno-op実装。
type noopMetrics struct{}

func (noopMetrics) RecordArticleIngested()  {}
func (noopMetrics) RecordDuplicateSkipped() {}

// Result は取り込みバッチの成功結果ペイロード。
type Result struct {
	Status             string   `json:"status"`
	SavedArticlesCount int      `json:"saved_articles_count"`
	SavedArticleIDs    []string `json:"saved_article_ids"`
}

// Deduplicator は正規化済みレコードのバッチを重複排除して永続化する。
//
// URLの一意性は、アプリケーション側の事前チェックに加えてストレージ層の
// 一意制約で最終的に保証される。同一URLの並行取り込みが事前チェックを
// すり抜けても、制約違反をスキップとして吸収する。
// 重複も不正レコードも正常な結果であり、バッチを失敗させることはない。
type Deduplicator struct {
	repo      repository.ArticleRepository
	sanitizer Sanitizer
	sync      *cache.Synchronizer
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewDeduplicator はDeduplicatorを生成する。metricsがnilの場合はno-opを使用する。
func NewDeduplicator(
	repo repository.ArticleRepository,
	sanitizer Sanitizer,
	sync *cache.Synchronizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Deduplicator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Deduplicator{
		repo:      repo,
		sanitizer: sanitizer,
		sync:      sync,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessBatch はレコードのバッチを処理する。
// レコードごとに: URLで既存記事を確認し、存在すればスキップ。存在しなければ
// status=pending、category=未分類で永続化し、dispatchを呼んで承認タスクと
// カテゴリ分類タスクをファンアウトする。
// バッチ終了後、1件でも保存されていればリスト系ビューを無効化する。
// 戻り値は保存件数と保存した記事IDのリスト。
func (d *Deduplicator) ProcessBatch(
	ctx context.Context,
	records []model.RawArticle,
	dispatch func(articleID string),
	progress func(int),
) (*Result, error) {
	var savedIDs []string

	for i, record := range records {
		progress(i * 100 / len(records))

		existing, err := d.repo.FindByURL(ctx, record.URL)
		if err != nil {
			return nil, fmt.Errorf("URLによる記事の検索に失敗しました: %w", err)
		}
		if existing != nil {
			d.metrics.RecordDuplicateSkipped()
			d.logger.Info("重複URLのためスキップします",
				slog.String("url", record.URL),
			)
			continue
		}

		article := d.newArticle(record)
		if err := d.repo.Create(ctx, article); err != nil {
			if errors.Is(err, repository.ErrDuplicateURL) {
				// 並行取り込みとの競合。一意制約が吸収した重複もスキップ扱い。
				d.metrics.RecordDuplicateSkipped()
				d.logger.Info("一意制約により重複URLをスキップします",
					slog.String("url", record.URL),
				)
				continue
			}
			return nil, fmt.Errorf("記事の保存に失敗しました: %w", err)
		}

		d.metrics.RecordArticleIngested()
		savedIDs = append(savedIDs, article.ID)

		// 承認とカテゴリ分類は独立した2タスクとしてファンアウトする。
		// 片方の失敗がもう片方に波及しない。
		dispatch(article.ID)
	}

	if len(savedIDs) > 0 {
		d.sync.ArticleCreated(ctx)
	}

	progress(100)

	d.logger.Info("取り込みバッチが完了しました",
		slog.Int("record_count", len(records)),
		slog.Int("saved_count", len(savedIDs)),
	)

	return &Result{
		Status:             "completed",
		SavedArticlesCount: len(savedIDs),
		SavedArticleIDs:    savedIDs,
	}, nil
}

// newArticle は正規化済みレコードから保存用の記事を構築する。
// 説明文とコンテンツは保存前にサニタイズする。
func (d *Deduplicator) newArticle(record model.RawArticle) *model.Article {
	now := time.Now()
	return &model.Article{
		ID:          uuid.New().String(),
		Title:       record.Title,
		Description: d.sanitizer.Sanitize(record.Description),
		Content:     d.sanitizer.Sanitize(record.Content),
		URL:         record.URL,
		ImageURL:    record.ImageURL,
		PublishedAt: record.PublishedAt,
		SourceName:  record.SourceName,
		Author:      record.Author,
		Status:      model.ArticleStatusPending,
		Category:    model.CategoryUnset,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
