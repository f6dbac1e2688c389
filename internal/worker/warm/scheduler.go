// Package warm はキャッシュウォームアップの定期実行を提供する。
// 承認済み記事のビューを定期的に再発行し、TTL失効後の初回リクエストの
// レイテンシ悪化を抑える。
package warm

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newsdesk/internal/cache"
)

// Warmer はキャッシュウォームアップの実行インターフェース。
type Warmer interface {
	Warm(ctx context.Context, topN int, progress func(int)) (*cache.WarmResult, error)
}

// defaultTopN は定期ウォームアップで発行する承認済み記事の上限。
const defaultTopN = 500

// Scheduler はキャッシュウォームアップのスケジューリングを行う。
// intervalが0以下の場合は無効化され、Startは何もせず即座に戻る。
type Scheduler struct {
	warmer   Warmer
	logger   *slog.Logger
	interval time.Duration
	topN     int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// topNが0以下の場合はデフォルト値500を使用する。
func NewScheduler(warmer Warmer, logger *slog.Logger, interval time.Duration, topN int) *Scheduler {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Scheduler{
		warmer:   warmer,
		logger:   logger,
		interval: interval,
		topN:     topN,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("ウォームアップスケジューラは無効化されています")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("ウォームアップスケジューラを開始しました",
		slog.Duration("interval", s.interval),
		slog.Int("top_n", s.topN),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ウォームアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ウォームアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ウォームアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はウォームアップを1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	result, err := s.warmer.Warm(ctx, s.topN, nil)
	if err != nil {
		return err
	}

	s.logger.Info("定期ウォームアップが完了しました",
		slog.Int("cached_articles", result.CachedArticles),
		slog.Int("total_articles", result.TotalArticles),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
