package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// ビュー名。メトリクスのラベルとして使用する。
const (
	viewArticle  = "article"
	viewList     = "list"
	viewCategory = "category"
	viewApproved = "approved"
	viewStats    = "stats"
)

// MetricsRecorder はキャッシュのヒット/ミス/エラーを記録するインターフェース。
type MetricsRecorder interface {
	RecordCacheHit(view string)
	RecordCacheMiss(view string)
	RecordCacheError(view string)
}

// noopMetrics はメトリクス未設定時のno-op実装。
type noopMetrics struct{}

func (noopMetrics) RecordCacheHit(string)   {}
func (noopMetrics) RecordCacheMiss(string)  {}
func (noopMetrics) RecordCacheError(string) {}

// TTLConfig はビューのTTLクラスを保持する。
type TTLConfig struct {
	Default time.Duration // 単一記事・リスト・カテゴリビュー
	Long    time.Duration // 承認済みセットビュー
	Stats   time.Duration // 統計ビュー
}

// DefaultTTLConfig はデフォルトのTTL設定を返す。
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Default: time.Hour,
		Long:    24 * time.Hour,
		Stats:   5 * time.Minute,
	}
}

// ViewCache は5種類のキャッシュビュー（単一記事、フィルタ付きリスト、カテゴリ、
// 承認済みセット、統計）の読み書きを提供する。
// キャッシュストアの障害は呼び出し元のリクエストを失敗させない：
// 読み書きのエラーはすべてログに記録し、ミスまたはno-opとして扱う。
type ViewCache struct {
	store   Store
	logger  *slog.Logger
	ttl     TTLConfig
	metrics MetricsRecorder
}

// NewViewCache はViewCacheを生成する。metricsがnilの場合はno-opを使用する。
func NewViewCache(store Store, logger *slog.Logger, ttl TTLConfig, metrics MetricsRecorder) *ViewCache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ViewCache{
		store:   store,
		logger:  logger,
		ttl:     ttl,
		metrics: metrics,
	}
}

// GetArticle は単一記事ビューを取得する。
func (c *ViewCache) GetArticle(ctx context.Context, articleID string) (*model.Article, bool) {
	var article model.Article
	if !c.getJSON(ctx, articleKey(articleID), viewArticle, &article) {
		return nil, false
	}
	return &article, true
}

// PutArticle は単一記事ビューを設定する。
func (c *ViewCache) PutArticle(ctx context.Context, article *model.Article) {
	c.putJSON(ctx, articleKey(article.ID), viewArticle, article, c.ttl.Default)
}

// GetList はフィルタ付きリストビューを取得する。
func (c *ViewCache) GetList(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, bool) {
	var articles []*model.Article
	if !c.getJSON(ctx, listKey(filter), viewList, &articles) {
		return nil, false
	}
	return articles, true
}

// PutList はフィルタ付きリストビューを設定する。
func (c *ViewCache) PutList(ctx context.Context, filter model.ArticleFilter, articles []*model.Article) {
	c.putJSON(ctx, listKey(filter), viewList, articles, c.ttl.Default)
}

// GetCategory はカテゴリビュー（承認済み記事のみ）を取得する。
func (c *ViewCache) GetCategory(ctx context.Context, category model.ArticleCategory) ([]*model.Article, bool) {
	var articles []*model.Article
	if !c.getJSON(ctx, categoryKey(category), viewCategory, &articles) {
		return nil, false
	}
	return articles, true
}

// PutCategory はカテゴリビューを設定する。
func (c *ViewCache) PutCategory(ctx context.Context, category model.ArticleCategory, articles []*model.Article) {
	c.putJSON(ctx, categoryKey(category), viewCategory, articles, c.ttl.Default)
}

// GetApproved は承認済みセットビューを取得する。
func (c *ViewCache) GetApproved(ctx context.Context) ([]*model.Article, bool) {
	var articles []*model.Article
	if !c.getJSON(ctx, keyApproved, viewApproved, &articles) {
		return nil, false
	}
	return articles, true
}

// PutApproved は承認済みセットビューを設定する。長命TTL。
func (c *ViewCache) PutApproved(ctx context.Context, articles []*model.Article) {
	c.putJSON(ctx, keyApproved, viewApproved, articles, c.ttl.Long)
}

// GetStats は統計ビューを取得する。
func (c *ViewCache) GetStats(ctx context.Context) (*model.ArticleStats, bool) {
	var stats model.ArticleStats
	if !c.getJSON(ctx, keyStats, viewStats, &stats) {
		return nil, false
	}
	return &stats, true
}

// PutStats は統計ビューを設定する。極短命TTL。
func (c *ViewCache) PutStats(ctx context.Context, stats *model.ArticleStats) {
	c.putJSON(ctx, keyStats, viewStats, stats, c.ttl.Stats)
}

// InvalidateArticle は単一記事ビューを削除する。
func (c *ViewCache) InvalidateArticle(ctx context.Context, articleID string) {
	if _, err := c.store.Delete(ctx, articleKey(articleID)); err != nil {
		c.logCacheError("invalidate article view", viewArticle, err)
	}
}

// InvalidateFilteredLists は全フィルタ付きリストビューを削除し、削除した数を返す。
// カテゴリ・承認済み・統計ビューには触れない（それらは遅延再取得または
// スコアラー/カテゴライザ経路で更新される）。
func (c *ViewCache) InvalidateFilteredLists(ctx context.Context) int {
	deleted, err := c.store.DeleteByPattern(ctx, patternLists)
	if err != nil {
		c.logCacheError("invalidate list views", viewList, err)
		return 0
	}
	return deleted
}

// InvalidateCategory は指定カテゴリのビューのみを削除する。
// 他のカテゴリビューと承認済みセットビューには触れない。
func (c *ViewCache) InvalidateCategory(ctx context.Context, category model.ArticleCategory) {
	if _, err := c.store.Delete(ctx, categoryKey(category)); err != nil {
		c.logCacheError("invalidate category view", viewCategory, err)
	}
}

// InvalidateAll は5つの名前空間すべてのキーを削除し、削除した合計数を返す。
func (c *ViewCache) InvalidateAll(ctx context.Context) int {
	total := 0
	for _, pattern := range []string{patternArticles, patternLists, patternCategories} {
		deleted, err := c.store.DeleteByPattern(ctx, pattern)
		if err != nil {
			c.logCacheError("invalidate all views", pattern, err)
			continue
		}
		total += deleted
	}
	deleted, err := c.store.Delete(ctx, keyApproved, keyStats)
	if err != nil {
		c.logCacheError("invalidate all views", viewApproved, err)
		return total
	}
	return total + deleted
}

// Info はキャッシュストアの診断情報とキャッシュ済みキーの集計を返す。
func (c *ViewCache) Info(ctx context.Context) (*model.CacheInfo, error) {
	storeInfo, err := c.store.Info(ctx)
	if err != nil {
		return nil, err
	}

	info := &model.CacheInfo{
		UsedMemory:       storeInfo.UsedMemory,
		ConnectedClients: storeInfo.ConnectedClients,
		UptimeSeconds:    storeInfo.UptimeSeconds,
	}

	// キー集計はベストエフォート。失敗はログのみ。
	if n, err := c.store.CountKeys(ctx, patternArticles); err == nil {
		info.CachedArticlesCount = n
	} else {
		c.logCacheError("count article keys", viewArticle, err)
	}
	if n, err := c.store.CountKeys(ctx, patternLists); err == nil {
		info.CachedListsCount = n
	} else {
		c.logCacheError("count list keys", viewList, err)
	}
	if n, err := c.store.CountKeys(ctx, patternCategories); err == nil {
		info.CachedCategoriesCount = n
	} else {
		c.logCacheError("count category keys", viewCategory, err)
	}
	if ok, err := c.store.Exists(ctx, keyApproved); err == nil {
		info.HasApprovedArticleCache = ok
	}
	if ok, err := c.store.Exists(ctx, keyStats); err == nil {
		info.HasStatsCache = ok
	}

	return info, nil
}

// getJSON はキーの値を取得してJSONデコードする。
// ストア障害・デコード失敗はミスとして扱い、リクエストを失敗させない。
func (c *ViewCache) getJSON(ctx context.Context, key, view string, dest any) bool {
	val, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logCacheError("cache read", view, err)
		c.metrics.RecordCacheError(view)
		return false
	}
	if !found {
		c.metrics.RecordCacheMiss(view)
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.logCacheError("cache decode", view, err)
		c.metrics.RecordCacheError(view)
		return false
	}
	c.metrics.RecordCacheHit(view)
	return true
}

// putJSON は値をJSONエンコードしてTTL付きで設定する。
// ストア障害はログのみで呼び出し元には伝播しない。
func (c *ViewCache) putJSON(ctx context.Context, key, view string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logCacheError("cache encode", view, err)
		return
	}
	if err := c.store.Set(ctx, key, string(data), ttl); err != nil {
		c.logCacheError("cache write", view, err)
		c.metrics.RecordCacheError(view)
	}
}

// logCacheError はキャッシュ障害をログに記録する。
// キャッシュ障害は正規ストレージへのフォールバックで吸収されるため、WARNレベル。
func (c *ViewCache) logCacheError(op, view string, err error) {
	c.logger.Warn("キャッシュ操作に失敗しました（正規ストレージへフォールバック）",
		slog.String("op", op),
		slog.String("view", view),
		slog.String("error", err.Error()),
	)
}
