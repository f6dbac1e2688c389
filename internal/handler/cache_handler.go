package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/task"
)

// warmTopN はウォームアップで単一記事ビューを発行する承認済み記事の上限。
const warmTopN = 500

// CacheSyncInterface はキャッシュ管理ハンドラーが必要とする同期機構のインターフェース。
type CacheSyncInterface interface {
	Warm(ctx context.Context, topN int, progress func(int)) (*cache.WarmResult, error)
	InvalidateAll(ctx context.Context) int
	InvalidateCategory(ctx context.Context, category model.ArticleCategory)
}

// CacheViewInterface はキャッシュ管理ハンドラーが必要とするビュー操作のインターフェース。
type CacheViewInterface interface {
	InvalidateArticle(ctx context.Context, articleID string)
	Info(ctx context.Context) (*model.CacheInfo, error)
}

// TaskSubmitter はタスクディスパッチのインターフェース。
type TaskSubmitter interface {
	Submit(ctx context.Context, kind model.TaskKind, fn task.Func) string
}

// CacheHandler はキャッシュ管理のHTTPハンドラー。
type CacheHandler struct {
	sync   CacheSyncInterface
	views  CacheViewInterface
	runner TaskSubmitter
}

// NewCacheHandler はCacheHandlerを生成する。
func NewCacheHandler(sync CacheSyncInterface, views CacheViewInterface, runner TaskSubmitter) *CacheHandler {
	return &CacheHandler{
		sync:   sync,
		views:  views,
		runner: runner,
	}
}

// WarmCache はキャッシュウォームアップタスクをディスパッチする。
// POST /api/cache/warm
func (h *CacheHandler) WarmCache(w http.ResponseWriter, r *http.Request) {
	taskID := h.runner.Submit(r.Context(), model.TaskKindCacheWarm, func(ctx context.Context, progress func(int)) (any, error) {
		return h.sync.Warm(ctx, warmTopN, progress)
	})

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:  taskID,
		Status:  "processing",
		Message: "Started cache warming process",
	})
}

// InvalidateAll は全キャッシュビューを無効化する。
// DELETE /api/cache/invalidate
func (h *CacheHandler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	deleted := h.sync.InvalidateAll(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "All caches invalidated successfully",
		"invalidated_keys": deleted,
	})
}

// InvalidateArticle は指定記事の単一記事ビューを無効化する。
// DELETE /api/cache/articles/{id}
func (h *CacheHandler) InvalidateArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	h.views.InvalidateArticle(r.Context(), articleID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Cache invalidated for article %s", articleID),
	})
}

// InvalidateCategory は指定カテゴリのビューのみを無効化する。
// DELETE /api/cache/category/{category}
func (h *CacheHandler) InvalidateCategory(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "category")

	category := model.ArticleCategory(raw)
	if !category.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(raw))
		return
	}

	h.sync.InvalidateCategory(r.Context(), category)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Cache invalidated for category: %s", raw),
	})
}

// GetCacheInfo はキャッシュストアの診断情報を取得する。
// GET /api/cache/info
func (h *CacheHandler) GetCacheInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.views.Info(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
