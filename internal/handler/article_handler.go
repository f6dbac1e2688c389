package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/article"
	"github.com/hitoshi/newsdesk/internal/model"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	List(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error)
	Get(ctx context.Context, articleID string, useCache bool) (*model.Article, error)
	GetApproved(ctx context.Context, useCache bool) ([]*model.Article, error)
	GetByCategory(ctx context.Context, category string, useCache bool) ([]*model.Article, error)
	GetStats(ctx context.Context, useCache bool) (*model.ArticleStats, error)
	Update(ctx context.Context, articleID string, req article.UpdateRequest) (*model.Article, error)
}

// ReprocessService は記事の再処理ディスパッチのインターフェース。
type ReprocessService interface {
	// Reprocess は承認とカテゴリ分類の両タスクをディスパッチし、承認タスクのIDを返す。
	Reprocess(ctx context.Context, articleID string) (string, error)
}

// ArticleHandler は記事のHTTPハンドラー。
type ArticleHandler struct {
	service   ArticleServiceInterface
	reprocess ReprocessService
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, reprocess ReprocessService) *ArticleHandler {
	return &ArticleHandler{
		service:   service,
		reprocess: reprocess,
	}
}

// updateArticleRequest は記事の直接編集リクエストのボディ。
type updateArticleRequest struct {
	Status         *string `json:"status"`
	Category       *string `json:"category"`
	ApprovalReason *string `json:"approval_reason"`
}

// ListArticles は記事一覧をフィルタ付きで取得する。
// GET /api/articles?skip=0&limit=100&status=&category=&use_cache=true
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.ArticleFilter{
		Skip:  parseIntParam(q.Get("skip"), 0),
		Limit: parseIntParam(q.Get("limit"), 100),
	}

	if raw := q.Get("status"); raw != "" {
		status := model.ArticleStatus(raw)
		if !status.IsValid() {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(raw))
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("category"); raw != "" {
		category := model.ArticleCategory(raw)
		if !category.IsValid() {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(raw))
			return
		}
		filter.Category = &category
	}

	articles, err := h.service.List(r.Context(), filter, parseUseCache(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponses(articles))
}

// GetApprovedArticles は承認済み記事を取得する。公開向けの最適化されたエンドポイント。
// GET /api/articles/approved?use_cache=true
func (h *ArticleHandler) GetApprovedArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.GetApproved(r.Context(), parseUseCache(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponses(articles))
}

// GetArticlesByCategory は指定カテゴリの承認済み記事を取得する。
// GET /api/articles/category/{category}?use_cache=true
func (h *ArticleHandler) GetArticlesByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	articles, err := h.service.GetByCategory(r.Context(), category, parseUseCache(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponses(articles))
}

// GetArticle は指定IDの記事を取得する。
// GET /api/articles/{id}?use_cache=true
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), articleID, parseUseCache(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponse(found))
}

// UpdateArticle は記事のステータス・カテゴリ・承認理由を直接編集する。
// PUT /api/articles/{id}
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	var req updateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), articleID, article.UpdateRequest{
		Status:         req.Status,
		Category:       req.Category,
		ApprovalReason: req.ApprovalReason,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponse(updated))
}

// ReprocessArticle は記事の承認とカテゴリ分類の再処理をディスパッチする。
// POST /api/articles/{id}/reprocess
func (h *ArticleHandler) ReprocessArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	taskID, err := h.reprocess.Reprocess(r.Context(), articleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:  taskID,
		Status:  "processing",
		Message: "Started reprocessing article " + articleID,
	})
}

// GetArticlesSummary は記事の集計統計を取得する。
// GET /api/articles/stats/summary?use_cache=true
func (h *ArticleHandler) GetArticlesSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), parseUseCache(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// parseIntParam はクエリパラメータを整数として解釈する。不正値・省略時はデフォルト値。
func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
