package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/article"
	"github.com/hitoshi/newsdesk/internal/model"
)

// --- モック定義 ---

// mockArticleService はArticleServiceInterfaceのモック実装。
type mockArticleService struct {
	listFn          func(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error)
	getFn           func(ctx context.Context, articleID string, useCache bool) (*model.Article, error)
	getApprovedFn   func(ctx context.Context, useCache bool) ([]*model.Article, error)
	getByCategoryFn func(ctx context.Context, category string, useCache bool) ([]*model.Article, error)
	getStatsFn      func(ctx context.Context, useCache bool) (*model.ArticleStats, error)
	updateFn        func(ctx context.Context, articleID string, req article.UpdateRequest) (*model.Article, error)
}

func (m *mockArticleService) List(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, useCache)
	}
	return nil, nil
}

func (m *mockArticleService) Get(ctx context.Context, articleID string, useCache bool) (*model.Article, error) {
	if m.getFn != nil {
		return m.getFn(ctx, articleID, useCache)
	}
	return nil, model.NewArticleNotFoundError(articleID)
}

func (m *mockArticleService) GetApproved(ctx context.Context, useCache bool) ([]*model.Article, error) {
	if m.getApprovedFn != nil {
		return m.getApprovedFn(ctx, useCache)
	}
	return nil, nil
}

func (m *mockArticleService) GetByCategory(ctx context.Context, category string, useCache bool) ([]*model.Article, error) {
	if m.getByCategoryFn != nil {
		return m.getByCategoryFn(ctx, category, useCache)
	}
	return nil, nil
}

func (m *mockArticleService) GetStats(ctx context.Context, useCache bool) (*model.ArticleStats, error) {
	if m.getStatsFn != nil {
		return m.getStatsFn(ctx, useCache)
	}
	return &model.ArticleStats{}, nil
}

func (m *mockArticleService) Update(ctx context.Context, articleID string, req article.UpdateRequest) (*model.Article, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, articleID, req)
	}
	return nil, model.NewArticleNotFoundError(articleID)
}

// mockReprocessService はReprocessServiceのモック実装。
type mockReprocessService struct {
	reprocessFn func(ctx context.Context, articleID string) (string, error)
}

func (m *mockReprocessService) Reprocess(ctx context.Context, articleID string) (string, error) {
	if m.reprocessFn != nil {
		return m.reprocessFn(ctx, articleID)
	}
	return "", model.NewArticleNotFoundError(articleID)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func sampleArticle(id string) *model.Article {
	now := time.Date(2025, 8, 12, 10, 30, 0, 0, time.UTC)
	return &model.Article{
		ID:        id,
		Title:     "Sample article",
		URL:       "https://example.com/" + id,
		Status:    model.ArticleStatusApproved,
		Category:  model.CategoryScience,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- GET /api/articles テスト ---

func TestListArticles_PassesFilterAndUseCache(t *testing.T) {
	svc := &mockArticleService{
		listFn: func(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error) {
			if filter.Skip != 10 || filter.Limit != 20 {
				t.Errorf("pagination = (%d, %d), want (10, 20)", filter.Skip, filter.Limit)
			}
			if filter.Status == nil || *filter.Status != model.ArticleStatusApproved {
				t.Error("status filter should be approved")
			}
			if useCache {
				t.Error("use_cache=false should bypass cache")
			}
			return []*model.Article{sampleArticle("a1")}, nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := httptest.NewRequest(http.MethodGet, "/api/articles?skip=10&limit=20&status=approved&use_cache=false", nil)
	w := httptest.NewRecorder()
	h.ListArticles(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var articles []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&articles); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("articles length = %d, want 1", len(articles))
	}
	if articles[0]["id"] != "a1" {
		t.Errorf("article id = %v, want a1", articles[0]["id"])
	}
}

func TestListArticles_DefaultsAndEmptyResult(t *testing.T) {
	svc := &mockArticleService{
		listFn: func(ctx context.Context, filter model.ArticleFilter, useCache bool) ([]*model.Article, error) {
			if filter.Skip != 0 || filter.Limit != 100 {
				t.Errorf("pagination = (%d, %d), want defaults (0, 100)", filter.Skip, filter.Limit)
			}
			if !useCache {
				t.Error("use_cache should default to true")
			}
			return nil, nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	w := httptest.NewRecorder()
	h.ListArticles(w, req)

	// 0件でも空配列としてシリアライズされる
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestListArticles_InvalidStatus(t *testing.T) {
	h := NewArticleHandler(&mockArticleService{}, &mockReprocessService{})

	req := httptest.NewRequest(http.MethodGet, "/api/articles?status=archived", nil)
	w := httptest.NewRecorder()
	h.ListArticles(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if result := parseAPIErrorResponse(t, w); result["code"] != model.ErrCodeInvalidStatus {
		t.Errorf("error code = %s, want %s", result["code"], model.ErrCodeInvalidStatus)
	}
}

func TestListArticles_InvalidCategory(t *testing.T) {
	h := NewArticleHandler(&mockArticleService{}, &mockReprocessService{})

	req := httptest.NewRequest(http.MethodGet, "/api/articles?category=astrology", nil)
	w := httptest.NewRecorder()
	h.ListArticles(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if result := parseAPIErrorResponse(t, w); result["code"] != model.ErrCodeInvalidCategory {
		t.Errorf("error code = %s, want %s", result["code"], model.ErrCodeInvalidCategory)
	}
}

// --- GET /api/articles/{id} テスト ---

func TestGetArticle_Success(t *testing.T) {
	svc := &mockArticleService{
		getFn: func(ctx context.Context, articleID string, useCache bool) (*model.Article, error) {
			if articleID != "a1" {
				t.Errorf("articleID = %q, want a1", articleID)
			}
			return sampleArticle("a1"), nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/articles/a1", nil), "id", "a1")
	w := httptest.NewRecorder()
	h.GetArticle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "approved" || result["category"] != "science" {
		t.Errorf("response = %v", result)
	}
}

func TestGetArticle_NotFound(t *testing.T) {
	h := NewArticleHandler(&mockArticleService{}, &mockReprocessService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/articles/missing", nil), "id", "missing")
	w := httptest.NewRecorder()
	h.GetArticle(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if result := parseAPIErrorResponse(t, w); result["code"] != model.ErrCodeArticleNotFound {
		t.Errorf("error code = %s, want %s", result["code"], model.ErrCodeArticleNotFound)
	}
}

// --- PUT /api/articles/{id} テスト ---

func TestUpdateArticle_Success(t *testing.T) {
	svc := &mockArticleService{
		updateFn: func(ctx context.Context, articleID string, req article.UpdateRequest) (*model.Article, error) {
			if req.Status == nil || *req.Status != "approved" {
				t.Error("status should be passed through")
			}
			if req.ApprovalReason == nil || *req.ApprovalReason != "manually approved" {
				t.Error("approval_reason should be passed through")
			}
			updated := sampleArticle(articleID)
			updated.ApprovalReason = *req.ApprovalReason
			return updated, nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	body := bytes.NewBufferString(`{"status":"approved","approval_reason":"manually approved"}`)
	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/api/articles/a1", body), "id", "a1")
	w := httptest.NewRecorder()
	h.UpdateArticle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestUpdateArticle_InvalidBody(t *testing.T) {
	h := NewArticleHandler(&mockArticleService{}, &mockReprocessService{})

	body := bytes.NewBufferString(`{not json`)
	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/api/articles/a1", body), "id", "a1")
	w := httptest.NewRecorder()
	h.UpdateArticle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if result := parseAPIErrorResponse(t, w); result["code"] != model.ErrCodeInvalidRequest {
		t.Errorf("error code = %s, want %s", result["code"], model.ErrCodeInvalidRequest)
	}
}

func TestUpdateArticle_InvalidStatusFromService(t *testing.T) {
	svc := &mockArticleService{
		updateFn: func(ctx context.Context, articleID string, req article.UpdateRequest) (*model.Article, error) {
			return nil, model.NewInvalidStatusError(*req.Status)
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	body := bytes.NewBufferString(`{"status":"archived"}`)
	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/api/articles/a1", body), "id", "a1")
	w := httptest.NewRecorder()
	h.UpdateArticle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// --- POST /api/articles/{id}/reprocess テスト ---

func TestReprocessArticle_ReturnsTaskHandle(t *testing.T) {
	reprocess := &mockReprocessService{
		reprocessFn: func(ctx context.Context, articleID string) (string, error) {
			return "task-123", nil
		},
	}
	h := NewArticleHandler(&mockArticleService{}, reprocess)

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/api/articles/a1/reprocess", nil), "id", "a1")
	w := httptest.NewRecorder()
	h.ReprocessArticle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["task_id"] != "task-123" {
		t.Errorf("task_id = %q, want task-123", result["task_id"])
	}
	if result["status"] != "processing" {
		t.Errorf("status = %q, want processing", result["status"])
	}
}

func TestReprocessArticle_NotFound(t *testing.T) {
	h := NewArticleHandler(&mockArticleService{}, &mockReprocessService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/api/articles/missing/reprocess", nil), "id", "missing")
	w := httptest.NewRecorder()
	h.ReprocessArticle(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// --- GET /api/articles/stats/summary テスト ---

func TestGetArticlesSummary_ReturnsStats(t *testing.T) {
	svc := &mockArticleService{
		getStatsFn: func(ctx context.Context, useCache bool) (*model.ArticleStats, error) {
			return &model.ArticleStats{
				TotalArticles:      3,
				StatusDistribution: map[string]int{"pending": 1, "approved": 1, "rejected": 1},
				CategoryDistribution: map[model.ArticleCategory]int{
					model.CategoryScience: 1,
				},
			}, nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := httptest.NewRequest(http.MethodGet, "/api/articles/stats/summary", nil)
	w := httptest.NewRecorder()
	h.GetArticlesSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["total_articles"] != float64(3) {
		t.Errorf("total_articles = %v, want 3", result["total_articles"])
	}
}

// --- GET /api/articles/category/{category} テスト ---

func TestGetArticlesByCategory_PassesRawValue(t *testing.T) {
	svc := &mockArticleService{
		getByCategoryFn: func(ctx context.Context, category string, useCache bool) ([]*model.Article, error) {
			if category != "science" {
				t.Errorf("category = %q, want science", category)
			}
			return []*model.Article{sampleArticle("a1")}, nil
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/articles/category/science", nil), "category", "science")
	w := httptest.NewRecorder()
	h.GetArticlesByCategory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestGetArticlesByCategory_InvalidCategoryFromService(t *testing.T) {
	svc := &mockArticleService{
		getByCategoryFn: func(ctx context.Context, category string, useCache bool) ([]*model.Article, error) {
			return nil, model.NewInvalidCategoryError(category)
		},
	}
	h := NewArticleHandler(svc, &mockReprocessService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/articles/category/astrology", nil), "category", "astrology")
	w := httptest.NewRecorder()
	h.GetArticlesByCategory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
