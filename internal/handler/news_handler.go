package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/newsapi"
)

// IngestServiceInterface はニュース取り込みハンドラーが必要とするサービスインターフェース。
// フェッチは同期的に行い、保存と後続処理をタスクにディスパッチする。
type IngestServiceInterface interface {
	SubmitFetch(ctx context.Context, params newsapi.FetchParams) (taskID string, count int, err error)
	SubmitFeed(ctx context.Context, feedURL string) (taskID string, count int, err error)
}

// NewsHandler は外部ソースからの記事取り込みのHTTPハンドラー。
type NewsHandler struct {
	service IngestServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service IngestServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// fetchNewsRequest はNewsAPIフェッチリクエストのボディ。
type fetchNewsRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	SortBy   string `json:"sort_by"`
	PageSize int    `json:"page_size"`
	Page     int    `json:"page"`
}

// fetchFeedRequest はRSS/Atomフィードフェッチリクエストのボディ。
type fetchFeedRequest struct {
	FeedURL string `json:"feed_url"`
}

// FetchNews はNewsAPIから記事をフェッチし、取り込みタスクをディスパッチする。
// POST /api/news/fetch
func (h *NewsHandler) FetchNews(w http.ResponseWriter, r *http.Request) {
	var req fetchNewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "検索クエリが指定されていません。",
			Category: "validation",
			Action:   "queryフィールドに検索キーワードを指定してください。",
		})
		return
	}

	taskID, count, err := h.service.SubmitFetch(r.Context(), newsapi.FetchParams{
		Query:    req.Query,
		Language: req.Language,
		SortBy:   req.SortBy,
		PageSize: req.PageSize,
		Page:     req.Page,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:  taskID,
		Status:  "processing",
		Message: fmt.Sprintf("Started processing %d articles", count),
	})
}

// FetchFeed はRSS/Atomフィードから記事をフェッチし、取り込みタスクをディスパッチする。
// フィードURLの自動検出とSSRF防止を行う。
// POST /api/news/fetch-feed
func (h *NewsHandler) FetchFeed(w http.ResponseWriter, r *http.Request) {
	var req fetchFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.FeedURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("フィードURLが空です"))
		return
	}

	taskID, count, err := h.service.SubmitFeed(r.Context(), req.FeedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:  taskID,
		Status:  "processing",
		Message: fmt.Sprintf("Started processing %d articles", count),
	})
}
