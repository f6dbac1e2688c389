// Package handler はHTTP APIのハンドラー層を提供する。
// ドメイン外の値の検証とDTO変換を行い、コアにはドメイン内の値のみを渡す。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsdesk/internal/middleware"
	"github.com/hitoshi/newsdesk/internal/model"
)

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Content        string     `json:"content,omitempty"`
	URL            string     `json:"url"`
	URLToImage     string     `json:"url_to_image,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	SourceName     string     `json:"source_name,omitempty"`
	Author         string     `json:"author,omitempty"`
	Status         string     `json:"status"`
	Category       string     `json:"category,omitempty"`
	ApprovalReason string     `json:"approval_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// taskResponse はタスクディスパッチのAPIレスポンス。
type taskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// toArticleResponse はmodel.ArticleからAPIレスポンスに変換する。
func toArticleResponse(article *model.Article) articleResponse {
	return articleResponse{
		ID:             article.ID,
		Title:          article.Title,
		Description:    article.Description,
		Content:        article.Content,
		URL:            article.URL,
		URLToImage:     article.ImageURL,
		PublishedAt:    article.PublishedAt,
		SourceName:     article.SourceName,
		Author:         article.Author,
		Status:         string(article.Status),
		Category:       string(article.Category),
		ApprovalReason: article.ApprovalReason,
		CreatedAt:      article.CreatedAt,
		UpdatedAt:      article.UpdatedAt,
		ProcessedAt:    article.ProcessedAt,
	}
}

// toArticleResponses は記事スライスをAPIレスポンスに変換する。
// nilスライスでも空配列としてシリアライズする。
func toArticleResponses(articles []*model.Article) []articleResponse {
	responses := make([]articleResponse, 0, len(articles))
	for _, article := range articles {
		responses = append(responses, toArticleResponse(article))
	}
	return responses
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequestBody はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeArticleNotFound, model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidStatus, model.ErrCodeInvalidCategory,
		model.ErrCodeInvalidURL, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeNoArticlesFound:
		return http.StatusNotFound
	case model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseUseCache はuse_cacheクエリパラメータを解釈する。省略時はtrue。
func parseUseCache(r *http.Request) bool {
	return r.URL.Query().Get("use_cache") != "false"
}
