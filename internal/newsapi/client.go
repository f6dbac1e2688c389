// Package newsapi はNewsAPI連携機能を提供する。
// everythingエンドポイントの呼び出しと、レスポンスの正規化レコードへの変換を含む。
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// FetchParams はNewsAPIのクエリパラメータ。
type FetchParams struct {
	Query    string
	Language string
	SortBy   string
	PageSize int
	Page     int
}

// applyDefaults は未指定のパラメータにデフォルト値を補完する。
func (p *FetchParams) applyDefaults() {
	if p.Language == "" {
		p.Language = "en"
	}
	if p.SortBy == "" {
		p.SortBy = "publishedAt"
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.Page <= 0 {
		p.Page = 1
	}
}

// apiResponse はNewsAPIのeverythingエンドポイントのレスポンス形式。
type apiResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

type apiArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Client はNewsAPIのクライアント。
// SSRF防止機能付きのHTTPクライアントを使用して記事を取得する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Fetch はNewsAPIから記事を取得し、正規化済みレコードのリストを返す。
// タイムスタンプや必須フィールドのパースに失敗したレコードはログに記録して
// スキップする。1件の不正レコードがバッチ全体を失敗させることはない。
func (c *Client) Fetch(ctx context.Context, params FetchParams) ([]model.RawArticle, error) {
	params.applyDefaults()

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("q", params.Query)
	q.Set("language", params.Language)
	q.Set("sortBy", params.SortBy)
	q.Set("pageSize", strconv.Itoa(params.PageSize))
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("apiKey", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Newsdesk/1.0 News Aggregator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("NewsAPIの呼び出しに失敗しました",
			slog.String("query", params.Query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("NewsAPIへの接続に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("NewsAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("query", params.Query),
		)
		return nil, fmt.Errorf("NewsAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	records := make([]model.RawArticle, 0, len(decoded.Articles))
	for _, a := range decoded.Articles {
		record, ok := c.normalize(a)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// removedTombstone は削除済み記事に対してNewsAPIが返すプレースホルダー。
const removedTombstone = "[Removed]"

// normalize はNewsAPIの記事を正規化済みレコードに変換する。
// 必須フィールド（title, url）の欠落、削除済みプレースホルダー、
// タイムスタンプのパース失敗はログに記録してレコードを破棄する。
func (c *Client) normalize(a apiArticle) (model.RawArticle, bool) {
	if a.Title == "" || a.URL == "" {
		c.logger.Warn("必須フィールドが欠落したレコードをスキップします",
			slog.String("url", a.URL),
			slog.String("title", a.Title),
		)
		return model.RawArticle{}, false
	}
	if a.Title == removedTombstone {
		c.logger.Warn("削除済みプレースホルダーのレコードをスキップします",
			slog.String("url", a.URL),
		)
		return model.RawArticle{}, false
	}

	var publishedAt *time.Time
	if a.PublishedAt != "" {
		t, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			c.logger.Warn("公開日時のパースに失敗したレコードをスキップします",
				slog.String("url", a.URL),
				slog.String("published_at", a.PublishedAt),
				slog.String("error", err.Error()),
			)
			return model.RawArticle{}, false
		}
		publishedAt = &t
	}

	return model.RawArticle{
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		URL:         a.URL,
		ImageURL:    a.URLToImage,
		PublishedAt: publishedAt,
		SourceName:  a.Source.Name,
		Author:      a.Author,
	}, true
}
