package rssfeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsdesk/internal/model"
)

// Client はRSS/Atomフィードから記事を取得するクライアント。
// フィードURL自動検出、SSRF検証、gofeedによるパース、
// 正規化レコードへの変換を実行する。
type Client struct {
	detector *Detector
	logger   *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(detector *Detector, logger *slog.Logger) *Client {
	return &Client{
		detector: detector,
		logger:   logger,
	}
}

// Fetch は指定URLのフィードを取得し、正規化済みレコードのリストを返す。
// 入力URLがHTMLページの場合はフィードリンクの自動検出を試みる。
// 必須フィールド（タイトル、リンク）を欠く記事はログに記録してスキップする。
func (c *Client) Fetch(ctx context.Context, inputURL string) ([]model.RawArticle, error) {
	feedURL, err := c.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	client := c.detector.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Newsdesk/1.0 News Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("フィードの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.detector.maxBody))
	if err != nil {
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		c.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchFailedError(fmt.Sprintf("フィードのパースに失敗: %v", err))
	}

	records := make([]model.RawArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		record, ok := c.normalize(item, parsed.Title)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// normalize はgofeedの記事を正規化済みレコードに変換する。
// タイトルまたはリンクを欠く記事はログに記録して破棄する。
func (c *Client) normalize(item *gofeed.Item, feedTitle string) (model.RawArticle, bool) {
	if item == nil || item.Title == "" || item.Link == "" {
		var link string
		if item != nil {
			link = item.Link
		}
		c.logger.Warn("必須フィールドが欠落したフィード記事をスキップします",
			slog.String("link", link),
		)
		return model.RawArticle{}, false
	}

	record := model.RawArticle{
		Title:       item.Title,
		Description: item.Description,
		Content:     item.Content,
		URL:         item.Link,
		SourceName:  feedTitle,
	}

	// Contentが空の場合はDescriptionを使用
	if record.Content == "" {
		record.Content = item.Description
	}

	if item.Author != nil {
		record.Author = item.Author.Name
	}
	if record.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		record.Author = item.Authors[0].Name
	}

	if item.Image != nil {
		record.ImageURL = item.Image.URL
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		record.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		record.PublishedAt = &t
	}

	return record, true
}
