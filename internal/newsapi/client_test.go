package newsapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(server.Client(), logger, server.URL, "test-api-key")
}

// TestFetch_NormalizesArticles はレスポンスの正規化を検証する。
func TestFetch_NormalizesArticles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "golang" {
			t.Errorf("query q = %q, want golang", q.Get("q"))
		}
		if q.Get("apiKey") != "test-api-key" {
			t.Errorf("apiKey = %q, want test-api-key", q.Get("apiKey"))
		}
		// デフォルトパラメータの補完
		if q.Get("language") != "en" || q.Get("sortBy") != "publishedAt" || q.Get("pageSize") != "20" || q.Get("page") != "1" {
			t.Errorf("default params not applied: %v", q)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": "ok",
			"totalResults": 1,
			"articles": [{
				"source": {"id": null, "name": "Example News"},
				"author": "Jane Writer",
				"title": "Go 1.25 released",
				"description": "The Go team has released version 1.25.",
				"url": "https://example.com/go-release",
				"urlToImage": "https://example.com/image.png",
				"publishedAt": "2025-08-12T10:30:00Z",
				"content": "Full release notes here."
			}]
		}`)
	})

	records, err := client.Fetch(context.Background(), FetchParams{Query: "golang"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	r := records[0]
	if r.Title != "Go 1.25 released" {
		t.Errorf("title = %q", r.Title)
	}
	if r.URL != "https://example.com/go-release" {
		t.Errorf("url = %q", r.URL)
	}
	if r.SourceName != "Example News" {
		t.Errorf("source name = %q", r.SourceName)
	}
	if r.Author != "Jane Writer" {
		t.Errorf("author = %q", r.Author)
	}
	if r.PublishedAt == nil {
		t.Fatal("published at should be parsed")
	}
	if r.PublishedAt.Hour() != 10 {
		t.Errorf("published hour = %d, want 10", r.PublishedAt.Hour())
	}
}

// TestFetch_DropsMalformedRecords は不正レコードがバッチを失敗させず
// スキップされることを検証する。
func TestFetch_DropsMalformedRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": "ok",
			"totalResults": 4,
			"articles": [
				{"source": {"name": "A"}, "title": "Valid article one", "url": "https://example.com/1", "publishedAt": "2025-08-12T10:30:00Z"},
				{"source": {"name": "B"}, "title": "", "url": "https://example.com/2"},
				{"source": {"name": "C"}, "title": "Missing URL", "url": ""},
				{"source": {"name": "D"}, "title": "Bad timestamp", "url": "https://example.com/4", "publishedAt": "not-a-date"}
			]
		}`)
	})

	records, err := client.Fetch(context.Background(), FetchParams{Query: "anything"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1 (malformed records skipped)", len(records))
	}
	if records[0].URL != "https://example.com/1" {
		t.Errorf("surviving record url = %q", records[0].URL)
	}
}

// TestFetch_DropsRemovedTombstones はNewsAPIの削除済みプレースホルダー記事が
// 破棄されることを検証する。
func TestFetch_DropsRemovedTombstones(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": "ok",
			"totalResults": 2,
			"articles": [
				{"source": {"name": "A"}, "title": "Valid article one", "url": "https://example.com/1", "publishedAt": "2025-08-12T10:30:00Z"},
				{"source": {"name": "[Removed]"}, "title": "[Removed]", "url": "https://removed.com", "publishedAt": "2025-08-12T11:00:00Z"}
			]
		}`)
	})

	records, err := client.Fetch(context.Background(), FetchParams{Query: "anything"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1 (tombstone skipped)", len(records))
	}
	if records[0].URL != "https://example.com/1" {
		t.Errorf("surviving record url = %q", records[0].URL)
	}
}

// TestFetch_MissingTimestampIsAllowed は公開日時なしのレコードが保持されることを検証する。
func TestFetch_MissingTimestampIsAllowed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": "ok",
			"totalResults": 1,
			"articles": [{"source": {"name": "A"}, "title": "No timestamp article", "url": "https://example.com/1"}]
		}`)
	})

	records, err := client.Fetch(context.Background(), FetchParams{Query: "anything"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].PublishedAt != nil {
		t.Error("published at should be nil when absent")
	}
}

// TestFetch_ErrorStatus はAPIのエラーステータスがエラーとして返ることを検証する。
func TestFetch_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.Fetch(context.Background(), FetchParams{Query: "anything"}); err == nil {
		t.Error("Fetch() should fail on a non-200 status")
	}
}
