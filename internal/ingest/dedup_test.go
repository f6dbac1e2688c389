package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
	"github.com/hitoshi/newsdesk/internal/security"
)

// mockArticleRepo はURL一意制約をシミュレートするリポジトリモック。
type mockArticleRepo struct {
	articles   map[string]*model.Article // key: URL
	racingURLs map[string]bool           // FindByURLでは見えないがCreateで制約違反するURL
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{
		articles:   make(map[string]*model.Article),
		racingURLs: make(map[string]bool),
	}
}

func (m *mockArticleRepo) FindByID(_ context.Context, id string) (*model.Article, error) {
	for _, a := range m.articles {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockArticleRepo) FindByURL(_ context.Context, url string) (*model.Article, error) {
	if a, ok := m.articles[url]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (m *mockArticleRepo) Create(_ context.Context, a *model.Article) error {
	if m.racingURLs[a.URL] {
		return repository.ErrDuplicateURL
	}
	if _, ok := m.articles[a.URL]; ok {
		return repository.ErrDuplicateURL
	}
	copied := *a
	m.articles[a.URL] = &copied
	return nil
}

func (m *mockArticleRepo) Update(_ context.Context, a *model.Article) error {
	copied := *a
	m.articles[a.URL] = &copied
	return nil
}

func (m *mockArticleRepo) UpdateScoring(_ context.Context, id string, status model.ArticleStatus, reason string, processedAt time.Time) error {
	for _, a := range m.articles {
		if a.ID == id {
			a.Status = status
			a.ApprovalReason = reason
			a.ProcessedAt = &processedAt
			a.UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.New("article not found")
}

func (m *mockArticleRepo) UpdateCategory(_ context.Context, id string, category model.ArticleCategory) error {
	for _, a := range m.articles {
		if a.ID == id {
			a.Category = category
			a.UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.New("article not found")
}

func (m *mockArticleRepo) List(_ context.Context, _ model.ArticleFilter) ([]*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListApproved(_ context.Context, _ int) ([]*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListApprovedByCategory(_ context.Context, _ model.ArticleCategory, _ int) ([]*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) CountAll(_ context.Context) (int, error) { return len(m.articles), nil }

func (m *mockArticleRepo) CountByStatus(_ context.Context, _ model.ArticleStatus) (int, error) {
	return 0, nil
}

func (m *mockArticleRepo) CountApprovedByCategory(_ context.Context, _ model.ArticleCategory) (int, error) {
	return 0, nil
}

func newTestDeduplicator(t *testing.T) (*Deduplicator, *mockArticleRepo, *cache.ViewCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.NewRedisStoreWithAddr(mr.Addr())
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	views := cache.NewViewCache(store, logger, cache.DefaultTTLConfig(), nil)
	repo := newMockArticleRepo()
	sync := cache.NewSynchronizer(repo, views, logger)
	dedup := NewDeduplicator(repo, security.NewContentSanitizer(), sync, nil, logger)
	return dedup, repo, views
}

func rawArticle(url string) model.RawArticle {
	return model.RawArticle{
		Title:       "Sample article for " + url,
		Description: "A reasonably long description for the sample article.",
		URL:         url,
	}
}

// TestProcessBatch_SavesNewArticles は新規レコードの保存とタスクファンアウトを検証する。
func TestProcessBatch_SavesNewArticles(t *testing.T) {
	dedup, repo, _ := newTestDeduplicator(t)
	ctx := context.Background()

	var dispatched []string
	result, err := dedup.ProcessBatch(ctx,
		[]model.RawArticle{rawArticle("https://example.com/1"), rawArticle("https://example.com/2")},
		func(id string) { dispatched = append(dispatched, id) },
		func(int) {},
	)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if result.SavedArticlesCount != 2 {
		t.Errorf("SavedArticlesCount = %d, want 2", result.SavedArticlesCount)
	}
	if len(result.SavedArticleIDs) != 2 {
		t.Errorf("len(SavedArticleIDs) = %d, want 2", len(result.SavedArticleIDs))
	}
	// 保存された記事ごとにタスクがファンアウトされる
	if len(dispatched) != 2 {
		t.Errorf("dispatched = %d articles, want 2", len(dispatched))
	}

	saved, _ := repo.FindByURL(ctx, "https://example.com/1")
	if saved == nil {
		t.Fatal("article should be persisted")
	}
	if saved.Status != model.ArticleStatusPending {
		t.Errorf("initial status = %q, want pending", saved.Status)
	}
	if saved.Category != model.CategoryUnset {
		t.Errorf("initial category = %q, want unset", saved.Category)
	}
	if saved.ID == "" {
		t.Error("persisted article should have an id")
	}
}

// TestProcessBatch_SkipsDuplicateURL は既存URLの再取り込みがスキップされ、
// 保存件数から除外されることを検証する。
func TestProcessBatch_SkipsDuplicateURL(t *testing.T) {
	dedup, _, _ := newTestDeduplicator(t)
	ctx := context.Background()

	first, err := dedup.ProcessBatch(ctx,
		[]model.RawArticle{rawArticle("https://example.com/1")},
		func(string) {}, func(int) {},
	)
	if err != nil {
		t.Fatalf("first ProcessBatch() error = %v", err)
	}
	if first.SavedArticlesCount != 1 {
		t.Fatalf("first SavedArticlesCount = %d, want 1", first.SavedArticlesCount)
	}

	// 同一URLの再取り込みは正常なスキップ
	var dispatched int
	second, err := dedup.ProcessBatch(ctx,
		[]model.RawArticle{rawArticle("https://example.com/1"), rawArticle("https://example.com/3")},
		func(string) { dispatched++ }, func(int) {},
	)
	if err != nil {
		t.Fatalf("second ProcessBatch() error = %v", err)
	}
	if second.SavedArticlesCount != 1 {
		t.Errorf("second SavedArticlesCount = %d, want 1 (duplicate excluded)", second.SavedArticlesCount)
	}
	if dispatched != 1 {
		t.Errorf("dispatched = %d, want 1 (no fan-out for duplicates)", dispatched)
	}
}

// TestProcessBatch_UniqueConstraintRace は事前チェックをすり抜けた並行重複が
// ストレージの一意制約で吸収され、スキップ扱いになることを検証する。
func TestProcessBatch_UniqueConstraintRace(t *testing.T) {
	dedup, repo, _ := newTestDeduplicator(t)
	repo.racingURLs["https://example.com/racing"] = true

	result, err := dedup.ProcessBatch(context.Background(),
		[]model.RawArticle{rawArticle("https://example.com/racing"), rawArticle("https://example.com/ok")},
		func(string) {}, func(int) {},
	)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if result.SavedArticlesCount != 1 {
		t.Errorf("SavedArticlesCount = %d, want 1 (constraint violation absorbed)", result.SavedArticlesCount)
	}
}

// TestProcessBatch_SanitizesContent は保存前にHTMLがサニタイズされることを検証する。
func TestProcessBatch_SanitizesContent(t *testing.T) {
	dedup, repo, _ := newTestDeduplicator(t)
	ctx := context.Background()

	record := model.RawArticle{
		Title:       "Article with scripted description",
		Description: `<p>Safe text</p><script>alert("xss")</script>`,
		Content:     `<img src="https://example.com/ok.png"><iframe src="https://evil.example"></iframe>`,
		URL:         "https://example.com/xss",
	}

	if _, err := dedup.ProcessBatch(ctx, []model.RawArticle{record}, func(string) {}, func(int) {}); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	saved, _ := repo.FindByURL(ctx, "https://example.com/xss")
	if saved == nil {
		t.Fatal("article should be persisted")
	}
	if strings.Contains(saved.Description, "<script") {
		t.Errorf("description should be sanitized: %q", saved.Description)
	}
	if !strings.Contains(saved.Description, "Safe text") {
		t.Errorf("safe content should survive sanitization: %q", saved.Description)
	}
	if strings.Contains(saved.Content, "<iframe") {
		t.Errorf("content should be sanitized: %q", saved.Content)
	}
}

// TestProcessBatch_InvalidatesListViewsOnlyWhenSaved は保存が発生したバッチのみが
// リストビューを無効化することを検証する。
func TestProcessBatch_InvalidatesListViewsOnlyWhenSaved(t *testing.T) {
	dedup, _, views := newTestDeduplicator(t)
	ctx := context.Background()

	seed := func() {
		views.PutList(ctx, model.ArticleFilter{Skip: 0, Limit: 20}, nil)
	}
	listCached := func() bool {
		_, found := views.GetList(ctx, model.ArticleFilter{Skip: 0, Limit: 20})
		return found
	}

	// 保存が発生したバッチはリストビューを無効化する
	seed()
	if _, err := dedup.ProcessBatch(ctx, []model.RawArticle{rawArticle("https://example.com/1")}, func(string) {}, func(int) {}); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if listCached() {
		t.Error("list view should be invalidated after a batch that saved articles")
	}

	// 全件重複のバッチはビューに触れない
	seed()
	if _, err := dedup.ProcessBatch(ctx, []model.RawArticle{rawArticle("https://example.com/1")}, func(string) {}, func(int) {}); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if !listCached() {
		t.Error("list view should survive an all-duplicate batch")
	}
}
