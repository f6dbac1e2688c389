package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	RequestLogger     *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// 記事
	ArticleService   ArticleServiceInterface
	ReprocessService ReprocessService

	// 取り込み
	IngestService IngestServiceInterface

	// タスク
	TaskRunner interface {
		TaskStatusProvider
		TaskSubmitter
	}

	// キャッシュ管理
	CacheSync  CacheSyncInterface
	CacheViews CacheViewInterface

	// /metrics に公開するハンドラー。nilの場合はルートを設定しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → セキュリティヘッダー → リカバリー → リクエストログ → レート制限(General)
//
// フェッチ起動エンドポイントには専用のレート制限を追加で適用する。
// /healthz と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	articleHandler := NewArticleHandler(deps.ArticleService, deps.ReprocessService)
	newsHandler := NewNewsHandler(deps.IngestService)
	taskHandler := NewTaskHandler(deps.TaskRunner)
	cacheHandler := NewCacheHandler(deps.CacheSync, deps.CacheViews, deps.TaskRunner)

	// --- 運用ルート（レート制限の外） ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewRecoveryMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.RequestLogger, deps.HTTPMetrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 記事の取り込み（外部フェッチを伴うため専用レート制限を追加）
		r.Route("/api/news", func(r chi.Router) {
			r.With(deps.RateLimiter.FetchMiddleware()).Post("/fetch", newsHandler.FetchNews)
			r.With(deps.RateLimiter.FetchMiddleware()).Post("/fetch-feed", newsHandler.FetchFeed)
		})

		// 記事の読み取り・編集
		r.Route("/api/articles", func(r chi.Router) {
			r.Get("/", articleHandler.ListArticles)
			r.Get("/approved", articleHandler.GetApprovedArticles)
			r.Get("/category/{category}", articleHandler.GetArticlesByCategory)
			r.Get("/stats/summary", articleHandler.GetArticlesSummary)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", articleHandler.GetArticle)
				r.Put("/", articleHandler.UpdateArticle)
				r.Post("/reprocess", articleHandler.ReprocessArticle)
			})
		})

		// タスク状態のポーリング
		r.Get("/api/tasks/{id}", taskHandler.GetTaskStatus)

		// キャッシュ管理
		r.Route("/api/cache", func(r chi.Router) {
			r.Post("/warm", cacheHandler.WarmCache)
			r.Delete("/invalidate", cacheHandler.InvalidateAll)
			r.Delete("/articles/{id}", cacheHandler.InvalidateArticle)
			r.Delete("/category/{category}", cacheHandler.InvalidateCategory)
			r.Get("/info", cacheHandler.GetCacheInfo)
		})
	})

	return r
}
