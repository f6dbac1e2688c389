// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newsdesk/internal/article"
	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/classify"
	"github.com/hitoshi/newsdesk/internal/config"
	"github.com/hitoshi/newsdesk/internal/database"
	"github.com/hitoshi/newsdesk/internal/handler"
	"github.com/hitoshi/newsdesk/internal/ingest"
	"github.com/hitoshi/newsdesk/internal/logger"
	"github.com/hitoshi/newsdesk/internal/metrics"
	"github.com/hitoshi/newsdesk/internal/middleware"
	"github.com/hitoshi/newsdesk/internal/newsapi"
	"github.com/hitoshi/newsdesk/internal/repository"
	"github.com/hitoshi/newsdesk/internal/rssfeed"
	"github.com/hitoshi/newsdesk/internal/scoring"
	"github.com/hitoshi/newsdesk/internal/security"
	"github.com/hitoshi/newsdesk/internal/task"
	"github.com/hitoshi/newsdesk/internal/worker/warm"
)

// janitorInterval は終端状態タスクの掃除間隔。
const janitorInterval = 10 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続とRedis接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// タスクランナーのジャニターと定期ウォームアップも同一プロセス内で動かす。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redisキャッシュストア
	// Redis障害時はキャッシュ迂回で縮退運転するため、起動時の疎通確認で失敗させない
	store, err := cache.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to configure redis store: %w", err)
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリとキャッシュビュー
	repo := repository.NewPostgresArticleRepo(db)
	ttl := cache.TTLConfig{
		Default: cfg.CacheTTLDefault,
		Long:    cfg.CacheTTLLong,
		Stats:   cfg.CacheTTLStats,
	}
	views := cache.NewViewCache(store, slog.Default(), ttl, collector)
	synchronizer := cache.NewSynchronizer(repo, views, slog.Default())

	// 5. タスクランナー
	runner := task.NewRunner(slog.Default(), collector, cfg.TaskRetention)

	// 6. セキュリティサービス
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 7. 取り込みパイプライン
	approval := scoring.NewProcessor(repo, synchronizer, slog.Default())
	categorizer := classify.NewProcessor(repo, synchronizer, slog.Default())
	dedup := ingest.NewDeduplicator(repo, sanitizer, synchronizer, collector, slog.Default())

	newsClient := newsapi.NewClient(
		ssrfGuard.NewSafeClient(cfg.FetchTimeout, cfg.FetchMaxSize),
		slog.Default(), cfg.NewsAPIURL, cfg.NewsAPIKey,
	)
	feedDetector := rssfeed.NewDetector(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)
	feedClient := rssfeed.NewClient(feedDetector, slog.Default())

	ingestService := ingest.NewService(
		runner, dedup, newsClient, feedClient, repo,
		approval, categorizer, slog.Default(),
	)

	// 8. 記事読み取りサービス
	articleService := article.NewService(repo, views, synchronizer, slog.Default())

	// 9. レート制限（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		FetchRate:       rate.Limit(float64(cfg.RateLimitFetch) / 60.0),
		FetchBurst:      cfg.RateLimitFetch,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	// 10. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		RequestLogger:     slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HTTPMetrics:       collector,

		ArticleService:   articleService,
		ReprocessService: ingestService,
		IngestService:    ingestService,
		TaskRunner:       runner,
		CacheSync:        synchronizer,
		CacheViews:       views,

		MetricsHandler: metrics.Handler(registry),
	})

	// 11. バックグラウンドジョブの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// StartJanitorはctxの取り消しまでブロックするため、別goroutineで起動する
	go runner.StartJanitor(ctx, janitorInterval)

	warmScheduler := warm.NewScheduler(synchronizer, slog.Default(), cfg.WarmInterval, cfg.WarmTopN)
	go warmScheduler.Start(ctx)

	// 12. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
