// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache
	RedisURL        string
	CacheTTLDefault time.Duration // 単一記事・リスト・カテゴリビュー
	CacheTTLLong    time.Duration // 承認済みセットビュー
	CacheTTLStats   time.Duration // 統計ビュー

	// NewsAPI
	NewsAPIURL string
	NewsAPIKey string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Task
	TaskRetention time.Duration // 終端状態のタスクをポーリング可能な状態で保持する期間

	// Cache Warm
	WarmInterval time.Duration // 定期ウォームアップの間隔。0以下で無効化
	WarmTopN     int           // ウォームアップ対象の承認済み記事数

	// Rate Limit
	RateLimitGeneral int // API全般（req/min）
	RateLimitFetch   int // 取り込み系エンドポイント（req/min）

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	if cfg.NewsAPIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NewsAPIURL = getEnvString("NEWS_API_URL", "https://newsapi.org/v2/everything")
	cfg.CacheTTLDefault = getEnvDuration("CACHE_TTL_DEFAULT", time.Hour)
	cfg.CacheTTLLong = getEnvDuration("CACHE_TTL_LONG", 24*time.Hour)
	cfg.CacheTTLStats = getEnvDuration("CACHE_TTL_STATS", 5*time.Minute)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.TaskRetention = getEnvDuration("TASK_RETENTION", time.Hour)
	cfg.WarmInterval = getEnvDuration("WARM_INTERVAL", 0)
	cfg.WarmTopN = getEnvInt("WARM_TOP_N", 500)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFetch = getEnvInt("RATE_LIMIT_FETCH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
