// Package cache はキャッシュビューの管理とキャッシュ整合性プロトコルを提供する。
// ビューは正規ストレージから再計算可能な使い捨ての派生物であり、
// 信頼できる唯一の情報源にはならない。
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store はキャッシュストアのインターフェース。
// すべての操作はエラーを返し、呼び出し側がログを記録して
// 正規ストレージへのフォールバックを行う。
type Store interface {
	// Get は指定キーの値を取得する。キーが存在しない場合は found=false を返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set は指定キーに値をTTL付きで設定する。
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete は指定キーを削除し、削除した数を返す。
	Delete(ctx context.Context, keys ...string) (int, error)

	// DeleteByPattern はパターンに一致する全キーを削除し、削除した数を返す。
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Exists は指定キーが存在するかどうかを返す。
	Exists(ctx context.Context, key string) (bool, error)

	// CountKeys はパターンに一致するキー数を返す。診断用。
	CountKeys(ctx context.Context, pattern string) (int, error)

	// Info はストアの診断情報（メモリ使用量、クライアント数、稼働時間）を返す。
	Info(ctx context.Context) (*StoreInfo, error)

	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error

	// Close は接続を閉じる。
	Close() error
}

// StoreInfo はキャッシュストアの診断情報。
type StoreInfo struct {
	UsedMemory       string
	ConnectedClients int
	UptimeSeconds    int64
}

// RedisStore はRedisを使用したStore実装。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore はRedis接続URLからRedisStoreを生成する。
// URLの例: "redis://localhost:6379/0"
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreWithAddr はアドレス指定でRedisStoreを生成する。テスト用。
func NewRedisStoreWithAddr(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get は指定キーの値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

// Set は指定キーに値をTTL付きで設定する。
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return int(deleted), nil
}

// DeleteByPattern はパターンに一致する全キーをSCANで列挙して削除する。
// KEYSはブロッキングのため使用しない。
func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return s.Delete(ctx, keys...)
}

// Exists は指定キーが存在するかどうかを返す。
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return n > 0, nil
}

// CountKeys はパターンに一致するキー数を返す。
func (s *RedisStore) CountKeys(ctx context.Context, pattern string) (int, error) {
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Info はRedisのINFOコマンドから診断情報を抽出して返す。
func (s *RedisStore) Info(ctx context.Context) (*StoreInfo, error) {
	raw, err := s.client.Info(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis info: %w", err)
	}

	info := &StoreInfo{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "used_memory_human":
			info.UsedMemory = value
		case "connected_clients":
			if n, err := strconv.Atoi(value); err == nil {
				info.ConnectedClients = n
			}
		case "uptime_in_seconds":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				info.UptimeSeconds = n
			}
		}
	}
	return info, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// scanKeys はパターンに一致する全キーをSCANで列挙する。
func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}
	return keys, nil
}
