package repository

import (
	"testing"

	"github.com/hitoshi/newsdesk/internal/model"
)

// TestPostgresArticleRepo_ImplementsInterface はPostgresArticleRepoがArticleRepositoryを実装することを検証する。
func TestPostgresArticleRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresArticleRepoがArticleRepositoryを満たすことを検証
	var _ ArticleRepository = (*PostgresArticleRepo)(nil)
}

// TestArticleStatusValues はArticleStatusの定数値が正しいことを検証する。
func TestArticleStatusValues(t *testing.T) {
	if model.ArticleStatusPending != "pending" {
		t.Errorf("ArticleStatusPending = %q, want %q", model.ArticleStatusPending, "pending")
	}
	if model.ArticleStatusApproved != "approved" {
		t.Errorf("ArticleStatusApproved = %q, want %q", model.ArticleStatusApproved, "approved")
	}
	if model.ArticleStatusRejected != "rejected" {
		t.Errorf("ArticleStatusRejected = %q, want %q", model.ArticleStatusRejected, "rejected")
	}
}

// TestNullTime はnullTimeの変換動作を検証する。
func TestNullTime(t *testing.T) {
	if nt := nullTime(nil); nt.Valid {
		t.Error("nullTime(nil) should be invalid")
	}
}
