package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/newsdesk/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// articleColumns はSELECT句で取得するカラムの並び。scanArticleと一致させること。
const articleColumns = `id, title, description, content, url, image_url,
	        published_at, source_name, author, status, category,
	        approval_reason, created_at, updated_at, processed_at`

// scanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanArticle は1行分の記事をスキャンする。
func scanArticle(s scanner) (*model.Article, error) {
	article := &model.Article{}
	var publishedAt, processedAt sql.NullTime

	err := s.Scan(
		&article.ID, &article.Title, &article.Description, &article.Content,
		&article.URL, &article.ImageURL,
		&publishedAt, &article.SourceName, &article.Author,
		&article.Status, &article.Category,
		&article.ApprovalReason, &article.CreatedAt, &article.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		article.PublishedAt = &publishedAt.Time
	}
	if processedAt.Valid {
		article.ProcessedAt = &processedAt.Time
	}

	return article, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by id: %w", err)
	}
	return article, nil
}

// FindByURL はURLで記事を検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByURL(ctx context.Context, url string) (*model.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE url = $1`, url)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by url: %w", err)
	}
	return article, nil
}

// Create は記事を作成する。
// URL一意制約違反はErrDuplicateURLに変換して返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (
		    id, title, description, content, url, image_url,
		    published_at, source_name, author, status, category,
		    approval_reason, created_at, updated_at, processed_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		article.ID, article.Title, article.Description, article.Content,
		article.URL, article.ImageURL,
		nullTime(article.PublishedAt), article.SourceName, article.Author,
		article.Status, article.Category,
		article.ApprovalReason, article.CreatedAt, article.UpdatedAt,
		nullTime(article.ProcessedAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// Update は記事編集の更新。処理結果フィールドを一括で書き込む。
// title、url等の取り込み時フィールドは変更しない。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles
		 SET status = $1, category = $2, approval_reason = $3,
		     updated_at = $4, processed_at = $5
		 WHERE id = $6`,
		article.Status, article.Category, article.ApprovalReason,
		article.UpdatedAt, nullTime(article.ProcessedAt), article.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return requireRowAffected(result, article.ID)
}

// UpdateScoring はスコアリング結果のカラムのみを更新する。
// categoryには触れないため、並行するカテゴリ分類の書き込みを上書きしない。
func (r *PostgresArticleRepo) UpdateScoring(ctx context.Context, id string, status model.ArticleStatus, reason string, processedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles
		 SET status = $1, approval_reason = $2, processed_at = $3, updated_at = NOW()
		 WHERE id = $4`,
		status, reason, processedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update article scoring: %w", err)
	}
	return requireRowAffected(result, id)
}

// UpdateCategory はcategoryカラムのみを更新する。
// statusやapproval_reasonには触れないため、並行するスコアリングの書き込みを上書きしない。
func (r *PostgresArticleRepo) UpdateCategory(ctx context.Context, id string, category model.ArticleCategory) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles
		 SET category = $1, updated_at = NOW()
		 WHERE id = $2`,
		category, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update article category: %w", err)
	}
	return requireRowAffected(result, id)
}

// requireRowAffected は更新が既存の記事に当たったことを確認する。
func requireRowAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("article not found: %s", id)
	}
	return nil
}

// List は記事一覧をフィルタ付きで取得する。created_at降順。
func (r *PostgresArticleRepo) List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + articleColumns + ` FROM articles`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return r.queryArticles(ctx, query, args...)
}

// ListApproved は承認済み記事をcreated_at降順で最大limit件取得する。
func (r *PostgresArticleRepo) ListApproved(ctx context.Context, limit int) ([]*model.Article, error) {
	return r.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		model.ArticleStatusApproved, limit,
	)
}

// ListApprovedByCategory は指定カテゴリの承認済み記事をcreated_at降順で最大limit件取得する。
func (r *PostgresArticleRepo) ListApprovedByCategory(ctx context.Context, category model.ArticleCategory, limit int) ([]*model.Article, error) {
	return r.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE status = $1 AND category = $2 ORDER BY created_at DESC LIMIT $3`,
		model.ArticleStatusApproved, category, limit,
	)
}

// CountAll は全記事数を返す。
func (r *PostgresArticleRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// CountByStatus は指定ステータスの記事数を返す。
func (r *PostgresArticleRepo) CountByStatus(ctx context.Context, status model.ArticleStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles by status: %w", err)
	}
	return count, nil
}

// CountApprovedByCategory は指定カテゴリの承認済み記事数を返す。
func (r *PostgresArticleRepo) CountApprovedByCategory(ctx context.Context, category model.ArticleCategory) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE status = $1 AND category = $2`,
		model.ArticleStatusApproved, category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles by category: %w", err)
	}
	return count, nil
}

// queryArticles は複数行の記事クエリを実行する。
func (r *PostgresArticleRepo) queryArticles(ctx context.Context, query string, args ...any) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
