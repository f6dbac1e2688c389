// Package classify は記事のキーワードベースのカテゴリ分類を提供する。
// 固定の優先順位付きカテゴリ表に対する重複一致スコアリングで、
// 同一入力に対して常に同一のカテゴリを返す決定的な処理。
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
)

// categoryEntry はカテゴリとそのキーワード集合の対。
type categoryEntry struct {
	category model.ArticleCategory
	keywords []string
}

// categoryTable は優先順位付きのカテゴリ表。
// 同点時は先頭に近いカテゴリが勝つため、順序に意味がある。
// マップの反復順に依存してはならない。
var categoryTable = []categoryEntry{
	{model.CategoryTechnology, []string{"tech", "ai", "software", "computer", "digital", "app", "coding", "programming"}},
	{model.CategoryBusiness, []string{"business", "economy", "finance", "market", "stock", "investment", "company"}},
	{model.CategorySports, []string{"sport", "football", "basketball", "soccer", "game", "player", "team", "match"}},
	{model.CategoryEntertainment, []string{"movie", "music", "celebrity", "film", "tv", "show", "entertainment"}},
	{model.CategoryHealth, []string{"health", "medical", "doctor", "medicine", "hospital", "disease", "treatment"}},
	{model.CategoryScience, []string{"science", "research", "study", "discovery", "scientist", "experiment"}},
	{model.CategoryPolitics, []string{"politics", "government", "election", "president", "minister", "policy", "vote"}},
}

// countOverlapping はsubstrのs内での出現回数を返す。重複一致を許す。
// strings.Countは重複一致を数えないため使えない。
func countOverlapping(s, substr string) int {
	if substr == "" {
		return 0
	}
	count := 0
	for i := 0; ; {
		idx := strings.Index(s[i:], substr)
		if idx < 0 {
			return count
		}
		count++
		i += idx + 1
	}
}

// Classify はタイトルと説明文からカテゴリを決定する純粋関数。
// 小文字化した「タイトル+空白+説明文」に対してカテゴリごとのキーワード出現回数を
// 合計し、厳密に最大のカテゴリを返す。同点時は表の先頭に近いカテゴリが勝つ。
// 全カテゴリが0点の場合はgeneralを返す。
// 戻り値のスコアマップには0点のカテゴリは含まれない。
func Classify(title, description string) (model.ArticleCategory, map[string]int) {
	content := strings.ToLower(title) + " " + strings.ToLower(description)

	scores := make(map[string]int)
	best := model.CategoryGeneral
	bestScore := 0

	for _, entry := range categoryTable {
		score := 0
		for _, keyword := range entry.keywords {
			score += countOverlapping(content, keyword)
		}
		if score > 0 {
			scores[string(entry.category)] = score
		}
		// 厳密な大なり比較により、同点時は先に現れたカテゴリが保持される
		if score > bestScore {
			best = entry.category
			bestScore = score
		}
	}

	return best, scores
}

// Result はカテゴリ分類タスクの成功結果ペイロード。
type Result struct {
	Status         string         `json:"status"`
	ArticleID      string         `json:"article_id"`
	Category       string         `json:"category"`
	CategoryScores map[string]int `json:"category_scores"`
}

// Processor はカテゴリ分類の永続化とビュー更新を行う。
type Processor struct {
	repo   repository.ArticleRepository
	sync   *cache.Synchronizer
	logger *slog.Logger
}

// NewProcessor はProcessorを生成する。
func NewProcessor(repo repository.ArticleRepository, sync *cache.Synchronizer, logger *slog.Logger) *Processor {
	return &Processor{
		repo:   repo,
		sync:   sync,
		logger: logger,
	}
}

// Process は記事のカテゴリを決定して永続化し、ビューを更新する。
// ステータスには決して触れない。対象記事が存在しない場合は
// エラー判別子付きの成功結果を返す。
func (p *Processor) Process(ctx context.Context, articleID string, progress func(int)) (any, error) {
	progress(25)

	article, err := p.repo.FindByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return model.NewTaskErrorResult("Article not found"), nil
	}

	progress(50)

	category, scores := Classify(article.Title, article.Description)

	progress(75)

	// categoryのみを書き込む。全フィールドの読み出し・書き戻しでは、
	// 並行するスコアリングの確定値を読み出し時点の古い値で上書きしてしまう。
	if err := p.repo.UpdateCategory(ctx, article.ID, category); err != nil {
		return nil, fmt.Errorf("カテゴリの保存に失敗しました: %w", err)
	}

	if err := p.sync.ArticleCategorized(ctx, article.ID); err != nil {
		return nil, err
	}

	progress(100)

	p.logger.Info("記事のカテゴリ分類が完了しました",
		slog.String("article_id", article.ID),
		slog.String("category", string(category)),
	)

	return Result{
		Status:         "completed",
		ArticleID:      article.ID,
		Category:       string(category),
		CategoryScores: scores,
	}, nil
}
