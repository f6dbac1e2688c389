// Package scoring は記事の承認スコアリングを提供する。
// 固定の4チェックによる加点式ヒューリスティックで、同一入力に対して常に
// 同一の結果を返す決定的な処理。
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/newsdesk/internal/cache"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/repository"
)

// 承認に必要な最低スコア。
const approvalThreshold = 70

// 承認成功時の固定メッセージ。
const approvedReason = "Article meets quality standards"

// spamKeywords はタイトル・説明文に含まれてはならないキーワード（小文字）。
var spamKeywords = []string{"click here", "free money", "urgent", "!!!", "100% guaranteed"}

// Evaluation は純粋なスコアリングの結果。
type Evaluation struct {
	Score  int
	Status model.ArticleStatus
	Reason string
}

// Evaluate は記事フィールドからスコア・ステータス・理由を算出する純粋関数。
// 4つのチェックが独立に加点し、合計70以上で承認、未満で却下となる。
// 却下時の理由は失敗したチェックのメッセージをチェック順に "; " で結合したもの。
func Evaluate(title, description, url string) Evaluation {
	score := 0
	var reasons []string

	// タイトル品質: トリム後10文字超で+30
	if utf8.RuneCountInString(strings.TrimSpace(title)) > 10 {
		score += 30
	} else {
		reasons = append(reasons, "Title too short or missing")
	}

	// 説明文品質: トリム後20文字超で+25
	if utf8.RuneCountInString(strings.TrimSpace(description)) > 20 {
		score += 25
	} else {
		reasons = append(reasons, "Description too short or missing")
	}

	// スパムシグナル: キーワードが1つも含まれなければ+25（大文字小文字を無視）
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)
	hasSpam := false
	for _, keyword := range spamKeywords {
		if strings.Contains(titleLower, keyword) || strings.Contains(descLower, keyword) {
			hasSpam = true
			break
		}
	}
	if !hasSpam {
		score += 25
	} else {
		reasons = append(reasons, "Contains potential spam content")
	}

	// URL妥当性: http:// または https:// で始まれば+20
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		score += 20
	} else {
		reasons = append(reasons, "Invalid or missing URL")
	}

	if score >= approvalThreshold {
		return Evaluation{
			Score:  score,
			Status: model.ArticleStatusApproved,
			Reason: approvedReason,
		}
	}
	return Evaluation{
		Score:  score,
		Status: model.ArticleStatusRejected,
		Reason: strings.Join(reasons, "; "),
	}
}

// Result は承認タスクの成功結果ペイロード。
type Result struct {
	Status         string `json:"status"`
	ArticleID      string `json:"article_id"`
	ApprovalStatus string `json:"approval_status"`
	ApprovalReason string `json:"approval_reason"`
	ApprovalScore  int    `json:"approval_score"`
}

// Processor は承認スコアリングの永続化とビュー更新を行う。
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

// Process は記事をスコアリングし、ステータス・理由・処理時刻を永続化して
// ビューを更新する。対象記事が存在しない場合はエラー判別子付きの成功結果を返す。
// 同一の記事状態に対して再実行しても同一のスコア・ステータス・理由を生成する。
func (p *Processor) Process(ctx context.Context, articleID string, progress func(int)) (any, error) {
	progress(25)

	article, err := p.repo.FindByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		// 並行削除は正常系。タスク失敗ではなく判別子付きで成功終了する。
		return model.NewTaskErrorResult("Article not found"), nil
	}

	progress(50)

	eval := Evaluate(article.Title, article.Description, article.URL)

	progress(75)

	// スコアリング結果のフィールドのみを書き込む。全フィールドの
	// 読み出し・書き戻しでは、並行するカテゴリ分類の確定値を
	// 読み出し時点の古い値で上書きしてしまう。
	if err := p.repo.UpdateScoring(ctx, article.ID, eval.Status, eval.Reason, time.Now()); err != nil {
		return nil, fmt.Errorf("スコアリング結果の保存に失敗しました: %w", err)
	}

	if err := p.sync.ArticleScored(ctx, article.ID); err != nil {
		return nil, err
	}

	progress(100)

	p.logger.Info("記事のスコアリングが完了しました",
		slog.String("article_id", article.ID),
		slog.String("status", string(eval.Status)),
		slog.Int("score", eval.Score),
	)

	return Result{
		Status:         "completed",
		ArticleID:      article.ID,
		ApprovalStatus: string(eval.Status),
		ApprovalReason: eval.Reason,
		ApprovalScore:  eval.Score,
	}, nil
}
