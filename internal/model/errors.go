// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, article, task, source, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeArticleNotFound = "ARTICLE_NOT_FOUND"
	ErrCodeTaskNotFound    = "TASK_NOT_FOUND"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeInvalidCategory = "INVALID_CATEGORY"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeNoArticlesFound = "NO_ARTICLES_FOUND"
	ErrCodeFeedNotDetected = "FEED_NOT_DETECTED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
)

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "article",
		Action:   "記事IDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidStatusError は無効なステータス値エラーを生成する。
// 境界でドメイン外の値を弾き、コアにはドメイン内の値のみを渡す。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには pending、approved、rejected のいずれかを指定してください。",
	}
}

// NewInvalidCategoryError は無効なカテゴリ値エラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには technology、business、sports、entertainment、health、science、politics、general のいずれかを指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は外部ソースからの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("記事ソースからの取得に失敗しました: %s", reason),
		Category: "source",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNoArticlesFoundError は検索結果0件エラーを生成する。
func NewNoArticlesFoundError(query string) *APIError {
	return &APIError{
		Code:     ErrCodeNoArticlesFound,
		Message:  fmt.Sprintf("指定されたクエリに一致する記事が見つかりませんでした: %s", query),
		Category: "source",
		Action:   "検索クエリを変更して再度お試しください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "source",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}
