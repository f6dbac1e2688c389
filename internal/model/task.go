// Package model はドメインモデルを定義する。
package model

import "time"

// TaskKind はバックグラウンドタスクの種別を表す。
type TaskKind string

const (
	// TaskKindApproval は記事の承認スコアリングタスク。
	TaskKindApproval TaskKind = "approval"
	// TaskKindCategorize は記事のカテゴリ分類タスク。
	TaskKindCategorize TaskKind = "categorize"
	// TaskKindIngest は取り込みバッチの保存タスク。
	TaskKindIngest TaskKind = "ingest"
	// TaskKindCacheWarm はキャッシュウォームアップタスク。
	TaskKindCacheWarm TaskKind = "cache-warm"
)

// TaskState はタスクの実行状態を表す。
// succeeded / failed は終端状態で、以降変化しない。
type TaskState string

const (
	// TaskStatePending はディスパッチ済みで実行開始前の状態。
	TaskStatePending TaskState = "pending"
	// TaskStateRunning は実行中の状態。
	TaskStateRunning TaskState = "running"
	// TaskStateSucceeded は正常終了した状態。結果ペイロードを保持する。
	TaskStateSucceeded TaskState = "succeeded"
	// TaskStateFailed は実行中の未捕捉エラーで終了した状態。エラーメッセージを保持する。
	// リトライは行わない。
	TaskStateFailed TaskState = "failed"
)

// IsTerminal は終端状態（succeeded / failed）かどうかを返す。
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// TaskErrorResult は対象記事の不在など、アプリケーション上は正常な異常系を表す
// 成功結果ペイロード。タスクのfailed状態（未捕捉エラー）とは区別される。
type TaskErrorResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewTaskErrorResult はエラー判別子付きの成功結果を生成する。
func NewTaskErrorResult(message string) TaskErrorResult {
	return TaskErrorResult{Status: "error", Message: message}
}

// Task はポーリングで状態を取得する非同期作業単位を表す。
// Progressは1回の実行内で単調増加するが、UI表示専用でありベストエフォート。
// 対象記事が存在しない場合はfailedではなく、エラー判別子付きの結果で成功終了する。
type Task struct {
	ID         string
	Kind       TaskKind
	State      TaskState
	Progress   int // 0-100
	Result     any // succeeded時の結果ペイロード
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
