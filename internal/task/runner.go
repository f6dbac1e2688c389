// Package task はインプロセスの非同期タスク実行基盤を提供する。
// ディスパッチはタスクIDを即座に返し、実行はgoroutineで行う。
// 状態はポーリングで取得する。リトライとキャンセルは行わない。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsdesk/internal/model"
)

// Func はタスク本体の実行関数。
// progressで進捗（0-100）を通知できる。戻り値は成功時の結果ペイロード。
type Func func(ctx context.Context, progress func(int)) (any, error)

// MetricsRecorder はタスクの終端状態を記録するインターフェース。
type MetricsRecorder interface {
	RecordTaskSucceeded(kind string)
	RecordTaskFailed(kind string)
}

// noopMetrics はメトリクス未設定時のno-op実装。
type noopMetrics struct{}

func (noopMetrics) RecordTaskSucceeded(string) {}
func (noopMetrics) RecordTaskFailed(string)    {}

// Runner はインメモリのタスクレジストリと実行機構。
//
// Submitしたタスクはgoroutineで即座に実行される。タスク内のpanicは
// recoverしてfailed終端に変換し、プロセスを巻き込まない。
// 終端状態（succeeded / failed）のタスクは保持期間経過後にジャニターが削除する。
type Runner struct {
	mu        sync.RWMutex
	tasks     map[string]*model.Task
	logger    *slog.Logger
	metrics   MetricsRecorder
	retention time.Duration
}

// NewRunner はRunnerを生成する。metricsがnilの場合はno-opを使用する。
// retentionは終端タスクの保持期間。
func NewRunner(logger *slog.Logger, metrics MetricsRecorder, retention time.Duration) *Runner {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Runner{
		tasks:     make(map[string]*model.Task),
		logger:    logger,
		metrics:   metrics,
		retention: retention,
	}
}

// Submit はタスクを登録してIDを即座に返し、実行をgoroutineで開始する。
// 呼び出し元をブロックしない。
func (r *Runner) Submit(ctx context.Context, kind model.TaskKind, fn Func) string {
	id := uuid.New().String()
	now := time.Now()

	r.mu.Lock()
	r.tasks[id] = &model.Task{
		ID:        id,
		Kind:      kind,
		State:     model.TaskStatePending,
		CreatedAt: now,
	}
	r.mu.Unlock()

	// リクエストのキャンセルに巻き込まれないよう、実行は独立したコンテキストで行う
	go r.run(context.WithoutCancel(ctx), id, kind, fn)

	return id
}

// Status は指定IDのタスクのスナップショットを返す。
// 未知のIDに対してはnilを返す。
func (r *Runner) Status(id string) *model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	copied := *t
	return &copied
}

// run はタスク本体を実行して終端状態へ遷移させる。
// panicはrecoverしてfailedに変換する。
func (r *Runner) run(ctx context.Context, id string, kind model.TaskKind, fn Func) {
	start := time.Now()
	r.transition(id, func(t *model.Task) {
		t.State = model.TaskStateRunning
		t.StartedAt = &start
	})

	defer func() {
		if rec := recover(); rec != nil {
			r.finish(id, kind, nil, fmt.Errorf("panic: %v", rec))
		}
	}()

	result, err := fn(ctx, func(p int) { r.reportProgress(id, p) })
	r.finish(id, kind, result, err)
}

// finish はタスクを終端状態へ遷移させ、結果を記録する。
func (r *Runner) finish(id string, kind model.TaskKind, result any, err error) {
	finished := time.Now()

	if err != nil {
		r.transition(id, func(t *model.Task) {
			t.State = model.TaskStateFailed
			t.Error = err.Error()
			t.FinishedAt = &finished
		})
		r.metrics.RecordTaskFailed(string(kind))
		r.logger.Error("タスクが失敗しました",
			slog.String("task_id", id),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	r.transition(id, func(t *model.Task) {
		t.State = model.TaskStateSucceeded
		t.Progress = 100
		t.Result = result
		t.FinishedAt = &finished
	})
	r.metrics.RecordTaskSucceeded(string(kind))
	r.logger.Info("タスクが完了しました",
		slog.String("task_id", id),
		slog.String("kind", string(kind)),
	)
}

// reportProgress は進捗を更新する。
// 進捗は1回の実行内で単調増加し、0-100にクランプされる。
func (r *Runner) reportProgress(id string, p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	r.transition(id, func(t *model.Task) {
		if t.State.IsTerminal() {
			return
		}
		if p > t.Progress {
			t.Progress = p
		}
	})
}

// transition はタスクをロック下で更新する。未知のIDは無視する。
func (r *Runner) transition(id string, update func(*model.Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok {
		update(t)
	}
}

// StartJanitor は保持期間を超過した終端タスクを定期的に削除するジャニターを起動する。
// コンテキストがキャンセルされるまで呼び出し元をブロックするため、
// 呼び出し側は別goroutineで起動すること。
func (r *Runner) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("タスクジャニターを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", r.retention),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("タスクジャニターを停止しました")
			return
		case <-ticker.C:
			removed := r.PruneOnce(time.Now())
			if removed > 0 {
				r.logger.Info("終端タスクを削除しました",
					slog.Int("removed_count", removed),
				)
			}
		}
	}
}

// PruneOnce は保持期間を超過した終端タスクを1回削除し、削除した数を返す。
// 実行中・待機中のタスクは削除しない。
func (r *Runner) PruneOnce(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, t := range r.tasks {
		if t.State.IsTerminal() && t.FinishedAt != nil && now.Sub(*t.FinishedAt) > r.retention {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}
