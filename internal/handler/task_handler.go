package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/model"
)

// TaskStatusProvider はタスク状態の読み取りインターフェース。
type TaskStatusProvider interface {
	// Status は指定IDのタスクのスナップショットを返す。未知のIDに対してはnil。
	Status(id string) *model.Task
}

// TaskHandler はタスク状態ポーリングのHTTPハンドラー。
type TaskHandler struct {
	runner TaskStatusProvider
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(runner TaskStatusProvider) *TaskHandler {
	return &TaskHandler{runner: runner}
}

// taskStatusResponse はタスク状態のAPIレスポンス。
// 実行状態に応じてprogress / result / errorのいずれかを含む。
type taskStatusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress *int   `json:"progress,omitempty"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GetTaskStatus はタスクの実行状態を取得する。
// GET /api/tasks/{id}
func (h *TaskHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	t := h.runner.Status(taskID)
	if t == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	var resp taskStatusResponse
	switch t.State {
	case model.TaskStatePending:
		resp = taskStatusResponse{
			TaskID:  t.ID,
			Status:  "pending",
			Message: "Task is waiting to be processed",
		}
	case model.TaskStateRunning:
		progress := t.Progress
		resp = taskStatusResponse{
			TaskID:   t.ID,
			Status:   "processing",
			Message:  "Task is being processed",
			Progress: &progress,
		}
	case model.TaskStateSucceeded:
		resp = taskStatusResponse{
			TaskID:  t.ID,
			Status:  "completed",
			Message: "Task completed successfully",
			Result:  t.Result,
		}
	default: // failed
		resp = taskStatusResponse{
			TaskID:  t.ID,
			Status:  "failed",
			Message: "Task failed",
			Error:   t.Error,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
