package engine

import (
	"context"
	"time"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// UpdateRequest carries a requested task-state transition.
type UpdateRequest struct {
	// TaskID identifies the task to update.
	TaskID string
	// Status is the requested status as a raw string. Any known status
	// may follow any other; only unknown strings are rejected.
	Status string
	// Result, when non-nil, replaces the task's result payload.
	Result map[string]any
	// Errors, when non-empty, are appended to the task's error list.
	Errors []string
}

// UpdateResult describes an applied task update.
type UpdateResult struct {
	WorkflowID string
	TaskID     string
	OldStatus  models.TaskStatus
	NewStatus  models.TaskStatus
	// Progress is the owning workflow's progress percentage after the
	// update was applied.
	Progress float64
}

// UpdateTask validates and applies a task-state transition. The whole
// sequence runs under the owning workflow's lock, so concurrent updates
// to the same task never interleave, and the task_updated event is
// broadcast before the lock is released so event order matches state
// order. An unknown status string rejects the update with no mutation.
func (e *Engine) UpdateTask(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	var res *UpdateResult

	err := e.deps.Store.MutateByTask(req.TaskID, func(task *models.Task, wf *models.Workflow) error {
		newStatus, parseErr := models.ParseTaskStatus(req.Status)
		if parseErr != nil {
			return &InvalidStatusError{Status: req.Status}
		}

		oldStatus := task.Status
		task.Status = newStatus

		if req.Result != nil {
			task.Result = req.Result
		}
		if len(req.Errors) > 0 {
			task.Errors = append(task.Errors, req.Errors...)
		}

		if newStatus == models.TaskStatusCompleted {
			if task.CompletedAt == nil {
				now := time.Now()
				task.CompletedAt = &now
			}
			if task.AssignedAgentID != "" {
				if agent := wf.FindAgent(task.AssignedAgentID); agent != nil {
					agent.RemoveTask(task.ID)
				}
			}
		}

		res = &UpdateResult{
			WorkflowID: wf.ID,
			TaskID:     task.ID,
			OldStatus:  oldStatus,
			NewStatus:  newStatus,
			Progress:   wf.ProgressPercentage(),
		}

		e.deps.Broadcaster.Broadcast(broadcast.Event{
			Type: broadcast.EventTaskUpdated,
			Payload: map[string]any{
				"workflow_id": res.WorkflowID,
				"task_id":     res.TaskID,
				"old_status":  string(res.OldStatus),
				"new_status":  string(res.NewStatus),
				"progress":    res.Progress,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
