package engine

import (
	"context"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// DecomposeTask replaces one task with the subtasks produced by the
// decomposer collaborator, splicing them into the task's slot in the
// workflow's ordered task list. The operation is all-or-nothing: a
// decomposer failure leaves the task list unmodified. The decomposer
// runs outside the workflow lock (it is a suspension point); the splice
// re-resolves the task by identity under the lock, so a task that was
// removed in the meantime yields ErrNotFound rather than a stale splice.
func (e *Engine) DecomposeTask(ctx context.Context, taskID string) ([]*models.Task, error) {
	task, wf, err := e.deps.Store.FindTask(taskID)
	if err != nil {
		return nil, err
	}

	subtasks, err := e.deps.Decomposer.DecomposeTask(ctx, task)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "decomposer", Err: err}
	}

	err = e.deps.Store.Mutate(wf.ID, func(wf *models.Workflow) error {
		idx := wf.TaskIndex(taskID)
		if idx < 0 {
			return ErrNotFound
		}

		spliced := make([]*models.Task, 0, len(wf.Tasks)-1+len(subtasks))
		spliced = append(spliced, wf.Tasks[:idx]...)
		spliced = append(spliced, subtasks...)
		spliced = append(spliced, wf.Tasks[idx+1:]...)
		wf.Tasks = spliced

		rewriteDependencies(wf, taskID, subtasks, e.depPolicy)

		e.deps.Broadcaster.Broadcast(broadcast.Event{
			Type: broadcast.EventTaskDecomposed,
			Payload: map[string]any{
				"workflow_id":      wf.ID,
				"original_task_id": taskID,
				"subtasks_count":   len(subtasks),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subtasks, nil
}

// rewriteDependencies applies the dependency-rewrite policy to tasks that
// referenced the decomposed task.
func rewriteDependencies(wf *models.Workflow, removedID string, subtasks []*models.Task, policy DependencyPolicy) {
	if policy == DependencyPolicyKeep || len(subtasks) == 0 {
		return
	}

	for _, t := range wf.Tasks {
		idx := -1
		for i, dep := range t.Dependencies {
			if dep == removedID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		rest := t.Dependencies[idx+1:]
		deps := append([]string{}, t.Dependencies[:idx]...)
		switch policy {
		case DependencyPolicyRewriteAll:
			for _, st := range subtasks {
				deps = append(deps, st.ID)
			}
		case DependencyPolicyRewriteLast:
			deps = append(deps, subtasks[len(subtasks)-1].ID)
		}
		t.Dependencies = append(deps, rest...)
	}
}
