package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ShunsukeHayashi/workflowd/internal/engine"
	"github.com/ShunsukeHayashi/workflowd/internal/store"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// TaskReporter applies task-state changes through the update protocol.
// Satisfied by *engine.Engine; narrowed so the executor cannot reach the
// rest of the engine surface.
type TaskReporter interface {
	UpdateTask(ctx context.Context, req engine.UpdateRequest) (*engine.UpdateResult, error)
}

// Executor runs a workflow's tasks to completion via the model,
// reporting every state change through the update protocol so that the
// usual events and agent bookkeeping apply.
type Executor struct {
	runner   Runner
	store    *store.Store
	reporter TaskReporter
}

// NewExecutor creates an Executor. The reporter is bound after the
// engine is constructed; see BindReporter.
func NewExecutor(runner Runner, st *store.Store) *Executor {
	return &Executor{runner: runner, store: st}
}

// BindReporter wires the update-protocol reporter. Must be called before
// the first execution; the engine and executor reference each other, so
// binding happens after both exist.
func (x *Executor) BindReporter(r TaskReporter) {
	x.reporter = r
}

// runnableTask is a snapshot of one task taken under the workflow lock.
type runnableTask struct {
	id, title, description string
	workflowTitle          string
}

// ExecuteWorkflow drives every task of the workflow to a terminal state.
// Tasks become runnable when their dependencies are completed; each is
// executed via the model and reported completed or failed. When no task
// is runnable and some remain non-terminal (a failed dependency), the
// stragglers are marked blocked and the execution faults.
func (x *Executor) ExecuteWorkflow(ctx context.Context, workflowID string) error {
	if x.reporter == nil {
		return fmt.Errorf("executor has no reporter bound")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var runnable []runnableTask
		var stalled []string
		allTerminal := true

		err := x.store.View(workflowID, func(wf *models.Workflow) {
			lookup := wf.TaskLookup()
			for _, t := range wf.Tasks {
				if t.Status.Terminal() {
					continue
				}
				allTerminal = false
				if t.DependenciesMet(lookup) {
					runnable = append(runnable, runnableTask{
						id:            t.ID,
						title:         t.Title,
						description:   t.Description,
						workflowTitle: wf.Title,
					})
				} else if hasFailedDependency(t, lookup) {
					stalled = append(stalled, t.ID)
				}
			}
		})
		if err != nil {
			return err
		}

		if allTerminal {
			return x.markCompleted(workflowID)
		}

		if len(runnable) == 0 {
			for _, id := range stalled {
				_, uerr := x.reporter.UpdateTask(ctx, engine.UpdateRequest{
					TaskID: id,
					Status: string(models.TaskStatusBlocked),
					Errors: []string{"dependency failed"},
				})
				if uerr != nil {
					log.Printf("[executor] mark blocked %s: %v", id, uerr)
				}
			}
			return fmt.Errorf("workflow %s stalled: no runnable tasks remain", workflowID)
		}

		for _, task := range runnable {
			if err := ctx.Err(); err != nil {
				return err
			}
			x.executeTask(ctx, task)
		}
	}
}

// executeTask runs one task via the model and reports the outcome.
func (x *Executor) executeTask(ctx context.Context, task runnableTask) {
	output, err := x.runner.Run(ctx, executionSystemPrompt,
		fmt.Sprintf(executionPrompt, task.workflowTitle, task.title, task.description))

	var req engine.UpdateRequest
	if err != nil {
		req = engine.UpdateRequest{
			TaskID: task.id,
			Status: string(models.TaskStatusFailed),
			Errors: []string{err.Error()},
		}
	} else {
		req = engine.UpdateRequest{
			TaskID: task.id,
			Status: string(models.TaskStatusCompleted),
			Result: map[string]any{"output": output},
		}
	}

	if _, uerr := x.reporter.UpdateTask(ctx, req); uerr != nil {
		log.Printf("[executor] report task %s: %v", task.id, uerr)
	}
}

// markCompleted reconciles the workflow to completed once every task is
// terminal.
func (x *Executor) markCompleted(workflowID string) error {
	return x.store.Mutate(workflowID, func(wf *models.Workflow) error {
		wf.Status = models.WorkflowStatusCompleted
		if wf.CompletedAt == nil {
			now := time.Now()
			wf.CompletedAt = &now
		}
		return nil
	})
}

// hasFailedDependency reports whether any resolvable dependency of the
// task is failed, which makes the task permanently unrunnable.
func hasFailedDependency(t *models.Task, lookup map[string]*models.Task) bool {
	for _, dep := range t.Dependencies {
		if d, ok := lookup[dep]; ok && d.Status == models.TaskStatusFailed {
			return true
		}
	}
	return false
}
