// Package engine implements the workflow orchestration control plane:
// workflow lifecycle, the task update protocol, decomposition splicing,
// and the two background scheduling loops. All workflow mutation flows
// through the store's per-workflow locks; all observable state changes
// are announced on the broadcaster.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/internal/store"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// DependencyPolicy controls how other tasks' dependency references to a
// decomposed task are rewritten when the task is spliced into subtasks.
type DependencyPolicy string

const (
	// DependencyPolicyKeep leaves dependency references untouched, even
	// though they now dangle. Matches the reference behavior.
	DependencyPolicyKeep DependencyPolicy = "keep"
	// DependencyPolicyRewriteAll makes dependents depend on every subtask.
	DependencyPolicyRewriteAll DependencyPolicy = "rewrite-all"
	// DependencyPolicyRewriteLast makes dependents depend on the final
	// subtask only.
	DependencyPolicyRewriteLast DependencyPolicy = "rewrite-last"
)

// Valid returns true if the policy is a known value.
func (p DependencyPolicy) Valid() bool {
	switch p {
	case DependencyPolicyKeep, DependencyPolicyRewriteAll, DependencyPolicyRewriteLast:
		return true
	default:
		return false
	}
}

// Deps bundles the required dependencies of the engine.
type Deps struct {
	Store        *store.Store
	Broadcaster  *broadcast.Broadcaster
	Generator    Generator
	Decomposer   Decomposer
	AgentManager AgentManager
	Executor     Executor
}

// Option customizes engine behavior.
type Option func(*Engine)

// WithAssignInterval sets the assignment loop tick interval.
func WithAssignInterval(d time.Duration) Option {
	return func(e *Engine) { e.assignInterval = d }
}

// WithProgressInterval sets the progress loop tick interval.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) { e.progressInterval = d }
}

// WithDependencyPolicy sets the splicer's dependency-rewrite policy.
func WithDependencyPolicy(p DependencyPolicy) Option {
	return func(e *Engine) { e.depPolicy = p }
}

// Engine coordinates workflows, tasks, and agents.
type Engine struct {
	deps Deps

	assignInterval   time.Duration
	progressInterval time.Duration
	depPolicy        DependencyPolicy

	// executions tracks detached workflow executions by workflow ID so
	// shutdown has something to join on. No cancel path is exposed.
	execMu     sync.Mutex
	executions map[string]chan struct{}
}

// New creates an Engine with the given dependencies.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		deps:             deps,
		assignInterval:   10 * time.Second,
		progressInterval: 5 * time.Second,
		depPolicy:        DependencyPolicyKeep,
		executions:       make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the engine's workflow store for read projections.
func (e *Engine) Store() *store.Store {
	return e.deps.Store
}

// CreateWorkflow generates a workflow from natural-language input via the
// generator collaborator, registers it, and announces it.
func (e *Engine) CreateWorkflow(ctx context.Context, userInput string, extra map[string]any) (*models.Workflow, error) {
	wf, err := e.deps.Generator.GenerateWorkflow(ctx, userInput, extra)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "generator", Err: err}
	}

	e.deps.Store.Put(wf)

	e.deps.Broadcaster.Broadcast(broadcast.Event{
		Type: broadcast.EventWorkflowCreated,
		Payload: map[string]any{
			"workflow_id": wf.ID,
			"workflow": map[string]any{
				"id":           wf.ID,
				"title":        wf.Title,
				"status":       string(wf.Status),
				"tasks_count":  len(wf.Tasks),
				"agents_count": len(wf.Agents),
			},
		},
	})

	return wf, nil
}

// StartWorkflow transitions a workflow to executing and launches a
// detached execution. Returns false with no error when the workflow is
// already executing; the caller gets an "already running" response and
// no second execution is launched.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID string) (bool, error) {
	already := false
	err := e.deps.Store.Mutate(workflowID, func(wf *models.Workflow) error {
		if wf.Status == models.WorkflowStatusExecuting {
			already = true
			return nil
		}
		wf.Status = models.WorkflowStatusExecuting
		if wf.StartedAt == nil {
			now := time.Now()
			wf.StartedAt = &now
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	e.launchExecution(workflowID)

	e.deps.Broadcaster.Broadcast(broadcast.Event{
		Type:    broadcast.EventWorkflowStarted,
		Payload: map[string]any{"workflow_id": workflowID},
	})

	return true, nil
}

// launchExecution runs the executor collaborator in a tracked goroutine.
// A fault marks the workflow failed and is logged, never propagated: the
// request that triggered the start has already returned.
func (e *Engine) launchExecution(workflowID string) {
	done := make(chan struct{})
	e.execMu.Lock()
	e.executions[workflowID] = done
	e.execMu.Unlock()

	go func() {
		defer func() {
			e.execMu.Lock()
			delete(e.executions, workflowID)
			e.execMu.Unlock()
			close(done)
		}()

		// Detached: the triggering request's context is long gone.
		if err := e.deps.Executor.ExecuteWorkflow(context.Background(), workflowID); err != nil {
			log.Printf("[engine] workflow %s execution failed: %v", workflowID, err)
			markErr := e.deps.Store.Mutate(workflowID, func(wf *models.Workflow) error {
				wf.Status = models.WorkflowStatusFailed
				return nil
			})
			if markErr != nil {
				log.Printf("[engine] workflow %s: mark failed: %v", workflowID, markErr)
			}
		}
	}()
}

// WaitForExecutions blocks until every detached execution running at call
// time has finished, or the context is done.
func (e *Engine) WaitForExecutions(ctx context.Context) error {
	e.execMu.Lock()
	pending := make([]chan struct{}, 0, len(e.executions))
	for _, done := range e.executions {
		pending = append(pending, done)
	}
	e.execMu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RunningExecutions returns the number of detached executions in flight.
func (e *Engine) RunningExecutions() int {
	e.execMu.Lock()
	defer e.execMu.Unlock()
	return len(e.executions)
}
