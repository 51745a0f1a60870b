package engine

import (
	"context"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// Generator turns a natural-language goal into a fully populated workflow
// with tasks and agents.
type Generator interface {
	GenerateWorkflow(ctx context.Context, userInput string, extra map[string]any) (*models.Workflow, error)
}

// Decomposer breaks one task into an ordered sequence of replacement
// subtasks. A failure must leave the caller free to keep the original
// task untouched.
type Decomposer interface {
	DecomposeTask(ctx context.Context, task *models.Task) ([]*models.Task, error)
}

// AgentManager assigns ready tasks to agents, mutating agent and task
// state in place. The engine invokes it while holding the workflow's
// mutation lock, so implementations must not block indefinitely.
type AgentManager interface {
	AssignTasks(ctx context.Context, wf *models.Workflow) error
}

// Executor runs a workflow to completion or fault. It is expected to
// drive task state through the engine's update protocol and eventually
// set the workflow status to a terminal value.
type Executor interface {
	ExecuteWorkflow(ctx context.Context, workflowID string) error
}
