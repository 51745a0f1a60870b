package llm

import (
	"context"
	"fmt"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// Decomposer splits one task into replacement subtasks via the model.
type Decomposer struct {
	runner Runner
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(runner Runner) *Decomposer {
	return &Decomposer{runner: runner}
}

// DecomposeTask asks the model for subtasks replacing the given task.
// The returned tasks carry fresh IDs; the original task's dependencies
// are inherited by the first subtask so the spliced sequence keeps the
// original's position in the dependency graph.
func (d *Decomposer) DecomposeTask(ctx context.Context, task *models.Task) ([]*models.Task, error) {
	response, err := d.runner.Run(ctx, decompositionSystemPrompt,
		fmt.Sprintf(decompositionPrompt, task.Title, task.Description))
	if err != nil {
		return nil, fmt.Errorf("decompose task %s: %w", task.ID, err)
	}

	plans, err := parseTaskPlans(response)
	if err != nil {
		return nil, err
	}

	subtasks := buildTasks(plans)
	if len(task.Dependencies) > 0 {
		subtasks[0].Dependencies = append(append([]string{}, task.Dependencies...), subtasks[0].Dependencies...)
	}
	return subtasks, nil
}
