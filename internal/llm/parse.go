package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// taskPlan is the JSON structure the model returns for a single task.
type taskPlan struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Priority          int    `json:"priority"`
	EstimatedDuration string `json:"estimated_duration"`
	// DependsOn holds zero-based indices into the containing task array.
	DependsOn []int `json:"depends_on"`
}

// workflowPlan is the JSON structure the model returns for a workflow.
type workflowPlan struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tasks       []taskPlan `json:"tasks"`
}

// extractJSON strips markdown fences and surrounding prose from a model
// response, returning the first JSON value found.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	// Trim any prose before the first JSON delimiter.
	objIdx := strings.IndexAny(s, "{[")
	if objIdx > 0 {
		s = s[objIdx:]
	}
	return s
}

// parseWorkflowPlan decodes a generation response.
func parseWorkflowPlan(response string) (*workflowPlan, error) {
	var plan workflowPlan
	if err := json.Unmarshal([]byte(extractJSON(response)), &plan); err != nil {
		return nil, fmt.Errorf("decode workflow plan: %w", err)
	}
	if plan.Title == "" {
		return nil, fmt.Errorf("workflow plan has no title")
	}
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("workflow plan has no tasks")
	}
	return &plan, nil
}

// parseTaskPlans decodes a decomposition response.
func parseTaskPlans(response string) ([]taskPlan, error) {
	var plans []taskPlan
	if err := json.Unmarshal([]byte(extractJSON(response)), &plans); err != nil {
		return nil, fmt.Errorf("decode task plans: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("decomposition produced no subtasks")
	}
	return plans, nil
}

// buildTasks converts task plans into model tasks with fresh IDs,
// resolving index-based dependencies into task ID references. An index
// out of range is dropped rather than failing the whole plan.
func buildTasks(plans []taskPlan) []*models.Task {
	now := time.Now()
	tasks := make([]*models.Task, len(plans))
	for i, p := range plans {
		tasks[i] = &models.Task{
			ID:                uuid.New().String(),
			Title:             p.Title,
			Description:       p.Description,
			Status:            models.TaskStatusPending,
			Priority:          p.Priority,
			EstimatedDuration: p.EstimatedDuration,
			CreatedAt:         now,
		}
	}
	for i, p := range plans {
		for _, dep := range p.DependsOn {
			if dep >= 0 && dep < len(tasks) && dep != i {
				tasks[i].Dependencies = append(tasks[i].Dependencies, tasks[dep].ID)
			}
		}
	}
	return tasks
}
