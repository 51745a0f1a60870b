package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
)

// AllTaskStatuses lists every known task status, in display order.
// Used to build zero-filled status distributions.
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusBlocked,
}

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ParseTaskStatus parses a raw status string into a TaskStatus.
// Returns an error naming the offending string if it is not a known value.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status: %q", raw)
	}
	return s, nil
}

// Task represents a unit of work inside a workflow.
type Task struct {
	// ID is the unique identifier for this task. IDs are unique across
	// the whole store, not just within the owning workflow.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders tasks when several are ready at once (lower first).
	Priority int `json:"priority"`
	// EstimatedDuration is a human-readable effort estimate (e.g. "30m").
	EstimatedDuration string `json:"estimated_duration,omitempty"`
	// AssignedAgentID references the agent working this task, if any.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// Dependencies lists task IDs that must complete before this task.
	// References may dangle after a decomposition splice; see the
	// splicer's dependency-rewrite policy.
	Dependencies []string `json:"dependencies,omitempty"`
	// Result is the opaque output payload of the task, if any.
	Result map[string]any `json:"result,omitempty"`
	// Errors accumulates error messages reported against this task.
	// Append-only; never overwritten.
	Errors []string `json:"errors,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached completed status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DependenciesMet returns true if every dependency of the task that still
// resolves to a task in the given lookup is completed. Dangling references
// are ignored rather than treated as unmet.
func (t *Task) DependenciesMet(lookup map[string]*Task) bool {
	for _, dep := range t.Dependencies {
		if d, ok := lookup[dep]; ok && d.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}
