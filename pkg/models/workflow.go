// Package models defines the workflow, task, and agent data model shared
// across the orchestration engine, the HTTP layer, and the collaborators.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	// WorkflowStatusPending indicates the workflow has not started.
	WorkflowStatusPending WorkflowStatus = "pending"
	// WorkflowStatusExecuting indicates the workflow is running.
	WorkflowStatusExecuting WorkflowStatus = "executing"
	// WorkflowStatusCompleted indicates all tasks finished.
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusFailed indicates execution faulted.
	WorkflowStatusFailed WorkflowStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusExecuting,
		WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// Workflow is a titled unit of work comprising an ordered task list and a
// pool of agents. Task order is significant: decomposition splices replace
// a task in place by list position.
type Workflow struct {
	// ID is the unique identifier for this workflow.
	ID string `json:"id"`
	// Title is the short workflow name.
	Title string `json:"title"`
	// Description explains the workflow's goal.
	Description string `json:"description,omitempty"`
	// Status is the lifecycle state of the workflow.
	Status WorkflowStatus `json:"status"`
	// CreatedAt is when the workflow was generated.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the workflow reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Tasks is the ordered task list.
	Tasks []*Task `json:"tasks"`
	// Agents is the workflow's agent pool.
	Agents []*Agent `json:"agents"`
}

// ProgressPercentage returns completed tasks over total tasks as a
// percentage. Returns 0 for a workflow with no tasks.
func (w *Workflow) ProgressPercentage() float64 {
	if len(w.Tasks) == 0 {
		return 0
	}
	return float64(w.CompletedTaskCount()) / float64(len(w.Tasks)) * 100
}

// CompletedTaskCount returns the number of tasks in completed status.
func (w *Workflow) CompletedTaskCount() int {
	n := 0
	for _, t := range w.Tasks {
		if t.Status == TaskStatusCompleted {
			n++
		}
	}
	return n
}

// TaskDistribution returns the count of tasks per status. Every known
// status appears in the map, zero-filled when absent from the task list.
func (w *Workflow) TaskDistribution() map[TaskStatus]int {
	dist := make(map[TaskStatus]int, len(AllTaskStatuses))
	for _, s := range AllTaskStatuses {
		dist[s] = 0
	}
	for _, t := range w.Tasks {
		dist[t.Status]++
	}
	return dist
}

// FindTask returns the task with the given ID, or nil.
func (w *Workflow) FindTask(taskID string) *Task {
	for _, t := range w.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// FindAgent returns the agent with the given ID, or nil.
func (w *Workflow) FindAgent(agentID string) *Agent {
	for _, a := range w.Agents {
		if a.ID == agentID {
			return a
		}
	}
	return nil
}

// TaskIndex returns the position of the task with the given ID in the
// ordered task list, or -1.
func (w *Workflow) TaskIndex(taskID string) int {
	for i, t := range w.Tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

// TaskLookup returns a map from task ID to task for dependency checks.
func (w *Workflow) TaskLookup() map[string]*Task {
	lookup := make(map[string]*Task, len(w.Tasks))
	for _, t := range w.Tasks {
		lookup[t.ID] = t
	}
	return lookup
}
