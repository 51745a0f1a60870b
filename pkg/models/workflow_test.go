package models

import (
	"math"
	"testing"
)

func TestProgressPercentageEmpty(t *testing.T) {
	w := &Workflow{ID: "wf-1"}
	if got := w.ProgressPercentage(); got != 0 {
		t.Errorf("expected 0 progress for empty workflow, got %f", got)
	}
}

func TestProgressPercentagePartial(t *testing.T) {
	w := &Workflow{
		ID: "wf-1",
		Tasks: []*Task{
			{ID: "a", Status: TaskStatusPending},
			{ID: "b", Status: TaskStatusPending},
			{ID: "c", Status: TaskStatusCompleted},
		},
	}

	got := w.ProgressPercentage()
	if math.Abs(got-33.33) > 0.01 {
		t.Errorf("expected ~33.33, got %f", got)
	}

	w.Tasks[0].Status = TaskStatusCompleted
	w.Tasks[1].Status = TaskStatusCompleted
	if got := w.ProgressPercentage(); got != 100 {
		t.Errorf("expected 100 after all tasks complete, got %f", got)
	}
}

func TestProgressPercentageBounds(t *testing.T) {
	statuses := []TaskStatus{
		TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusBlocked,
	}
	w := &Workflow{ID: "wf-1"}
	for i, s := range statuses {
		w.Tasks = append(w.Tasks, &Task{ID: string(rune('a' + i)), Status: s})
		got := w.ProgressPercentage()
		if got < 0 || got > 100 {
			t.Errorf("progress out of bounds: %f", got)
		}
	}
}

func TestTaskDistributionZeroFilled(t *testing.T) {
	w := &Workflow{
		ID: "wf-1",
		Tasks: []*Task{
			{ID: "a", Status: TaskStatusCompleted},
			{ID: "b", Status: TaskStatusCompleted},
			{ID: "c", Status: TaskStatusPending},
		},
	}

	dist := w.TaskDistribution()
	if len(dist) != len(AllTaskStatuses) {
		t.Fatalf("expected %d statuses in distribution, got %d", len(AllTaskStatuses), len(dist))
	}
	if dist[TaskStatusCompleted] != 2 {
		t.Errorf("expected 2 completed, got %d", dist[TaskStatusCompleted])
	}
	if dist[TaskStatusBlocked] != 0 {
		t.Errorf("expected 0 blocked, got %d", dist[TaskStatusBlocked])
	}
}

func TestWorkflowStatusValid(t *testing.T) {
	for _, s := range []WorkflowStatus{
		WorkflowStatusPending, WorkflowStatusExecuting,
		WorkflowStatusCompleted, WorkflowStatusFailed,
	} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if WorkflowStatus("running").Valid() {
		t.Error("expected 'running' to be invalid")
	}
}

func TestTaskIndex(t *testing.T) {
	w := &Workflow{Tasks: []*Task{{ID: "a"}, {ID: "b"}}}
	if i := w.TaskIndex("b"); i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
	if i := w.TaskIndex("missing"); i != -1 {
		t.Errorf("expected -1 for unknown task, got %d", i)
	}
}
