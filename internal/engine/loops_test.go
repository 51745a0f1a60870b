package engine

import (
	"context"
	"testing"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

func TestAssignOnceSkipsNonExecuting(t *testing.T) {
	mgr := &fakeManager{}
	e := newTestEngine(t, Deps{AgentManager: mgr})
	seedWorkflow(e, "wf-pending", "t-1")
	executing := seedWorkflow(e, "wf-executing", "t-2")
	executing.Status = models.WorkflowStatusExecuting

	e.assignOnce(context.Background())

	ids := mgr.assignedIDs()
	if len(ids) != 1 || ids[0] != "wf-executing" {
		t.Errorf("expected only executing workflow to be assigned, got %v", ids)
	}
}

func TestAssignOnceFaultIsolation(t *testing.T) {
	mgr := &fakeManager{failFor: "wf-1"}
	e := newTestEngine(t, Deps{AgentManager: mgr})
	for _, id := range []string{"wf-1", "wf-2", "wf-3"} {
		wf := seedWorkflow(e, id, id+"-t")
		wf.Status = models.WorkflowStatusExecuting
	}

	// wf-1's fault must not abort the pass or affect wf-2 and wf-3.
	e.assignOnce(context.Background())

	ids := mgr.assignedIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 successful assignments, got %v", ids)
	}
	for _, id := range ids {
		if id == "wf-1" {
			t.Error("failed workflow should not report success")
		}
	}
}

func TestProgressOnceBroadcastsExecutingOnly(t *testing.T) {
	e := newTestEngine(t, Deps{})
	seedWorkflow(e, "wf-pending", "t-1")
	executing := seedWorkflow(e, "wf-executing", "t-2", "t-3")
	executing.Status = models.WorkflowStatusExecuting
	executing.Tasks[0].Status = models.TaskStatusCompleted
	sub := e.deps.Broadcaster.Subscribe()

	e.progressOnce()

	evs := drainEvents(sub)
	if len(evs) != 1 {
		t.Fatalf("expected 1 progress event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Type != broadcast.EventProgressUpdate {
		t.Errorf("expected progress_update, got %s", ev.Type)
	}
	if ev.Payload["workflow_id"] != "wf-executing" {
		t.Errorf("expected wf-executing, got %v", ev.Payload["workflow_id"])
	}
	if ev.Payload["progress"] != 50.0 {
		t.Errorf("expected 50%% progress, got %v", ev.Payload["progress"])
	}
	dist, ok := ev.Payload["task_distribution"].(map[string]int)
	if !ok {
		t.Fatalf("expected task distribution map, got %T", ev.Payload["task_distribution"])
	}
	if dist["completed"] != 1 || dist["pending"] != 1 {
		t.Errorf("unexpected distribution: %v", dist)
	}
	if len(dist) != len(models.AllTaskStatuses) {
		t.Errorf("distribution should be zero-filled for all statuses, got %v", dist)
	}
}

func TestLoopsStopOnContextCancel(t *testing.T) {
	e := newTestEngine(t, Deps{})
	ctx, cancel := context.WithCancel(context.Background())

	assignDone := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		e.RunAssignmentLoop(ctx)
		close(assignDone)
	}()
	go func() {
		e.RunProgressLoop(ctx)
		close(progressDone)
	}()

	cancel()
	<-assignDone
	<-progressDone
}
