package engine

import (
	"context"
	"log"
	"time"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// RunAssignmentLoop drives task-to-agent assignment. Every tick it hands
// each executing workflow to the agent manager. A fault from one
// workflow's assignment is logged and isolated; the loop keeps running
// for every other workflow and for the lifetime of the context.
func (e *Engine) RunAssignmentLoop(ctx context.Context) {
	ticker := time.NewTicker(e.assignInterval)
	defer ticker.Stop()

	log.Printf("[assign-loop] started, interval=%s", e.assignInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[assign-loop] stopped")
			return
		case <-ticker.C:
			e.assignOnce(ctx)
		}
	}
}

// assignOnce runs one assignment pass across all executing workflows.
func (e *Engine) assignOnce(ctx context.Context) {
	for _, wf := range e.deps.Store.List() {
		wfID := wf.ID
		err := e.deps.Store.Mutate(wfID, func(wf *models.Workflow) error {
			if wf.Status != models.WorkflowStatusExecuting {
				return nil
			}
			return e.deps.AgentManager.AssignTasks(ctx, wf)
		})
		if err != nil {
			log.Printf("[assign-loop] workflow %s: %v", wfID, err)
		}
	}
}

// RunProgressLoop periodically recomputes and broadcasts aggregate
// progress for every executing workflow. Same fault-isolation and
// never-terminates contract as the assignment loop.
func (e *Engine) RunProgressLoop(ctx context.Context) {
	ticker := time.NewTicker(e.progressInterval)
	defer ticker.Stop()

	log.Printf("[progress-loop] started, interval=%s", e.progressInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[progress-loop] stopped")
			return
		case <-ticker.C:
			e.progressOnce()
		}
	}
}

// progressOnce broadcasts one progress_update per executing workflow.
func (e *Engine) progressOnce() {
	e.deps.Store.ViewEach(func(wf *models.Workflow) {
		if wf.Status != models.WorkflowStatusExecuting {
			return
		}

		dist := make(map[string]int, len(models.AllTaskStatuses))
		for status, count := range wf.TaskDistribution() {
			dist[string(status)] = count
		}

		e.deps.Broadcaster.Broadcast(broadcast.Event{
			Type: broadcast.EventProgressUpdate,
			Payload: map[string]any{
				"workflow_id":       wf.ID,
				"progress":          wf.ProgressPercentage(),
				"task_distribution": dist,
			},
		})
	})
}
