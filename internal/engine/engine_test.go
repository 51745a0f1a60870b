package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/internal/store"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// fakeGenerator returns a canned workflow.
type fakeGenerator struct {
	wf  *models.Workflow
	err error
}

func (g *fakeGenerator) GenerateWorkflow(ctx context.Context, userInput string, extra map[string]any) (*models.Workflow, error) {
	return g.wf, g.err
}

// fakeDecomposer returns canned subtasks.
type fakeDecomposer struct {
	subtasks []*models.Task
	err      error
}

func (d *fakeDecomposer) DecomposeTask(ctx context.Context, task *models.Task) ([]*models.Task, error) {
	return d.subtasks, d.err
}

// fakeManager records which workflows it was asked to assign.
type fakeManager struct {
	mu       sync.Mutex
	assigned []string
	failFor  string
}

func (m *fakeManager) AssignTasks(ctx context.Context, wf *models.Workflow) error {
	if wf.ID == m.failFor {
		return errors.New("assignment fault")
	}
	m.mu.Lock()
	m.assigned = append(m.assigned, wf.ID)
	m.mu.Unlock()
	return nil
}

func (m *fakeManager) assignedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.assigned...)
}

// fakeExecutor counts invocations and optionally blocks until released.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
}

func (x *fakeExecutor) ExecuteWorkflow(ctx context.Context, workflowID string) error {
	x.mu.Lock()
	x.calls++
	x.mu.Unlock()
	if x.release != nil {
		<-x.release
	}
	return x.err
}

func (x *fakeExecutor) callCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.calls
}

func newTestEngine(t *testing.T, deps Deps, opts ...Option) *Engine {
	t.Helper()
	if deps.Store == nil {
		deps.Store = store.New()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = broadcast.New(64)
	}
	if deps.Generator == nil {
		deps.Generator = &fakeGenerator{}
	}
	if deps.Decomposer == nil {
		deps.Decomposer = &fakeDecomposer{}
	}
	if deps.AgentManager == nil {
		deps.AgentManager = &fakeManager{}
	}
	if deps.Executor == nil {
		deps.Executor = &fakeExecutor{}
	}
	return New(deps, opts...)
}

func seedWorkflow(e *Engine, id string, taskIDs ...string) *models.Workflow {
	wf := &models.Workflow{ID: id, Title: "wf " + id, Status: models.WorkflowStatusPending}
	for _, tid := range taskIDs {
		wf.Tasks = append(wf.Tasks, &models.Task{ID: tid, Status: models.TaskStatusPending})
	}
	e.Store().Put(wf)
	return wf
}

func drainEvents(sub *broadcast.Subscriber) []broadcast.Event {
	var events []broadcast.Event
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestCreateWorkflowBroadcasts(t *testing.T) {
	wf := &models.Workflow{
		ID:     "wf-1",
		Title:  "Research report",
		Status: models.WorkflowStatusPending,
		Tasks:  []*models.Task{{ID: "t-1"}},
		Agents: []*models.Agent{{ID: "ag-1"}},
	}
	e := newTestEngine(t, Deps{Generator: &fakeGenerator{wf: wf}})
	sub := e.deps.Broadcaster.Subscribe()

	got, err := e.CreateWorkflow(context.Background(), "write a report", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "wf-1" {
		t.Errorf("expected wf-1, got %s", got.ID)
	}
	if _, err := e.Store().Get("wf-1"); err != nil {
		t.Errorf("workflow not stored: %v", err)
	}

	ev := <-sub.Events()
	if ev.Type != broadcast.EventWorkflowCreated {
		t.Errorf("expected workflow_created, got %s", ev.Type)
	}
	summary, ok := ev.Payload["workflow"].(map[string]any)
	if !ok {
		t.Fatalf("expected workflow summary in payload, got %v", ev.Payload)
	}
	if summary["tasks_count"] != 1 {
		t.Errorf("expected tasks_count 1, got %v", summary["tasks_count"])
	}
}

func TestCreateWorkflowGeneratorFailure(t *testing.T) {
	e := newTestEngine(t, Deps{Generator: &fakeGenerator{err: errors.New("model refused")}})

	_, err := e.CreateWorkflow(context.Background(), "do something", nil)
	var cerr *CollaboratorError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if cerr.Collaborator != "generator" {
		t.Errorf("expected generator failure, got %s", cerr.Collaborator)
	}
	if e.Store().Count() != 0 {
		t.Error("failed generation must not store a workflow")
	}
}

func TestStartWorkflowIdempotent(t *testing.T) {
	exec := &fakeExecutor{release: make(chan struct{})}
	e := newTestEngine(t, Deps{Executor: exec})
	seedWorkflow(e, "wf-1", "t-1")

	started, err := e.StartWorkflow(context.Background(), "wf-1")
	if err != nil || !started {
		t.Fatalf("expected first start to launch, got started=%v err=%v", started, err)
	}

	// Second start while executing: "already running", no second execution.
	started, err = e.StartWorkflow(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started {
		t.Error("expected already-running response on second start")
	}

	close(exec.release)
	if err := e.WaitForExecutions(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if exec.callCount() != 1 {
		t.Errorf("expected exactly one detached execution, got %d", exec.callCount())
	}

	wf, _ := e.Store().Get("wf-1")
	if wf.Status != models.WorkflowStatusExecuting {
		t.Errorf("expected executing, got %s", wf.Status)
	}
	if wf.StartedAt == nil {
		t.Error("expected started_at to be stamped")
	}
}

func TestStartWorkflowNotFound(t *testing.T) {
	e := newTestEngine(t, Deps{})
	if _, err := e.StartWorkflow(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartWorkflowExecutorFaultMarksFailed(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("execution blew up")}
	e := newTestEngine(t, Deps{Executor: exec})
	seedWorkflow(e, "wf-1", "t-1")

	if _, err := e.StartWorkflow(context.Background(), "wf-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.WaitForExecutions(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	wf, _ := e.Store().Get("wf-1")
	if wf.Status != models.WorkflowStatusFailed {
		t.Errorf("expected failed after executor fault, got %s", wf.Status)
	}
}

func TestUpdateTaskInvalidStatusLeavesTaskUnchanged(t *testing.T) {
	e := newTestEngine(t, Deps{})
	wf := seedWorkflow(e, "wf-1", "t-1")
	wf.Tasks[0].Result = map[string]any{"kept": true}
	wf.Tasks[0].Errors = []string{"old"}
	sub := e.deps.Broadcaster.Subscribe()

	_, err := e.UpdateTask(context.Background(), UpdateRequest{
		TaskID: "t-1",
		Status: "definitely_not_a_status",
		Result: map[string]any{"new": true},
		Errors: []string{"new error"},
	})

	var ierr *InvalidStatusError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
	if ierr.Status != "definitely_not_a_status" {
		t.Errorf("error should report the offending string, got %q", ierr.Status)
	}

	task := wf.Tasks[0]
	if task.Status != models.TaskStatusPending {
		t.Errorf("status mutated on invalid update: %s", task.Status)
	}
	if task.Result["kept"] != true || len(task.Result) != 1 {
		t.Errorf("result mutated on invalid update: %v", task.Result)
	}
	if len(task.Errors) != 1 || task.Errors[0] != "old" {
		t.Errorf("errors mutated on invalid update: %v", task.Errors)
	}
	if evs := drainEvents(sub); len(evs) != 0 {
		t.Errorf("invalid update must not broadcast, got %d events", len(evs))
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	e := newTestEngine(t, Deps{})
	_, err := e.UpdateTask(context.Background(), UpdateRequest{TaskID: "missing", Status: "completed"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTaskCompletionReleasesAgent(t *testing.T) {
	e := newTestEngine(t, Deps{})
	wf := seedWorkflow(e, "wf-1", "t-1", "t-2")
	agent := &models.Agent{ID: "ag-1", Name: "dev", MaxConcurrentTasks: 2}
	agent.AddTask("t-1")
	wf.Agents = []*models.Agent{agent}
	wf.Tasks[0].AssignedAgentID = "ag-1"
	wf.Tasks[0].Status = models.TaskStatusInProgress
	sub := e.deps.Broadcaster.Subscribe()

	res, err := e.UpdateTask(context.Background(), UpdateRequest{
		TaskID: "t-1",
		Status: "completed",
		Result: map[string]any{"output": "done"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if res.OldStatus != models.TaskStatusInProgress || res.NewStatus != models.TaskStatusCompleted {
		t.Errorf("unexpected transition %s -> %s", res.OldStatus, res.NewStatus)
	}
	if res.Progress != 50 {
		t.Errorf("expected 50%% progress, got %f", res.Progress)
	}
	if len(agent.CurrentTasks) != 0 {
		t.Errorf("expected task released from agent, got %v", agent.CurrentTasks)
	}
	if wf.Tasks[0].CompletedAt == nil {
		t.Error("expected completed_at stamp")
	}

	ev := <-sub.Events()
	if ev.Type != broadcast.EventTaskUpdated {
		t.Errorf("expected task_updated, got %s", ev.Type)
	}
	if ev.Payload["old_status"] != "in_progress" || ev.Payload["new_status"] != "completed" {
		t.Errorf("unexpected event payload: %v", ev.Payload)
	}

	// Re-applying the completion is idempotent: no error, no duplicate
	// removal effect, completed_at unchanged.
	firstStamp := *wf.Tasks[0].CompletedAt
	if _, err := e.UpdateTask(context.Background(), UpdateRequest{TaskID: "t-1", Status: "completed"}); err != nil {
		t.Fatalf("re-completion: %v", err)
	}
	if !wf.Tasks[0].CompletedAt.Equal(firstStamp) {
		t.Error("completed_at must be stamped exactly once")
	}
	if len(agent.CurrentTasks) != 0 {
		t.Errorf("re-completion disturbed agent state: %v", agent.CurrentTasks)
	}
}

func TestUpdateTaskErrorsAppendOnly(t *testing.T) {
	e := newTestEngine(t, Deps{})
	wf := seedWorkflow(e, "wf-1", "t-1")

	for i := 0; i < 2; i++ {
		_, err := e.UpdateTask(context.Background(), UpdateRequest{
			TaskID: "t-1",
			Status: "failed",
			Errors: []string{fmt.Sprintf("attempt %d", i)},
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	if got := wf.Tasks[0].Errors; len(got) != 2 || got[0] != "attempt 0" || got[1] != "attempt 1" {
		t.Errorf("expected errors to accumulate in order, got %v", got)
	}
}

func TestUpdateTaskAnyTransitionAllowed(t *testing.T) {
	e := newTestEngine(t, Deps{})
	seedWorkflow(e, "wf-1", "t-1")

	// No transition table: completed back to pending is accepted.
	for _, status := range []string{"completed", "pending", "blocked", "in_progress"} {
		if _, err := e.UpdateTask(context.Background(), UpdateRequest{TaskID: "t-1", Status: status}); err != nil {
			t.Fatalf("transition to %s rejected: %v", status, err)
		}
	}
}

func TestConcurrentUpdatesDistinctTasks(t *testing.T) {
	e := newTestEngine(t, Deps{})
	ids := make([]string, 16)
	for i := range ids {
		ids[i] = fmt.Sprintf("t-%d", i)
	}
	wf := seedWorkflow(e, "wf-1", ids...)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			if _, err := e.UpdateTask(context.Background(), UpdateRequest{TaskID: taskID, Status: "completed"}); err != nil {
				t.Errorf("update %s: %v", taskID, err)
			}
		}(id)
	}
	wg.Wait()

	if got := wf.ProgressPercentage(); got != 100 {
		t.Errorf("expected every update to land (100%%), got %f", got)
	}
}
