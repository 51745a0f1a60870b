// Package store owns the authoritative in-memory collection of workflows.
// It is the single source of truth: no other component holds a second
// authoritative copy of a task or agent. All mutation of a workflow's
// state goes through its per-workflow lock, so read-modify-write
// sequences targeting the same workflow never interleave, while
// operations on different workflows proceed independently.
package store

import (
	"errors"
	"sync"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// ErrNotFound is returned when a workflow, task, or agent does not exist.
var ErrNotFound = errors.New("not found")

// entry pairs a workflow with its mutation lock.
type entry struct {
	mu sync.Mutex
	wf *models.Workflow
}

// Store is a thread-safe in-memory workflow collection.
type Store struct {
	// mu guards the registry maps, not workflow contents.
	mu      sync.RWMutex
	entries map[string]*entry
	// order preserves insertion order for List.
	order []string
	// taskIndex maps task ID to owning workflow ID. Task IDs are unique
	// across the whole store.
	taskIndex map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries:   make(map[string]*entry),
		taskIndex: make(map[string]string),
	}
}

// Put registers a workflow. The store takes ownership of the pointer;
// callers must mutate it only through Mutate or MutateByTask afterwards.
func (s *Store) Put(wf *models.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[wf.ID]; !exists {
		s.order = append(s.order, wf.ID)
	}
	s.entries[wf.ID] = &entry{wf: wf}
	for _, t := range wf.Tasks {
		s.taskIndex[t.ID] = wf.ID
	}
}

// Get returns the workflow with the given ID.
func (s *Store) Get(id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.wf, nil
}

// List returns a snapshot slice of all workflows in insertion order.
// The slice is freshly allocated; the workflow pointers are shared.
func (s *Store) List() []*models.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].wf)
	}
	return out
}

// FindTask locates a task anywhere in the store and returns it with its
// owning workflow.
func (s *Store) FindTask(taskID string) (*models.Task, *models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wfID, ok := s.taskIndex[taskID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	wf := s.entries[wfID].wf
	t := wf.FindTask(taskID)
	if t == nil {
		return nil, nil, ErrNotFound
	}
	return t, wf, nil
}

// FindAgent locates an agent within the given workflow.
func (s *Store) FindAgent(workflowID, agentID string) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	a := e.wf.FindAgent(agentID)
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Mutate runs fn on the workflow while holding its exclusive lock. Any
// read-modify-write sequence on the workflow's tasks or agents must go
// through here. Task ID index changes made by fn (splices) are applied
// after fn returns successfully.
func (s *Store) Mutate(workflowID string, fn func(*models.Workflow) error) error {
	s.mu.RLock()
	e, ok := s.entries[workflowID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.wf); err != nil {
		return err
	}
	s.reindexTasks(e.wf)
	return nil
}

// MutateByTask resolves the workflow owning the task and runs fn under
// that workflow's lock. The task is re-resolved inside the lock so a
// concurrent splice cannot hand fn a stale pointer.
func (s *Store) MutateByTask(taskID string, fn func(*models.Task, *models.Workflow) error) error {
	s.mu.RLock()
	wfID, ok := s.taskIndex[taskID]
	var e *entry
	if ok {
		e = s.entries[wfID]
	}
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.wf.FindTask(taskID)
	if t == nil {
		return ErrNotFound
	}
	if err := fn(t, e.wf); err != nil {
		return err
	}
	s.reindexTasks(e.wf)
	return nil
}

// View runs fn on the workflow while holding its lock, for building
// consistent read projections during concurrent mutation.
func (s *Store) View(workflowID string, fn func(*models.Workflow)) error {
	return s.Mutate(workflowID, func(wf *models.Workflow) error {
		fn(wf)
		return nil
	})
}

// ViewEach runs fn once per workflow, each under its own lock, in
// insertion order.
func (s *Store) ViewEach(fn func(*models.Workflow)) {
	for _, wf := range s.List() {
		_ = s.View(wf.ID, fn)
	}
}

// Count returns the number of workflows in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// reindexTasks refreshes the task index for one workflow. Called after a
// mutation that may have spliced tasks in or out.
func (s *Store) reindexTasks(wf *models.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, owner := range s.taskIndex {
		if owner == wf.ID && wf.FindTask(id) == nil {
			delete(s.taskIndex, id)
		}
	}
	for _, t := range wf.Tasks {
		s.taskIndex[t.ID] = wf.ID
	}
}
