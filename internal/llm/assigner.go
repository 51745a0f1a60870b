package llm

import (
	"context"
	"sort"
	"strings"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// Assigner implements the agent-assignment policy. It is deterministic:
// ready tasks go to the least-loaded agent with spare capacity,
// preferring agents whose capabilities match the task text. It mutates
// agent and task state in place; the engine invokes it under the
// workflow's mutation lock.
type Assigner struct{}

// NewAssigner creates an Assigner.
func NewAssigner() *Assigner {
	return &Assigner{}
}

// AssignTasks assigns every ready task (pending, unassigned, dependencies
// completed) to an agent, flipping it to in_progress and recording it in
// the agent's working set.
func (a *Assigner) AssignTasks(ctx context.Context, wf *models.Workflow) error {
	lookup := wf.TaskLookup()

	ready := make([]*models.Task, 0)
	for _, t := range wf.Tasks {
		if t.Status == models.TaskStatusPending && t.AssignedAgentID == "" && t.DependenciesMet(lookup) {
			ready = append(ready, t)
		}
	}
	// Higher-priority (lower number) tasks pick agents first.
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority < ready[j].Priority
	})

	for _, task := range ready {
		agent := pickAgent(wf.Agents, task)
		if agent == nil {
			// Every agent is at capacity; the next tick retries.
			continue
		}
		task.AssignedAgentID = agent.ID
		task.Status = models.TaskStatusInProgress
		agent.AddTask(task.ID)
	}
	return nil
}

// pickAgent chooses the least-loaded agent with spare capacity,
// preferring agents with a capability matching the task text.
func pickAgent(agents []*models.Agent, task *models.Task) *models.Agent {
	var best *models.Agent
	bestMatched := false

	text := strings.ToLower(task.Title + " " + task.Description)
	for _, agent := range agents {
		if !agent.HasCapacity() {
			continue
		}
		matched := capabilityMatch(agent, text)
		switch {
		case best == nil,
			matched && !bestMatched,
			matched == bestMatched && agent.LoadPercentage() < best.LoadPercentage():
			best = agent
			bestMatched = matched
		}
	}
	return best
}

// capabilityMatch reports whether any of the agent's capabilities appear
// in the task text.
func capabilityMatch(agent *models.Agent, text string) bool {
	for _, cap := range agent.Capabilities {
		if cap != "" && strings.Contains(text, strings.ToLower(cap)) {
			return true
		}
	}
	return false
}
