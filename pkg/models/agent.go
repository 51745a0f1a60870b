package models

// AgentType categorizes what kind of work an agent is built for.
type AgentType string

const (
	// AgentTypeResearcher gathers and summarizes information.
	AgentTypeResearcher AgentType = "researcher"
	// AgentTypeDeveloper writes and modifies code.
	AgentTypeDeveloper AgentType = "developer"
	// AgentTypeAnalyst evaluates data and produces findings.
	AgentTypeAnalyst AgentType = "analyst"
	// AgentTypeTester verifies work produced by other agents.
	AgentTypeTester AgentType = "tester"
	// AgentTypeCoordinator sequences and reviews the work of others.
	AgentTypeCoordinator AgentType = "coordinator"
)

// Valid returns true if the type is a known value.
func (t AgentType) Valid() bool {
	switch t {
	case AgentTypeResearcher, AgentTypeDeveloper, AgentTypeAnalyst,
		AgentTypeTester, AgentTypeCoordinator:
		return true
	default:
		return false
	}
}

// Agent represents a capacity-bounded worker scoped to one workflow.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the human-readable agent name.
	Name string `json:"name"`
	// Type categorizes the agent's role.
	Type AgentType `json:"type"`
	// Capabilities lists what the agent can do, matched against tasks
	// during assignment.
	Capabilities []string `json:"capabilities,omitempty"`
	// CurrentTasks holds the IDs of tasks the agent is presently working.
	// A task ID appears in at most one agent's CurrentTasks across the
	// workflow, and only while that task is in progress.
	CurrentTasks []string `json:"current_tasks,omitempty"`
	// MaxConcurrentTasks bounds how many tasks the agent works at once.
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
}

// LoadPercentage returns the agent's current load as a percentage of its
// concurrency limit. Returns 0 when the limit is 0.
func (a *Agent) LoadPercentage() float64 {
	if a.MaxConcurrentTasks == 0 {
		return 0
	}
	return float64(len(a.CurrentTasks)) / float64(a.MaxConcurrentTasks) * 100
}

// HasCapacity returns true if the agent can take on another task.
func (a *Agent) HasCapacity() bool {
	return len(a.CurrentTasks) < a.MaxConcurrentTasks
}

// AddTask records a task as being worked by this agent.
func (a *Agent) AddTask(taskID string) {
	a.CurrentTasks = append(a.CurrentTasks, taskID)
}

// RemoveTask drops a task from the agent's working set.
// Removing an ID that is not present is a no-op.
func (a *Agent) RemoveTask(taskID string) {
	for i, id := range a.CurrentTasks {
		if id == taskID {
			a.CurrentTasks = append(a.CurrentTasks[:i], a.CurrentTasks[i+1:]...)
			return
		}
	}
}
