package engine

import "github.com/ShunsukeHayashi/workflowd/pkg/models"

// AgentLoad reports one agent's current load for the dashboard.
type AgentLoad struct {
	Name           string  `json:"name"`
	LoadPercentage float64 `json:"load_percentage"`
}

// DashboardStats aggregates process-wide counts for the dashboard.
type DashboardStats struct {
	TotalWorkflows   int            `json:"total_workflows"`
	TotalTasks       int            `json:"total_tasks"`
	CompletedTasks   int            `json:"completed_tasks"`
	TotalAgents      int            `json:"total_agents"`
	ActiveAgents     int            `json:"active_agents"`
	TaskDistribution map[string]int `json:"task_distribution"`
	AgentLoads       []AgentLoad    `json:"agent_loads"`
}

// Stats computes dashboard statistics across every workflow. Each
// workflow is read under its own lock, so a concurrent update cannot
// tear an individual workflow's numbers.
func (e *Engine) Stats() DashboardStats {
	stats := DashboardStats{
		TaskDistribution: make(map[string]int, len(models.AllTaskStatuses)),
		AgentLoads:       []AgentLoad{},
	}
	for _, s := range models.AllTaskStatuses {
		stats.TaskDistribution[string(s)] = 0
	}

	e.deps.Store.ViewEach(func(wf *models.Workflow) {
		stats.TotalWorkflows++
		stats.TotalTasks += len(wf.Tasks)
		stats.CompletedTasks += wf.CompletedTaskCount()
		stats.TotalAgents += len(wf.Agents)

		for _, t := range wf.Tasks {
			stats.TaskDistribution[string(t.Status)]++
		}
		for _, a := range wf.Agents {
			if len(a.CurrentTasks) > 0 {
				stats.ActiveAgents++
			}
			stats.AgentLoads = append(stats.AgentLoads, AgentLoad{
				Name:           a.Name,
				LoadPercentage: a.LoadPercentage(),
			})
		}
	})

	return stats
}
