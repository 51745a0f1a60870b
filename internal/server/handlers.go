package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ShunsukeHayashi/workflowd/internal/engine"
	"github.com/ShunsukeHayashi/workflowd/internal/journal"
	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// createWorkflowRequest is the body of POST /api/workflows.
type createWorkflowRequest struct {
	UserInput string         `json:"user_input"`
	Context   map[string]any `json:"context"`
}

// updateTaskRequest is the body of POST /api/tasks/{id}/update.
type updateTaskRequest struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Errors []string       `json:"errors"`
}

// workflowSummary is the list-projection of a workflow.
type workflowSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	Progress       float64   `json:"progress"`
	TasksCount     int       `json:"tasks_count"`
	CompletedTasks int       `json:"completed_tasks"`
	AgentsCount    int       `json:"agents_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// taskView is the detail-projection of a task.
type taskView struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Status            string   `json:"status"`
	AssignedAgentID   string   `json:"assigned_agent_id"`
	Priority          int      `json:"priority"`
	EstimatedDuration string   `json:"estimated_duration"`
	Dependencies      []string `json:"dependencies"`
}

// agentView is the detail-projection of an agent.
type agentView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Capabilities   []string `json:"capabilities"`
	CurrentTasks   int      `json:"current_tasks"`
	MaxTasks       int      `json:"max_tasks"`
	LoadPercentage float64  `json:"load_percentage"`
}

// workflowDetail is the full projection of one workflow.
type workflowDetail struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Progress    float64     `json:"progress"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Tasks       []taskView  `json:"tasks"`
	Agents      []agentView `json:"agents"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserInput == "" {
		writeError(w, http.StatusBadRequest, "user_input is required")
		return
	}

	wf, err := s.engine.CreateWorkflow(r.Context(), req.UserInput, req.Context)
	if err != nil {
		log.Printf("[server] workflow creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"workflow_id":  wf.ID,
		"title":        wf.Title,
		"tasks_count":  len(wf.Tasks),
		"agents_count": len(wf.Agents),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	summaries := []workflowSummary{}
	// Each workflow is read under its own lock so a concurrent update
	// cannot tear an individual summary.
	s.engine.Store().ViewEach(func(wf *models.Workflow) {
		summaries = append(summaries, workflowSummary{
			ID:             wf.ID,
			Title:          wf.Title,
			Status:         string(wf.Status),
			Progress:       wf.ProgressPercentage(),
			TasksCount:     len(wf.Tasks),
			CompletedTasks: wf.CompletedTaskCount(),
			AgentsCount:    len(wf.Agents),
			CreatedAt:      wf.CreatedAt,
		})
	})

	writeJSON(w, http.StatusOK, map[string]any{"workflows": summaries})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	var detail workflowDetail
	err := s.engine.Store().View(r.PathValue("id"), func(wf *models.Workflow) {
		detail = workflowDetail{
			ID:          wf.ID,
			Title:       wf.Title,
			Description: wf.Description,
			Status:      string(wf.Status),
			Progress:    wf.ProgressPercentage(),
			CreatedAt:   wf.CreatedAt,
			StartedAt:   wf.StartedAt,
			CompletedAt: wf.CompletedAt,
			Tasks:       make([]taskView, 0, len(wf.Tasks)),
			Agents:      make([]agentView, 0, len(wf.Agents)),
		}
		for _, t := range wf.Tasks {
			detail.Tasks = append(detail.Tasks, taskView{
				ID:                t.ID,
				Title:             t.Title,
				Description:       t.Description,
				Status:            string(t.Status),
				AssignedAgentID:   t.AssignedAgentID,
				Priority:          t.Priority,
				EstimatedDuration: t.EstimatedDuration,
				Dependencies:      t.Dependencies,
			})
		}
		for _, a := range wf.Agents {
			detail.Agents = append(detail.Agents, agentView{
				ID:             a.ID,
				Name:           a.Name,
				Type:           string(a.Type),
				Capabilities:   a.Capabilities,
				CurrentTasks:   len(a.CurrentTasks),
				MaxTasks:       a.MaxConcurrentTasks,
				LoadPercentage: a.LoadPercentage(),
			})
		}
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	started, err := s.engine.StartWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Workflow not found")
			return
		}
		log.Printf("[server] workflow start failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !started {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow is already running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow execution started"})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := s.engine.UpdateTask(r.Context(), engine.UpdateRequest{
		TaskID: r.PathValue("id"),
		Status: req.Status,
		Result: req.Result,
		Errors: req.Errors,
	})
	if err != nil {
		var invalid *engine.InvalidStatusError
		switch {
		case errors.Is(err, engine.ErrNotFound):
			writeError(w, http.StatusNotFound, "Task not found")
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status: %s", invalid.Status))
		default:
			log.Printf("[server] task update failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task updated successfully"})
}

func (s *Server) handleDecomposeTask(w http.ResponseWriter, r *http.Request) {
	subtasks, err := s.engine.DecomposeTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		log.Printf("[server] task decomposition failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]map[string]string, 0, len(subtasks))
	for _, st := range subtasks {
		views = append(views, map[string]string{"id": st.ID, "title": st.Title})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Task decomposed into %d subtasks", len(subtasks)),
		"subtasks": views,
	})
}

// statsResponse extends the engine's dashboard stats with the journal's
// recent activity.
type statsResponse struct {
	engine.DashboardStats
	RecentEvents []journal.Entry `json:"recent_events"`
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		DashboardStats: s.engine.Stats(),
		RecentEvents:   []journal.Entry{},
	}

	if s.eventLog != nil {
		entries, err := s.eventLog.Recent(int(s.recentLimit.Load()))
		if err != nil {
			log.Printf("[server] recent events: %v", err)
		} else if entries != nil {
			resp.RecentEvents = entries
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.broadcaster.SubscriberCount(),
		"executions":  s.engine.RunningExecutions(),
	})
}
