package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// Generator produces workflows from natural-language goals via the model.
type Generator struct {
	runner    Runner
	templates []AgentTemplate
}

// NewGenerator creates a Generator. The agent templates seed every
// generated workflow's agent pool.
func NewGenerator(runner Runner, templates []AgentTemplate) *Generator {
	if len(templates) == 0 {
		templates = DefaultAgentTemplates()
	}
	return &Generator{runner: runner, templates: templates}
}

// GenerateWorkflow asks the model for a task plan and assembles a full
// workflow around it.
func (g *Generator) GenerateWorkflow(ctx context.Context, userInput string, extra map[string]any) (*models.Workflow, error) {
	contextBlock := ""
	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			contextBlock = fmt.Sprintf("\nAdditional context:\n%s\n", raw)
		}
	}

	response, err := g.runner.Run(ctx, generationSystemPrompt, fmt.Sprintf(generationPrompt, userInput, contextBlock))
	if err != nil {
		return nil, fmt.Errorf("generate workflow: %w", err)
	}

	plan, err := parseWorkflowPlan(response)
	if err != nil {
		return nil, err
	}

	agents := make([]*models.Agent, 0, len(g.templates))
	for _, tmpl := range g.templates {
		agents = append(agents, tmpl.Instantiate())
	}

	return &models.Workflow{
		ID:          uuid.New().String(),
		Title:       plan.Title,
		Description: plan.Description,
		Status:      models.WorkflowStatusPending,
		CreatedAt:   time.Now(),
		Tasks:       buildTasks(plan.Tasks),
		Agents:      agents,
	}, nil
}
