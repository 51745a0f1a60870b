package llm

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ShunsukeHayashi/workflowd/pkg/models"
)

// AgentTemplate describes one agent the generator seeds into every new
// workflow. Templates come from a YAML catalog or the built-in defaults.
type AgentTemplate struct {
	Name               string   `yaml:"name"`
	Type               string   `yaml:"type"`
	Capabilities       []string `yaml:"capabilities"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
}

// agentCatalog is the YAML file shape.
type agentCatalog struct {
	Agents []AgentTemplate `yaml:"agents"`
}

// DefaultAgentTemplates returns the built-in agent pool used when no
// catalog file is configured.
func DefaultAgentTemplates() []AgentTemplate {
	return []AgentTemplate{
		{Name: "Research Agent", Type: string(models.AgentTypeResearcher), Capabilities: []string{"research", "summarization"}, MaxConcurrentTasks: 3},
		{Name: "Developer Agent", Type: string(models.AgentTypeDeveloper), Capabilities: []string{"coding", "debugging"}, MaxConcurrentTasks: 2},
		{Name: "Analyst Agent", Type: string(models.AgentTypeAnalyst), Capabilities: []string{"analysis", "reporting"}, MaxConcurrentTasks: 3},
		{Name: "Coordinator Agent", Type: string(models.AgentTypeCoordinator), Capabilities: []string{"planning", "review"}, MaxConcurrentTasks: 5},
	}
}

// LoadAgentTemplates reads an agent catalog from a YAML file.
func LoadAgentTemplates(path string) ([]AgentTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent catalog: %w", err)
	}

	var catalog agentCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse agent catalog: %w", err)
	}
	if len(catalog.Agents) == 0 {
		return nil, fmt.Errorf("agent catalog %s defines no agents", path)
	}

	for i, tmpl := range catalog.Agents {
		if !models.AgentType(tmpl.Type).Valid() {
			return nil, fmt.Errorf("agent catalog entry %d: unknown type %q", i, tmpl.Type)
		}
		if tmpl.MaxConcurrentTasks <= 0 {
			return nil, fmt.Errorf("agent catalog entry %d: max_concurrent_tasks must be positive", i)
		}
	}
	return catalog.Agents, nil
}

// Instantiate creates a fresh agent from the template.
func (t AgentTemplate) Instantiate() *models.Agent {
	return &models.Agent{
		ID:                 uuid.New().String(),
		Name:               t.Name,
		Type:               models.AgentType(t.Type),
		Capabilities:       append([]string{}, t.Capabilities...),
		MaxConcurrentTasks: t.MaxConcurrentTasks,
	}
}
