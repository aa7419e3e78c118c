package providers

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/capability"
	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/reasoning"
)

// ClientFactory returns the reasoning client configured for an agent.
type ClientFactory func(ctx context.Context, agent string) (reasoning.Client, error)

// Departments returns a catalog entry for every configured agent that is
// not an engine role. Clients are created on first execution.
func Departments(agents map[string]config.AgentConfig, clients ClientFactory, v Validator, logger *zap.Logger) capability.Catalog[capability.Provider] {
	catalog := capability.Catalog[capability.Provider]{}
	for _, name := range slices.Sorted(maps.Keys(agents)) {
		if config.IsEngineRole(name) {
			continue
		}
		agent := agents[name]
		catalog[name] = func() capability.Descriptor[capability.Provider] {
			return capability.Descriptor[capability.Provider]{
				Name:           name,
				Description:    agent.Description,
				InputContract:  agent.InputContract,
				OutputContract: agent.OutputContract,
				Build: func(ctx context.Context) (capability.Provider, error) {
					client, err := clients(ctx, name)
					if err != nil {
						return nil, err
					}
					return NewDepartment(DepartmentConfig{
						Name:           name,
						RolePrompt:     agent.SystemPrompt,
						OutputContract: agent.OutputContract,
						Client:         client,
						Validator:      v,
						Logger:         logger,
					})
				},
			}
		}
	}
	return catalog
}

// Disabled lists the agents marked disabled in configuration.
func Disabled(agents map[string]config.AgentConfig) []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(agents)) {
		if agents[name].Disabled && !config.IsEngineRole(name) {
			names = append(names, name)
		}
	}
	return names
}

// Tools returns the built-in tool catalog.
func Tools() capability.Catalog[capability.Tool] {
	return capability.Catalog[capability.Tool]{
		"text": func() capability.Descriptor[capability.Tool] {
			return capability.Descriptor[capability.Tool]{
				Description:    "Deterministic text utilities: word_count, truncate",
				InputContract:  "TextToolInput",
				OutputContract: "TextToolOutput",
				Build: func(context.Context) (capability.Tool, error) {
					return TextTool{}, nil
				},
			}
		},
	}
}
