package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/stepflow/internal/state"
)

const analyzerSystem = `You are the query analyzer of a multi-step task orchestrator.

Read the user's task and determine:
1. The intent of the task
2. Which providers are needed, in the order they should run
3. The complexity level
4. The workflow pattern

AVAILABLE PROVIDERS:
%s

Complexity levels:
- simple: single task, one provider
- moderate: several related tasks, one or two providers
- complex: multiple providers, iteration needed

Workflow patterns:
- single_provider: one provider handles everything
- sequential: providers run one after another
- parallel: providers work independently
- iterative: loop back for refinement

Respond with JSON only:
{
  "intent": "what the user wants",
  "required_providers": ["name1", "name2"],
  "complexity": "simple|moderate|complex",
  "workflow_pattern": "single_provider|sequential|parallel|iterative",
  "parameters": {"key": "value"}
}`

const decisionSystem = `You coordinate a multi-step workflow by choosing the next action.

AVAILABLE ACTIONS:
- "delegate": send a subtask to a provider
- "ask_human": request human input for a decision
- "complete": the task is finished, collate and return results
- "error": report an unrecoverable error

AVAILABLE PROVIDERS:
%s
%s
RULES:
1. Choose the most appropriate provider for each subtask
2. Do not delegate to a provider that has already been called unless the task requires iteration
3. If you have all needed partial results, choose "complete"
4. If a destructive action is needed (code execution, file writes, API mutations), choose "ask_human" first
5. If confidence is below 0.5, choose "ask_human" for guidance
6. You MUST respond with valid JSON matching the schema below

RESPONSE SCHEMA:
{
  "action": "delegate" | "ask_human" | "complete" | "error",
  "target_provider": "<provider name, only for delegate>",
  "provider_input": { <structured input for the provider> },
  "reasoning": "<brief explanation of your decision>",
  "confidence": <float 0.0-1.0>
}`

type listing struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// listingJSON renders name/description pairs for the prompt.
func listingJSON(infos []state.ProviderInfo) string {
	out := make([]listing, 0, len(infos))
	for _, info := range infos {
		if !info.Enabled {
			continue
		}
		out = append(out, listing{Name: info.Name, Description: info.Description})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// SystemPrompt builds the decision system text for the given listings.
func SystemPrompt(providers, tools []state.ProviderInfo) string {
	var toolSection string
	if len(tools) > 0 {
		toolSection = "\nAVAILABLE TOOLS (usable by providers):\n" + listingJSON(tools) + "\n"
	}
	return fmt.Sprintf(decisionSystem, listingJSON(providers), toolSection)
}

func analyzerPrompt(providers []state.ProviderInfo) string {
	var b strings.Builder
	for _, info := range providers {
		if !info.Enabled {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
	}
	if b.Len() == 0 {
		b.WriteString("(none registered)\n")
	}
	return fmt.Sprintf(analyzerSystem, strings.TrimRight(b.String(), "\n"))
}
