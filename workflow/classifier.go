package workflow

import "strings"

// StepType is the execution category of a compiled step.
type StepType string

const (
	StepTypeTrigger        StepType = "trigger"
	StepTypeInput          StepType = "input"
	StepTypeOutput         StepType = "output"
	StepTypePrompt         StepType = "prompt"
	StepTypeAgentExecution StepType = "agent_execution"
	StepTypeToolExecution  StepType = "tool_execution"
	StepTypeConditional    StepType = "conditional"
)

// Catalog enumerates the node type ids of the editor palette, grouped by
// the step category they compile to.
type Catalog struct {
	Triggers       []string
	Inputs         []string
	Outputs        []string
	Prompts        []string
	Agents         []string
	ExternalAgents []string
	Actions        []string
	Logic          []string

	index map[string]StepType
}

// DefaultCatalog returns the built-in node palette.
func DefaultCatalog() *Catalog {
	return NewCatalog(Catalog{
		Triggers: []string{
			"trigger_webhook", "trigger_schedule", "trigger_manual",
			"trigger_chat", "trigger_file",
		},
		Inputs: []string{
			"input_text", "input_file", "input_url", "input_image",
			"input_audio", "input_json",
		},
		Outputs: []string{
			"output_text", "output_file", "output_email", "output_webhook",
			"output_json",
		},
		Prompts: []string{
			"prompt_template", "prompt_system", "prompt_chat",
		},
		Agents: []string{
			"agents_chatbot", "agents_router", "agents_web_search",
			"agents_api", "agents_data", "agents_toshiba", "agents_command",
			"agents_rag",
		},
		ExternalAgents: []string{
			"external_a2a", "external_salesforce", "external_servicenow",
			"external_custom",
		},
		Actions: []string{
			"action_http_request", "action_send_email", "action_web_search",
			"action_code", "action_database_query", "action_file_reader",
			"action_tokenizer", "action_slack",
		},
		Logic: []string{
			"logic_router", "logic_condition", "logic_switch", "logic_loop",
			"logic_merge",
		},
	})
}

// NewCatalog indexes the given id-sets. When an id appears in several sets
// the first set in classification order wins.
func NewCatalog(c Catalog) *Catalog {
	out := c
	out.index = make(map[string]StepType)
	groups := []struct {
		ids  []string
		kind StepType
	}{
		{c.Triggers, StepTypeTrigger},
		{c.Inputs, StepTypeInput},
		{c.Outputs, StepTypeOutput},
		{c.Prompts, StepTypePrompt},
		{c.Agents, StepTypeAgentExecution},
		{c.ExternalAgents, StepTypeAgentExecution},
		{c.Actions, StepTypeToolExecution},
		{c.Logic, StepTypeConditional},
	}
	for _, g := range groups {
		for _, id := range g.ids {
			if _, exists := out.index[id]; !exists {
				out.index[id] = g.kind
			}
		}
	}
	return &out
}

// Classify maps a node type id to its step category. Unknown ids fall back
// to agent_execution.
func (c *Catalog) Classify(typeID string) StepType {
	if kind, ok := c.index[typeID]; ok {
		return kind
	}
	return StepTypeAgentExecution
}

// Known reports whether typeID belongs to the palette.
func (c *Catalog) Known(typeID string) bool {
	_, ok := c.index[typeID]
	return ok
}

// ExtractSubType strips the category prefix from a type id:
// "agents_chatbot" -> "chatbot", "action_http_request" -> "http_request".
// Ids without an underscore are returned unchanged.
func ExtractSubType(typeID string) string {
	_, sub, found := strings.Cut(typeID, "_")
	if !found {
		return typeID
	}
	return sub
}
