package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultModel is used when a prompt or agent node has no model selected.
	DefaultModel = "gpt-4o-mini"
	// DefaultTemperature is used when a prompt node has no temperature.
	DefaultTemperature = 0.5
)

// Meta carries the workflow-level fields of a compiled definition.
type Meta struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Compilation is the output of a compile run: the definition plus every
// fallback or structural issue encountered on the way.
type Compilation struct {
	Definition  *WorkflowDefinition `json:"definition" yaml:"definition"`
	Diagnostics []Diagnostic        `json:"diagnostics" yaml:"diagnostics"`
}

// Compiler turns canvas snapshots into workflow definitions.
type Compiler struct {
	catalog            *Catalog
	models             *ModelCatalog
	personalities      Personalities
	defaultProvider    string
	defaultModel       string
	defaultTemperature float64
	logger             *zap.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCatalog replaces the node palette used for classification.
func WithCatalog(c *Catalog) CompilerOption {
	return func(cp *Compiler) { cp.catalog = c }
}

// WithModelCatalog replaces the model → provider catalog.
func WithModelCatalog(m *ModelCatalog) CompilerOption {
	return func(cp *Compiler) { cp.models = m }
}

// WithPersonalities replaces the personality presets.
func WithPersonalities(p Personalities) CompilerOption {
	return func(cp *Compiler) { cp.personalities = p }
}

// WithDefaultProvider sets the provider used when a model cannot be resolved.
func WithDefaultProvider(provider string) CompilerOption {
	return func(cp *Compiler) {
		if provider != "" {
			cp.defaultProvider = provider
		}
	}
}

// WithDefaultModel sets the model used when a node has none selected.
func WithDefaultModel(model string) CompilerOption {
	return func(cp *Compiler) {
		if model != "" {
			cp.defaultModel = model
		}
	}
}

// WithDefaultTemperature sets the prompt temperature fallback.
func WithDefaultTemperature(t float64) CompilerOption {
	return func(cp *Compiler) { cp.defaultTemperature = t }
}

// WithCompilerLogger sets the logger.
func WithCompilerLogger(logger *zap.Logger) CompilerOption {
	return func(cp *Compiler) {
		if logger != nil {
			cp.logger = logger
		}
	}
}

// NewCompiler creates a compiler with the built-in palette, models and
// personality presets.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		catalog:            DefaultCatalog(),
		models:             DefaultModelCatalog(),
		personalities:      DefaultPersonalities(),
		defaultProvider:    DefaultProvider,
		defaultModel:       DefaultModel,
		defaultTemperature: DefaultTemperature,
		logger:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "workflow_compiler"))
	return c
}

// Compile converts a snapshot into a workflow definition. It never fails:
// unknown node types, missing parameters and malformed text degrade to
// defaults and are reported in Diagnostics.
func (c *Compiler) Compile(s Snapshot, meta Meta) *Compilation {
	deps := ResolveDependencies(s.Edges)
	diags := Validate(s)

	steps := make([]Step, 0, len(s.Nodes))
	for i, node := range s.Nodes {
		step, stepDiags := c.compileNode(node, i+1, DependenciesOf(deps, node.ID))
		steps = append(steps, step)
		diags = append(diags, stepDiags...)
	}

	connections := make([]Connection, 0, len(s.Edges))
	for _, e := range s.Edges {
		connections = append(connections, Connection{
			SourceStepID: e.Source,
			TargetStepID: e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			Label:        e.Label,
			Animated:     e.Animated,
		})
	}

	version := meta.Version
	if version == "" {
		version = DefaultVersion
	}
	tags := make([]string, len(meta.Tags))
	copy(tags, meta.Tags)

	def := &WorkflowDefinition{
		ID:          meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		Version:     version,
		Steps:       steps,
		Connections: connections,
		Tags:        tags,
	}

	if diags == nil {
		diags = []Diagnostic{}
	}
	c.logger.Debug("workflow compiled",
		zap.String("name", meta.Name),
		zap.Int("steps", len(steps)),
		zap.Int("connections", len(connections)),
		zap.Int("diagnostics", len(diags)),
	)
	return &Compilation{Definition: def, Diagnostics: diags}
}

func (c *Compiler) compileNode(node Node, order int, deps []string) (Step, []Diagnostic) {
	var diags []Diagnostic
	if !c.catalog.Known(node.Type) {
		diags = append(diags, Diagnostic{
			Code:     DiagUnknownNodeType,
			Severity: SeverityWarning,
			NodeID:   node.ID,
			Message:  fmt.Sprintf("node type %q is not in the palette; compiled as %s", node.Type, StepTypeAgentExecution),
		})
	}

	stepType := c.catalog.Classify(node.Type)
	subType := ExtractSubType(node.Type)
	raw := node.Parameters
	if raw == nil {
		raw = Params{}
	}

	var config Params
	switch stepType {
	case StepTypeTrigger:
		config = Params{"kind": String(triggerKind(subType))}.Merge(raw)

	case StepTypePrompt:
		var promptDiags []Diagnostic
		config, promptDiags = c.promptConfig(node, raw, deps)
		diags = append(diags, promptDiags...)

	case StepTypeAgentExecution:
		var agentDiags []Diagnostic
		config, agentDiags = c.agentConfig(node, raw, subType)
		diags = append(diags, agentDiags...)

	case StepTypeToolExecution:
		config = Params{
			"tool_name": String(node.Label),
			"tool_id":   String(subType),
		}.Merge(raw)

	case StepTypeInput:
		config = Params{"input_type": String(subType)}.Merge(raw)

	case StepTypeOutput:
		config = Params{"output_type": String(subType)}.Merge(raw)

	case StepTypeConditional:
		condition, ok := raw.String("condition")
		if !ok {
			condition = subType + "_condition"
		}
		config = Params{"condition": String(condition)}

	default:
		config = raw.Clone()
	}

	name := node.Label
	if name == "" {
		name = node.ID
	}

	return Step{
		StepID:       node.ID,
		StepType:     stepType,
		StepName:     name,
		StepOrder:    order,
		Dependencies: deps,
		Config:       config,
	}, diags
}

func (c *Compiler) promptConfig(node Node, raw Params, deps []string) (Params, []Diagnostic) {
	var diags []Diagnostic

	text, ok := raw.String("text")
	if !ok && present(raw, "text") {
		diags = append(diags, invalidParameter(node.ID, "text", raw["text"], "a string", `""`))
	}
	vars := BindVariables(text, deps)
	for _, name := range UnboundVariables(vars) {
		diags = append(diags, Diagnostic{
			Code:     DiagUnboundVariable,
			Severity: SeverityWarning,
			NodeID:   node.ID,
			Message:  fmt.Sprintf("variable {{%s}} has no upstream producer", name),
		})
	}

	modelName, provider, modelDiags := c.resolveModel(node, raw)
	diags = append(diags, modelDiags...)

	temperature, ok := numberParam(raw, "temperature")
	if !ok {
		temperature = c.defaultTemperature
		if present(raw, "temperature") {
			diags = append(diags, invalidParameter(node.ID, "temperature", raw["temperature"], "a number",
				strconv.FormatFloat(temperature, 'g', -1, 64)))
		}
	}

	config := Params{
		"system_prompt":         String(text),
		"variables":             variablesValue(vars),
		"override_agent_prompt": Bool(true),
		"model_name":            String(modelName),
		"provider":              String(provider),
		"temperature":           Number(temperature),
	}
	if maxTokens, ok := numberParam(raw, "max_tokens"); ok {
		config["max_tokens"] = Number(maxTokens)
	} else if present(raw, "max_tokens") {
		diags = append(diags, invalidParameter(node.ID, "max_tokens", raw["max_tokens"], "a number", "unset"))
	}
	return config.Merge(raw.Without("model", "text", "temperature", "max_tokens")), diags
}

func (c *Compiler) agentConfig(node Node, raw Params, subType string) (Params, []Diagnostic) {
	var diags []Diagnostic

	personality, _ := raw.String("personality")
	instructions, _ := raw.String("agent_instructions")

	modelName, provider, modelDiags := c.resolveModel(node, raw)
	diags = append(diags, modelDiags...)

	config := Params{
		"agent_name":     String(node.Label),
		"system_prompt":  String(c.personalities.Instructions(personality, instructions)),
		"model_name":     String(modelName),
		"provider":       String(provider),
		"interactive":    Bool(false),
		"force_real_llm": Bool(true),
	}
	if node.Category == CategoryExternalAgents {
		config["a2a_agent_id"] = String(subType)
	}
	return config.Merge(raw.Without("model", "personality", "agent_instructions")), diags
}

// resolveModel reads the "model" parameter, either a plain model name or an
// object carrying name/id and provider, and resolves its provider.
func (c *Compiler) resolveModel(node Node, raw Params) (string, string, []Diagnostic) {
	var diags []Diagnostic
	var model, provider string
	if v, ok := raw["model"]; ok {
		if s, ok := v.Str(); ok {
			model = s
		} else if fields, ok := v.Fields(); ok {
			if s, ok := fields.String("name"); ok {
				model = s
			} else if s, ok := fields.String("id"); ok {
				model = s
			}
			provider, _ = fields.String("provider")
		} else if !v.IsNull() {
			diags = append(diags, invalidParameter(node.ID, "model", v, "a string or an object", c.defaultModel))
		}
	}
	if model == "" {
		model = c.defaultModel
	}
	if provider != "" {
		return model, provider, diags
	}
	if p, ok := c.models.Resolve(model); ok {
		return model, p, diags
	}
	return model, c.defaultProvider, append(diags, Diagnostic{
		Code:     DiagUnresolvedModel,
		Severity: SeverityWarning,
		NodeID:   node.ID,
		Message:  fmt.Sprintf("model %q has no known provider; using %s", model, c.defaultProvider),
	})
}

// present reports whether key carries a non-null value.
func present(p Params, key string) bool {
	v, ok := p[key]
	return ok && !v.IsNull()
}

func invalidParameter(nodeID, key string, v Value, want, fallback string) Diagnostic {
	return Diagnostic{
		Code:     DiagInvalidParameter,
		Severity: SeverityWarning,
		NodeID:   nodeID,
		Message:  fmt.Sprintf("parameter %q is %s, want %s; using %s", key, v.Kind(), want, fallback),
	}
}

func triggerKind(subType string) string {
	switch subType {
	case "webhook":
		return "webhook"
	case "schedule", "cron", "interval":
		return "schedule"
	default:
		return "manual"
	}
}

// numberParam reads a numeric parameter, accepting numeric strings typed
// into form fields.
func numberParam(p Params, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	if n, ok := v.Num(); ok {
		return n, true
	}
	if s, ok := v.Str(); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func variablesValue(vars []Variable) Value {
	items := make([]Value, len(vars))
	for i, v := range vars {
		fields := Params{"name": String(v.Name)}
		if v.Source != "" {
			fields["source"] = String(v.Source)
		}
		if v.DefaultValue != nil {
			fields["default_value"] = v.DefaultValue.Clone()
		}
		items[i] = Object(fields)
	}
	return Array(items...)
}
